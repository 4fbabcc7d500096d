package speech

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal RIFF file with an optional extra chunk
// between fmt and data.
func buildWAV(rate, channels, bits int, extra bool, pcm []byte) []byte {
	var b []byte
	u32 := func(v int) { b = binary.LittleEndian.AppendUint32(b, uint32(v)) }
	u16 := func(v int) { b = binary.LittleEndian.AppendUint16(b, uint16(v)) }

	b = append(b, "RIFF"...)
	u32(0)
	b = append(b, "WAVE"...)

	b = append(b, "fmt "...)
	u32(16)
	u16(1)
	u16(channels)
	u32(rate)
	u32(rate * channels * bits / 8)
	u16(channels * bits / 8)
	u16(bits)

	if extra {
		b = append(b, "LIST"...)
		u32(3)
		b = append(b, 'a', 'b', 'c', 0)
	}

	b = append(b, "data"...)
	u32(len(pcm))
	b = append(b, pcm...)

	binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)-8))
	return b
}

func TestExtractPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	got, err := extractPCM(buildWAV(SampleRate, ChannelCount, BitDepth, false, pcm))
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	got, err = extractPCM(buildWAV(SampleRate, ChannelCount, BitDepth, true, pcm))
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
}

func TestExtractPCMRejects(t *testing.T) {
	pcm := make([]byte, 16)

	_, err := extractPCM([]byte("RIFF"))
	assert.ErrorContains(t, err, "too short")

	bad := buildWAV(SampleRate, ChannelCount, BitDepth, false, pcm)
	copy(bad[8:12], "AVI ")
	_, err = extractPCM(bad)
	assert.ErrorContains(t, err, "not a valid WAV")

	_, err = extractPCM(buildWAV(16000, ChannelCount, BitDepth, false, pcm))
	assert.ErrorContains(t, err, "unsupported wav format")

	_, err = extractPCM(buildWAV(SampleRate, 2, BitDepth, false, pcm))
	assert.ErrorContains(t, err, "unsupported wav format")
}
