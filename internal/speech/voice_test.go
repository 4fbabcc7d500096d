package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/maitri/internal/logger"
)

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.fail {
		return nil, errors.New("synthesis failed")
	}
	return []byte(text), nil
}

func (f *fakeSynth) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// blockingSink holds each Play until Stop is called or release fires.
type blockingSink struct {
	mu      sync.Mutex
	played  []string
	stops   int
	release chan struct{}
	playing chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{}), playing: make(chan struct{}, 8)}
}

func (s *blockingSink) Play(wav []byte) error {
	s.mu.Lock()
	s.played = append(s.played, string(wav))
	s.mu.Unlock()
	s.playing <- struct{}{}
	<-s.release
	return nil
}

func (s *blockingSink) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *blockingSink) plays() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

func TestVoiceSpeaksInOrder(t *testing.T) {
	synth := &fakeSynth{}
	sink := newBlockingSink()
	close(sink.release)
	v := NewVoice(synth, sink, logger.New(logger.LevelOff, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)

	v.Say("**first** reply")
	v.Say("second reply")
	v.Say("   ")

	require.Eventually(t, func() bool { return len(sink.plays()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first reply", "second reply"}, sink.plays())
}

func TestVoiceInterruptDropsQueued(t *testing.T) {
	synth := &fakeSynth{}
	sink := newBlockingSink()
	v := NewVoice(synth, sink, logger.New(logger.LevelOff, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)

	v.Say("one")
	<-sink.playing
	assert.True(t, v.IsSpeaking())

	v.Say("two")
	v.Say("three")
	v.Interrupt()
	close(sink.release)

	require.Eventually(t, func() bool { return !v.IsSpeaking() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"one"}, sink.plays())
	assert.Equal(t, 1, sink.stops)

	v.Say("four")
	require.Eventually(t, func() bool { return len(sink.plays()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "four", sink.plays()[1])
}

func TestVoiceSynthesisFailureSkipsPlayback(t *testing.T) {
	synth := &fakeSynth{fail: true}
	sink := newBlockingSink()
	close(sink.release)
	v := NewVoice(synth, sink, logger.New(logger.LevelOff, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)

	v.Say("hello")
	require.Eventually(t, func() bool { return len(synth.spoken()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !v.IsSpeaking() }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.plays())
}

func TestVoiceQueueFullDrops(t *testing.T) {
	v := NewVoice(&fakeSynth{}, newBlockingSink(), logger.New(logger.LevelOff, nil), WithQueueSize(1))
	v.Say("kept")
	v.Say("dropped")
	assert.Len(t, v.queue, 1)
}
