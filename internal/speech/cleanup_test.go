package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello world \n", "hello world"},
		{"[BLANK_AUDIO]", ""},
		{"(keyboard clicking) hello", "hello"},
		{"hello [Music] there", "hello there"},
		{"[00:00:00.000 --> 00:00:02.000]  good morning", "good morning"},
		{"Thank you.", ""},
		{"you", ""},
		{"thank you very much", "thank you very much"},
		{"line one\r\nline two", "line one line two"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTranscription(tt.in), tt.in)
	}
}

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Hello** there", "Hello there"},
		{"# Title\nBody", "Title\nBody"},
		{"- one\n- two", "one\ntwo"},
		{"see [the docs](https://example.com)", "see the docs"},
		{"use `go test`", "use go test"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanForSpeech(tt.in), tt.in)
	}
}
