package speech

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/maitri/internal/logger"
)

// Synthesizer converts text to WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioSink plays WAV audio. Play blocks until playback ends; Stop
// interrupts it.
type AudioSink interface {
	Play(wav []byte) error
	Stop()
}

// VoiceOption configures the Voice.
type VoiceOption func(*Voice)

// WithQueueSize sets how many replies may wait to be spoken.
func WithQueueSize(n int) VoiceOption {
	return func(v *Voice) {
		if n > 0 {
			v.queue = make(chan request, n)
		}
	}
}

type request struct {
	text string
	gen  uint64
}

// Voice reads bot replies aloud. Replies are spoken one at a time in
// the order they were queued; Interrupt silences the current reply and
// drops everything waiting.
type Voice struct {
	tts  Synthesizer
	sink AudioSink
	log  *logger.Logger

	queue chan request
	gen   atomic.Uint64 // bumped by Interrupt; older requests are skipped

	mu       sync.Mutex
	speaking bool
}

// NewVoice creates a speech output pipeline.
func NewVoice(tts Synthesizer, sink AudioSink, log *logger.Logger, opts ...VoiceOption) *Voice {
	v := &Voice{
		tts:   tts,
		sink:  sink,
		log:   log,
		queue: make(chan request, 8),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start begins the playback goroutine. Non-blocking.
func (v *Voice) Start(ctx context.Context) {
	go v.loop(ctx)
	v.log.Info("voice started")
}

// Say queues text to be spoken. Non-blocking: when the queue is full
// the text is dropped.
func (v *Voice) Say(text string) {
	text = cleanForSpeech(text)
	if text == "" {
		return
	}
	select {
	case v.queue <- request{text: text, gen: v.gen.Load()}:
		v.log.Debug("voice: queued %q", logger.Clip(text, 60))
	default:
		v.log.Warn("voice: queue full, dropping %q", logger.Clip(text, 60))
	}
}

// Interrupt stops the current playback and discards queued replies.
func (v *Voice) Interrupt() {
	v.gen.Add(1)
	for {
		select {
		case <-v.queue:
			continue
		default:
		}
		break
	}
	v.sink.Stop()
	v.log.Debug("voice: interrupted")
}

// IsSpeaking reports whether a reply is being synthesized or played.
func (v *Voice) IsSpeaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speaking
}

func (v *Voice) setSpeaking(b bool) {
	v.mu.Lock()
	v.speaking = b
	v.mu.Unlock()
}

func (v *Voice) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			v.log.Info("voice stopped")
			return
		case req := <-v.queue:
			v.speak(ctx, req)
		}
	}
}

func (v *Voice) speak(ctx context.Context, req request) {
	if req.gen != v.gen.Load() {
		return
	}

	v.setSpeaking(true)
	defer v.setSpeaking(false)

	audio, err := v.tts.Synthesize(ctx, req.text)
	if err != nil {
		v.log.Error("voice: synthesis failed: %v", err)
		return
	}

	// An interrupt may have arrived while synthesizing.
	if req.gen != v.gen.Load() {
		return
	}
	if err := v.sink.Play(audio); err != nil {
		v.log.Error("voice: playback failed: %v", err)
	}
}
