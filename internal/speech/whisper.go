package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// WhisperOption configures the WhisperRecognizer.
type WhisperOption func(*WhisperRecognizer)

// WithChunkDuration sets how long each recording chunk lasts.
func WithChunkDuration(d time.Duration) WhisperOption {
	return func(r *WhisperRecognizer) {
		if d > 0 {
			r.chunk = d
		}
	}
}

// WithMaxListen caps a single listening session.
func WithMaxListen(d time.Duration) WhisperOption {
	return func(r *WhisperRecognizer) {
		if d > 0 {
			r.maxListen = d
		}
	}
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) WhisperOption {
	return func(r *WhisperRecognizer) {
		if dir != "" {
			r.tempDir = dir
		}
	}
}

// WithLocale records the language tag the model is expected to hear.
func WithLocale(tag string) WhisperOption {
	return func(r *WhisperRecognizer) {
		if tag != "" {
			r.locale = tag
		}
	}
}

// Compile-time interface check.
var _ Recognizer = (*WhisperRecognizer)(nil)

// WhisperRecognizer is a Recognizer backed by a local Whisper model.
//
// A session records fixed-length chunks and transcribes each one. Every
// non-empty chunk is reported as an interim result of the utterance so
// far. The session ends on trailing silence, on the max-listen deadline,
// or on Stop; the accumulated text is then emitted once as a final
// result.
type WhisperRecognizer struct {
	whisperBin string
	modelPath  string
	tempDir    string
	locale     string
	log        *logger.Logger

	chunk     time.Duration
	maxListen time.Duration

	// Hooks replaced in tests.
	probeDevice func() error
	record      func(ctx context.Context, d time.Duration) (string, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewWhisperRecognizer creates a recognizer that shells out to the
// whisper-cli binary with the given GGML model.
func NewWhisperRecognizer(whisperBin, modelPath string, log *logger.Logger, opts ...WhisperOption) *WhisperRecognizer {
	r := &WhisperRecognizer{
		whisperBin:  whisperBin,
		modelPath:   modelPath,
		tempDir:     DefaultWhisperTemp,
		locale:      DefaultLocale,
		log:         log,
		chunk:       DefaultChunk,
		maxListen:   DefaultMaxListen,
		probeDevice: HasCaptureDevice,
	}
	r.record = r.recordChunk
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe checks the binary, the model file and the microphone.
func (r *WhisperRecognizer) Probe() error {
	if _, err := exec.LookPath(r.whisperBin); err != nil {
		return fmt.Errorf("whisper binary %q: %w", r.whisperBin, err)
	}
	if _, err := os.Stat(r.modelPath); err != nil {
		return fmt.Errorf("whisper model: %w", err)
	}
	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return fmt.Errorf("whisper temp dir: %w", err)
	}
	return r.probeDevice()
}

// Start launches a listening session in the background.
func (r *WhisperRecognizer) Start(ctx context.Context, emit Emit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return domain.ErrAlreadyListening
	}
	sctx, cancel := context.WithTimeout(ctx, r.maxListen)
	r.running = true
	r.cancel = cancel

	go r.listen(sctx, cancel, emit)
	return nil
}

// Stop ends the running session. What was heard so far is finalized.
func (r *WhisperRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return domain.ErrNotListening
	}
	r.cancel()
	return nil
}

// ── Session loop ─────────────────────────────────────────────────

// Before the user starts talking, allow more silence. Once they've
// started, a shorter gap means they're done.
const (
	graceEmpty      = 4 // empty chunks tolerated before first speech
	postSpeechEmpty = 2 // empty chunks tolerated after speech started
)

func (r *WhisperRecognizer) listen(ctx context.Context, cancel context.CancelFunc, emit Emit) {
	defer func() {
		cancel()
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		emit(Event{Kind: EventEnded})
	}()

	r.log.Info("whisper: listening (chunk=%s, max=%s, locale=%s)", r.chunk, r.maxListen, r.locale)
	emit(Event{Kind: EventStarted})

	var parts []string
	emptyRuns := 0

	for ctx.Err() == nil {
		text, err := r.record(ctx, r.chunk)
		if err != nil {
			emit(Event{Kind: EventError, Err: err})
			return
		}

		text = cleanTranscription(text)
		if text == "" {
			emptyRuns++
			maxEmpty := graceEmpty
			if len(parts) > 0 {
				maxEmpty = postSpeechEmpty
			}
			if emptyRuns >= maxEmpty {
				r.log.Debug("whisper: silence detected, ending listen (heard_speech=%v)", len(parts) > 0)
				break
			}
			continue
		}

		emptyRuns = 0
		parts = append(parts, text)
		r.log.Debug("whisper: chunk %q", text)
		emit(Event{Kind: EventResult, Text: strings.Join(parts, " ")})
	}

	combined := strings.TrimSpace(strings.Join(parts, " "))
	if combined == "" {
		r.log.Debug("whisper: listening ended with no input")
		return
	}
	emit(Event{Kind: EventResult, Text: combined, Final: true})
}

// ── Recording ────────────────────────────────────────────────────

var errTranscriber = errors.New("transcriber failed")

// recordChunk records for up to d and returns the transcription.
// Cancelling ctx cuts the recording short but still transcribes what
// was captured.
func (r *WhisperRecognizer) recordChunk(ctx context.Context, d time.Duration) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := r.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		r.whisperBin,
		r.modelPath,
		r.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", fmt.Errorf("%w: init: %v", errTranscriber, err)
	}

	if err := t.Start(); err != nil {
		return "", fmt.Errorf("%w: start recording: %v", errTranscriber, err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()
	return result, nil
}
