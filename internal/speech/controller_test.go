package speech

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// fakeRecognizer records calls and lets the test drive events.
type fakeRecognizer struct {
	mu       sync.Mutex
	probeErr error
	startErr error
	stopErr  error
	starts   int
	stops    int
	emit     Emit
}

func (f *fakeRecognizer) Probe() error { return f.probeErr }

func (f *fakeRecognizer) Start(ctx context.Context, emit Emit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.emit = emit
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeRecognizer) send(ev Event) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	emit(ev)
}

type recorded struct {
	mu     sync.Mutex
	finals []string
	states []domain.ListenState
}

func (r *recorded) onFinal(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, s)
}

func (r *recorded) onState(s domain.ListenState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func newController(t *testing.T, rec Recognizer) (*Controller, *recorded) {
	t.Helper()
	c := NewController(context.Background(), rec, logger.New(logger.LevelOff, nil))
	r := &recorded{}
	c.SetHandlers(r.onFinal, r.onState)
	return c, r
}

func TestUnsupportedIsPermanent(t *testing.T) {
	rec := &fakeRecognizer{probeErr: errors.New("no mic")}
	c, r := newController(t, rec)

	assert.False(t, c.Supported())
	assert.Equal(t, domain.ListenUnsupported, c.State())

	c.Start()
	c.Toggle()
	c.Stop()

	assert.False(t, c.Listening())
	assert.Equal(t, domain.ListenUnsupported, c.State())
	assert.Zero(t, rec.starts)
	assert.Zero(t, rec.stops)
	assert.Empty(t, r.states)
}

func TestNilRecognizerIsUnsupported(t *testing.T) {
	c, _ := newController(t, nil)
	c.Toggle()
	assert.Equal(t, domain.ListenUnsupported, c.State())
}

func TestToggleStartsAndStops(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)

	c.Toggle()
	assert.True(t, c.Listening())
	c.Toggle()
	assert.False(t, c.Listening())

	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, 1, rec.stops)
	assert.Equal(t, []domain.ListenState{domain.ListenListening, domain.ListenIdle}, r.states)
}

func TestRejectedStartStaysIdle(t *testing.T) {
	rec := &fakeRecognizer{startErr: errors.New("permission denied")}
	c, r := newController(t, rec)

	c.Start()
	assert.Equal(t, domain.ListenIdle, c.State())
	assert.Empty(t, r.states)
	assert.True(t, c.Supported())
}

func TestFailedStopStillGoesIdle(t *testing.T) {
	rec := &fakeRecognizer{stopErr: errors.New("already stopped")}
	c, _ := newController(t, rec)

	c.Start()
	require.True(t, c.Listening())
	c.Stop()
	assert.Equal(t, domain.ListenIdle, c.State())
}

func TestOnlyFinalResultsAreCommitted(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)
	c.Start()

	rec.send(Event{Kind: EventStarted})
	rec.send(Event{Kind: EventResult, Text: "hel"})
	rec.send(Event{Kind: EventResult, Text: "hello there"})
	rec.send(Event{Kind: EventResult, Text: "  hello there  ", Final: true})
	rec.send(Event{Kind: EventResult, Text: "   ", Final: true})
	rec.send(Event{Kind: EventEnded})

	assert.Equal(t, []string{"hello there"}, r.finals)
	assert.Equal(t, domain.ListenIdle, c.State())
}

func TestErrorReturnsToIdle(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)
	c.Start()

	rec.send(Event{Kind: EventError, Err: errors.New("no-speech")})

	assert.Equal(t, domain.ListenIdle, c.State())
	assert.Equal(t, []domain.ListenState{domain.ListenListening, domain.ListenIdle}, r.states)
	assert.Empty(t, r.finals)
}

func TestFinalAfterStopIsKept(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)
	c.Start()
	c.Stop()

	rec.send(Event{Kind: EventResult, Text: "late words", Final: true})
	rec.send(Event{Kind: EventEnded})

	assert.Equal(t, []string{"late words"}, r.finals)
}

func TestStaleSessionEventsIgnored(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)

	c.Start()
	rec.mu.Lock()
	old := rec.emit
	rec.mu.Unlock()
	c.Stop()
	c.Start()

	old(Event{Kind: EventResult, Text: "old", Final: true})
	old(Event{Kind: EventEnded})

	assert.Empty(t, r.finals)
	assert.True(t, c.Listening())
}

func TestRejectedRestartKeepsFinishingSession(t *testing.T) {
	rec := &fakeRecognizer{}
	c, r := newController(t, rec)

	c.Start()
	rec.mu.Lock()
	old := rec.emit
	rec.mu.Unlock()
	c.Stop()

	// The recognizer is still transcribing the last chunk.
	rec.mu.Lock()
	rec.startErr = domain.ErrAlreadyListening
	rec.mu.Unlock()
	c.Start()
	require.Equal(t, domain.ListenIdle, c.State())

	old(Event{Kind: EventResult, Text: "still heard", Final: true})
	old(Event{Kind: EventEnded})

	assert.Equal(t, []string{"still heard"}, r.finals)
	assert.Equal(t, domain.ListenIdle, c.State())

	// Once the recognizer is free a new session supersedes the old one.
	rec.mu.Lock()
	rec.startErr = nil
	rec.mu.Unlock()
	c.Start()
	require.True(t, c.Listening())
	old(Event{Kind: EventResult, Text: "too late", Final: true})
	old(Event{Kind: EventEnded})

	assert.Equal(t, []string{"still heard"}, r.finals)
	assert.True(t, c.Listening())
}
