// Package speech provides speech-to-text input and text-to-speech
// output for the chat session.
package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// Controller exposes a Recognizer as a toggleable input channel with an
// idle/listening/unsupported state machine.
//
// Lifecycle:
//  1. The recognizer is probed once at construction. A failed probe
//     makes the controller permanently unsupported and every other
//     operation a no-op.
//  2. Start moves idle → listening when the recognizer accepts the
//     request. A rejected start is logged and ignored.
//  3. Stop, the natural end of an utterance, or a recognizer error
//     move listening → idle.
//
// Only finalized transcripts reach the transcript handler; interim
// results are dropped.
type Controller struct {
	rec Recognizer
	ctx context.Context
	log *logger.Logger

	mu      sync.Mutex
	state   domain.ListenState
	gen     uint64 // latest start attempt; only it may change the state
	active  uint64 // latest session the recognizer accepted; older ones are stale
	onFinal func(string)
	onState func(domain.ListenState)
}

// NewController probes the recognizer and returns a controller bound to
// ctx for the lifetime of its listening sessions.
func NewController(ctx context.Context, rec Recognizer, log *logger.Logger) *Controller {
	c := &Controller{rec: rec, ctx: ctx, log: log, state: domain.ListenIdle}
	if rec == nil {
		c.state = domain.ListenUnsupported
		log.Info("speech: no recognizer, voice input disabled")
		return c
	}
	if err := rec.Probe(); err != nil {
		c.state = domain.ListenUnsupported
		log.Info("speech: voice input unsupported: %v", err)
	}
	return c
}

// SetHandlers registers the finalized-transcript and state-change
// callbacks. Either may be nil. Callbacks run without the controller's
// lock held.
func (c *Controller) SetHandlers(onFinal func(string), onState func(domain.ListenState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinal = onFinal
	c.onState = onState
}

// Supported reports whether the probe found a usable capability.
func (c *Controller) Supported() bool {
	return c.State() != domain.ListenUnsupported
}

// State returns the current listen state.
func (c *Controller) State() domain.ListenState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listening reports whether audio is being captured.
func (c *Controller) Listening() bool {
	return c.State() == domain.ListenListening
}

// Start begins a listening session. Failures are swallowed; the state
// stays idle.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.state != domain.ListenIdle {
		c.mu.Unlock()
		return
	}
	// Listening is set before the recognizer starts so that an end or
	// error delivered during Start is applied to this session.
	c.gen++
	gen := c.gen
	c.state = domain.ListenListening
	c.mu.Unlock()

	if err := c.rec.Start(c.ctx, c.emitter(gen)); err != nil {
		// The previous session stays active: a recognizer that is still
		// finishing it rejects the start, and its final result must land.
		c.mu.Lock()
		if c.gen == gen && c.state == domain.ListenListening {
			c.state = domain.ListenIdle
		}
		c.mu.Unlock()
		c.log.Warn("%v", &domain.SpeechError{Op: "start", Err: err})
		return
	}

	c.mu.Lock()
	if gen > c.active {
		c.active = gen
	}
	if c.gen != gen || c.state != domain.ListenListening {
		c.mu.Unlock()
		return
	}
	onState := c.onState
	c.mu.Unlock()

	c.log.Debug("speech: listening (session %d)", gen)
	if onState != nil {
		onState(domain.ListenListening)
	}
}

// Stop ends the current listening session. The state becomes idle even
// if the recognizer reports a failure, so the surface never shows
// listening while nothing is captured.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != domain.ListenListening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.rec.Stop(); err != nil {
		c.log.Warn("%v", &domain.SpeechError{Op: "stop", Err: err})
	}
	c.toIdle()
}

// Toggle starts listening when idle and stops when listening.
func (c *Controller) Toggle() {
	switch c.State() {
	case domain.ListenIdle:
		c.Start()
	case domain.ListenListening:
		c.Stop()
	}
}

func (c *Controller) emitter(gen uint64) Emit {
	return func(ev Event) { c.handle(gen, ev) }
}

// handle applies a recognizer event. Results are accepted after Stop as
// long as the recognizer has not accepted a newer session, so a stop
// finalizes what was said. Ends and errors only change the state for the
// latest start attempt.
func (c *Controller) handle(gen uint64, ev Event) {
	c.mu.Lock()
	stale := gen < c.active
	current := gen == c.gen
	onFinal := c.onFinal
	c.mu.Unlock()

	if stale {
		c.log.Debug("speech: dropping stale %s event from session %d", ev.Kind, gen)
		return
	}

	switch ev.Kind {
	case EventStarted:
		c.log.Debug("speech: recognizer started")
	case EventResult:
		if !ev.Final {
			c.log.Debug("speech: interim %q", ev.Text)
			return
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		c.log.Info("speech: heard %q", text)
		if onFinal != nil {
			onFinal(text)
		}
	case EventError:
		c.log.Warn("%v", &domain.SpeechError{Op: "recognition", Err: ev.Err})
		if current {
			c.toIdle()
		}
	case EventEnded:
		if current {
			c.toIdle()
		}
	}
}

func (c *Controller) toIdle() {
	c.mu.Lock()
	if c.state != domain.ListenListening {
		c.mu.Unlock()
		return
	}
	c.state = domain.ListenIdle
	onState := c.onState
	c.mu.Unlock()

	c.log.Debug("speech: idle")
	if onState != nil {
		onState(domain.ListenIdle)
	}
}
