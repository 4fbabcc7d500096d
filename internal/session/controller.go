// Package session binds user intent to the conversation timeline: it
// sends typed or dictated text, keeps a pending placeholder while the
// reply is generated and resolves it exactly once.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/maitri/internal/completion"
	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
	"github.com/hammamikhairi/maitri/internal/speech"
	"github.com/hammamikhairi/maitri/internal/timeline"
)

// Option configures the Controller.
type Option func(*Controller)

// WithGreeting sets the text of the seed bot message.
func WithGreeting(text string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(text) != "" {
			c.greeting = text
		}
	}
}

// WithReplyTimeout bounds each completion call. Zero disables the bound.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.replyTimeout = d
		}
	}
}

// WithWindow sets how many prior messages are handed to the client.
func WithWindow(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

// Controller owns one chat session: the timeline, the composing buffer
// and the single-flight sending flag. Speech input, when available,
// feeds finalized transcripts into the composing buffer.
type Controller struct {
	id     string
	client domain.CompletionClient
	speech *speech.Controller
	store  *timeline.Store
	log    *logger.Logger

	greeting     string
	window       int
	replyTimeout time.Duration

	mu        sync.Mutex
	sending   bool
	composing string

	subMu  sync.Mutex
	subs   map[int]func(Update)
	nextID int
}

// NewController creates a session seeded with a greeting. sp may be nil
// when no speech input is wired.
func NewController(client domain.CompletionClient, sp *speech.Controller, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		id:           uuid.NewString(),
		client:       client,
		speech:       sp,
		log:          log,
		greeting:     DefaultGreeting,
		window:       completion.DefaultWindow,
		replyTimeout: 60 * time.Second,
		subs:         make(map[int]func(Update)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.store = timeline.NewStore(log)
	seed := domain.Message{ID: c.store.NextID(), Author: domain.AuthorBot, Text: c.greeting, Status: domain.StatusFinal}
	if err := c.store.Append(seed); err != nil {
		log.Error("session: seed greeting: %v", err)
	}

	if sp != nil {
		sp.SetHandlers(c.onTranscript, c.onListenState)
	}

	log.Info("session %s started (window=%d, reply_timeout=%s, speech=%v)",
		c.id, c.window, c.replyTimeout, c.SpeechSupported())
	return c
}

// ID returns the session's unique identifier.
func (c *Controller) ID() string { return c.id }

// ── Observable state ─────────────────────────────────────────────

// Snapshot returns the timeline in conversation order.
func (c *Controller) Snapshot() []domain.Message {
	return c.store.Snapshot()
}

// Sending reports whether a reply is outstanding.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Composing returns the text not yet sent.
func (c *Controller) Composing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composing
}

// Listening reports whether speech input is capturing audio.
func (c *Controller) Listening() bool {
	return c.speech != nil && c.speech.Listening()
}

// SpeechSupported reports whether the mic control can be used at all.
func (c *Controller) SpeechSupported() bool {
	return c.speech != nil && c.speech.Supported()
}

// Subscribe registers fn for every subsequent update and returns a
// function that removes it. fn is called without session locks held,
// possibly from a background goroutine.
func (c *Controller) Subscribe(fn func(Update)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) publish(updates ...Update) {
	c.subMu.Lock()
	fns := make([]func(Update), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, u := range updates {
		for _, fn := range fns {
			fn(u)
		}
	}
}

// ── Input ────────────────────────────────────────────────────────

// SetComposing replaces the composing buffer.
func (c *Controller) SetComposing(text string) {
	c.mu.Lock()
	if c.composing == text {
		c.mu.Unlock()
		return
	}
	c.composing = text
	c.mu.Unlock()

	c.publish(Update{Kind: UpdateComposing, Composing: text})
}

// ToggleListening starts or stops speech input. It is a no-op when
// speech input is unsupported.
func (c *Controller) ToggleListening() {
	if c.speech == nil {
		return
	}
	c.speech.Toggle()
}

func (c *Controller) onTranscript(text string) {
	c.mu.Lock()
	if c.composing == "" {
		c.composing = text
	} else {
		c.composing = c.composing + " " + text
	}
	composing := c.composing
	c.mu.Unlock()

	c.publish(Update{Kind: UpdateComposing, Composing: composing})
}

func (c *Controller) onListenState(s domain.ListenState) {
	c.log.Debug("session %s: listen state %s", c.id, s)
	c.publish(Update{Kind: UpdateListening, Listen: s})
}

// ── Sending ──────────────────────────────────────────────────────

// Submit sends text as the user's next message. The user message and a
// pending bot placeholder are appended before Submit returns; the reply
// is generated in the background and the returned channel receives the
// resolved placeholder once.
//
// Whitespace-only text is rejected with ErrEmptyInput and text sent
// while a reply is outstanding with ErrBusy. Neither changes any state.
func (c *Controller) Submit(ctx context.Context, text string) (<-chan domain.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domain.ErrEmptyInput
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		c.log.Debug("session %s: submit dropped, reply pending", c.id)
		return nil, domain.ErrBusy
	}

	// The window is what the conversation looked like before this send.
	history := c.store.Snapshot()

	user := domain.Message{ID: c.store.NextID(), Author: domain.AuthorUser, Text: trimmed, Status: domain.StatusFinal}
	if err := c.store.Append(user); err != nil {
		c.mu.Unlock()
		c.log.Error("session %s: append user message: %v", c.id, err)
		return nil, err
	}
	c.composing = ""

	placeholder := domain.Message{ID: c.store.NextID(), Author: domain.AuthorBot, Text: Placeholder, Status: domain.StatusPending}
	if err := c.store.Append(placeholder); err != nil {
		c.mu.Unlock()
		c.log.Error("session %s: append placeholder: %v", c.id, err)
		return nil, err
	}
	c.sending = true
	c.mu.Unlock()

	c.log.Info("session %s: sending message %d (%d chars), placeholder %d", c.id, user.ID, len(trimmed), placeholder.ID)
	c.publish(
		Update{Kind: UpdateAppended, Message: user},
		Update{Kind: UpdateComposing, Composing: ""},
		Update{Kind: UpdateAppended, Message: placeholder},
		Update{Kind: UpdateSending, Sending: true},
	)

	done := make(chan domain.Message, 1)
	go c.reply(ctx, completion.Window(history, c.window), trimmed, placeholder.ID, done)
	return done, nil
}

// reply runs the completion call and resolves the placeholder. The
// sending flag is cleared on every path.
func (c *Controller) reply(ctx context.Context, window []domain.Message, utterance string, id domain.MessageID, done chan<- domain.Message) {
	defer close(done)

	var resolved domain.Message
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()

		c.publish(
			Update{Kind: UpdateResolved, Message: resolved},
			Update{Kind: UpdateSending, Sending: false},
		)
		done <- resolved
	}()

	text, status := c.complete(ctx, window, utterance)
	if !c.store.Resolve(id, text, status) {
		c.log.Warn("session %s: placeholder %d was already resolved", c.id, id)
	}

	msg, err := c.store.Get(id)
	if err != nil {
		c.log.Error("session %s: placeholder %d: %v", c.id, id, err)
	}
	resolved = msg
}

func (c *Controller) complete(ctx context.Context, window []domain.Message, utterance string) (string, domain.Status) {
	callCtx := ctx
	if c.replyTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.replyTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.client.Complete(callCtx, window, utterance)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = domain.ErrReplyTimeout
		}
		c.log.Warn("session %s: reply failed after %s: %v", c.id, elapsed, err)
		return errorText(err), domain.StatusError
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = completion.FallbackReply
	}
	c.log.Info("session %s: reply received in %s (%d chars)", c.id, elapsed, len(text))
	return text, domain.StatusFinal
}
