package completion

import (
	"context"
	"time"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// DefaultEchoReply is the canned answer of the demo backend.
const DefaultEchoReply = "I'm just a demo chat. Your video area is ready!"

// DefaultEchoDelay mimics network latency in the demo backend.
const DefaultEchoDelay = 900 * time.Millisecond

// Compile-time interface check.
var _ domain.CompletionClient = (*EchoClient)(nil)

// EchoClient is a deterministic offline backend. It never fails except
// when the context is cancelled.
type EchoClient struct {
	reply string
	delay time.Duration
	log   *logger.Logger
}

// NewEchoClient creates the demo backend. An empty reply means
// DefaultEchoReply.
func NewEchoClient(reply string, delay time.Duration, log *logger.Logger) *EchoClient {
	if reply == "" {
		reply = DefaultEchoReply
	}
	if delay < 0 {
		delay = 0
	}
	return &EchoClient{reply: reply, delay: delay, log: log}
}

// Complete waits for the configured delay and returns the canned reply.
func (e *EchoClient) Complete(ctx context.Context, history []domain.Message, utterance string) (string, error) {
	e.log.Debug("echo: %q (history=%d)", logger.Clip(utterance, 60), len(history))
	if e.delay == 0 {
		return e.reply, ctx.Err()
	}

	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return e.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
