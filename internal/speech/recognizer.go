package speech

import "context"

// EventKind classifies a recognizer event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventResult
	EventEnded
	EventError
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResult:
		return "result"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered by a Recognizer while a listening session runs.
// Result events carry Text; Final is false for interim guesses.
type Event struct {
	Kind  EventKind
	Text  string
	Final bool
	Err   error
}

// Emit receives recognizer events. It may be called from any goroutine.
type Emit func(Event)

// Recognizer is a platform speech-to-text capability with a single
// active session at a time.
type Recognizer interface {
	// Probe reports whether the capability is usable. A non-nil error
	// means speech input is unsupported.
	Probe() error
	// Start begins a listening session. Events flow through emit until
	// an EventEnded, which is always the last event of a session.
	Start(ctx context.Context, emit Emit) error
	// Stop ends the running session. Results recognized so far are
	// finalized before EventEnded.
	Stop() error
}
