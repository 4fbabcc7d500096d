// Package domain defines the core types and interfaces for the chat
// session engine. All other packages depend on domain; domain depends
// on nothing.
package domain

// MessageID identifies a message within a session. IDs increase
// monotonically and are never reused.
type MessageID int64

// Author says who wrote a message.
type Author int

const (
	AuthorUser Author = iota
	AuthorBot
)

// String returns a human-readable author.
func (a Author) String() string {
	switch a {
	case AuthorUser:
		return "user"
	case AuthorBot:
		return "bot"
	default:
		return "unknown"
	}
}

// Valid reports whether a is a known author.
func (a Author) Valid() bool {
	return a == AuthorUser || a == AuthorBot
}

// Status tracks the lifecycle of a message. Only bot placeholders are
// ever pending, and a pending message is resolved exactly once.
type Status int

const (
	StatusFinal Status = iota
	StatusPending
	StatusError
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusFinal:
		return "final"
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a single entry in the conversation timeline.
type Message struct {
	ID     MessageID
	Author Author
	Text   string
	Status Status
}

// IsPending reports whether the message is an unresolved placeholder.
func (m Message) IsPending() bool { return m.Status == StatusPending }
