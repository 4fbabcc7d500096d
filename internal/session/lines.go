package session

// Canned timeline text.
const (
	// DefaultGreeting seeds every new session.
	DefaultGreeting = "Welcome to Chat! Type or use the mic to speak."

	// Placeholder is the text of a bot message awaiting its reply.
	Placeholder = "…"

	// ErrorPrefix starts the text of a placeholder resolved to a failure.
	ErrorPrefix = "Error: "
)

// errorText renders a failure as placeholder text.
func errorText(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = "Failed to get response."
	}
	return ErrorPrefix + msg
}
