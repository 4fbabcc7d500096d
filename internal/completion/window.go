// Package completion provides the clients that turn a conversation
// window plus a new utterance into a generated reply.
package completion

import "github.com/hammamikhairi/maitri/internal/domain"

// DefaultWindow is how many prior messages are sent with each request.
const DefaultWindow = 8

// Role names on the wire.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one role-tagged entry of a request, oldest first.
type Turn struct {
	Role    string
	Content string
}

// Window returns the trailing n messages of history that are eligible
// to be sent as context. Pending placeholders and error replies are not
// conversation content and are skipped. n <= 0 means DefaultWindow.
func Window(history []domain.Message, n int) []domain.Message {
	if n <= 0 {
		n = DefaultWindow
	}

	eligible := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Status != domain.StatusFinal || m.Text == "" {
			continue
		}
		eligible = append(eligible, m)
	}

	if len(eligible) > n {
		eligible = eligible[len(eligible)-n:]
	}
	return eligible
}

// BuildTurns maps the trailing window of history to role-tagged turns
// and appends the new utterance as the final user turn.
func BuildTurns(history []domain.Message, utterance string, n int) []Turn {
	window := Window(history, n)
	turns := make([]Turn, 0, len(window)+1)
	for _, m := range window {
		role := RoleModel
		if m.Author == domain.AuthorUser {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	return append(turns, Turn{Role: RoleUser, Content: utterance})
}
