package session

import "github.com/hammamikhairi/maitri/internal/domain"

// UpdateKind identifies what changed in the session.
type UpdateKind int

const (
	// UpdateAppended means Message was added to the timeline.
	UpdateAppended UpdateKind = iota
	// UpdateResolved means the pending Message received its outcome.
	UpdateResolved
	// UpdateComposing means the composing buffer is now Composing.
	UpdateComposing
	// UpdateSending means the sending flag is now Sending.
	UpdateSending
	// UpdateListening means the listen state is now Listen.
	UpdateListening
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAppended:
		return "appended"
	case UpdateResolved:
		return "resolved"
	case UpdateComposing:
		return "composing"
	case UpdateSending:
		return "sending"
	case UpdateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Update describes one observable change. Only the fields that belong
// to Kind are set.
type Update struct {
	Kind      UpdateKind
	Message   domain.Message
	Composing string
	Sending   bool
	Listen    domain.ListenState
}
