package domain

// ListenState is the state of the speech input channel.
type ListenState int

const (
	ListenIdle ListenState = iota
	ListenListening
	// ListenUnsupported is terminal: the platform has no speech capability.
	ListenUnsupported
)

// String returns a human-readable listen state.
func (s ListenState) String() string {
	switch s {
	case ListenIdle:
		return "idle"
	case ListenListening:
		return "listening"
	case ListenUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}
