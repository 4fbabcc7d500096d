package speech

import (
	"context"

	"github.com/hammamikhairi/maitri/internal/domain"
)

// Compile-time interface check.
var _ Recognizer = Unsupported{}

// Unsupported is the recognizer used when voice input is disabled or
// unavailable. Probe always fails, so the controller never calls Start.
type Unsupported struct {
	Reason error
}

// Probe reports the reason speech is unavailable.
func (u Unsupported) Probe() error {
	if u.Reason != nil {
		return u.Reason
	}
	return domain.ErrSpeechUnsupported
}

// Start always fails.
func (u Unsupported) Start(ctx context.Context, emit Emit) error {
	return domain.ErrSpeechUnsupported
}

// Stop always fails.
func (u Unsupported) Stop() error {
	return domain.ErrSpeechUnsupported
}
