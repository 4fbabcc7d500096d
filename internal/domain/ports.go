package domain

import "context"

// CompletionClient turns the trailing conversation plus a new utterance
// into a single generated reply. Implementations make at most one
// outbound call per invocation and must not mutate history.
//
// Failures are *ConfigError when no credential or endpoint is
// configured, *ServiceError for non-success responses, or a wrapped
// transport error.
type CompletionClient interface {
	Complete(ctx context.Context, history []Message, utterance string) (string, error)
}
