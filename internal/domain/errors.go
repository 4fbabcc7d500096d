package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrAlreadyListening  = errors.New("already listening")
	ErrNotListening      = errors.New("not listening")
	ErrSpeechUnsupported = errors.New("speech input not supported")
	ErrReplyTimeout      = errors.New("the reply timed out")
	ErrEmptyInput        = errors.New("empty input")
	ErrBusy              = errors.New("a reply is already pending")
)

// ConfigError reports a missing or invalid credential or endpoint. It
// is raised before any network call is attempted.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ServiceError reports a non-success response from the completion
// service.
type ServiceError struct {
	StatusCode int
	Msg        string
}

func (e *ServiceError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("completion service error: %d", e.StatusCode)
	}
	return fmt.Sprintf("completion service error: %d %s", e.StatusCode, e.Msg)
}

// SpeechError wraps a failure from the speech capability. Speech errors
// are recovered locally and never reach the timeline.
type SpeechError struct {
	Op  string
	Err error
}

func (e *SpeechError) Error() string {
	if e.Err == nil {
		return "speech " + e.Op + " failed"
	}
	return "speech " + e.Op + ": " + e.Err.Error()
}

func (e *SpeechError) Unwrap() error { return e.Err }
