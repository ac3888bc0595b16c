package core

import "errors"

// Error codes for domain and protocol errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRateLimited    = "rate_limited"
)

// ErrHubStopped is returned by calls made after the hub loop exited.
var ErrHubStopped = errors.New("hub stopped")

// Close reasons reported through Client.CloseReason.
const (
	CloseReasonShutdown     = "server shutting down"
	CloseReasonSlowConsumer = "slow consumer"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewError builds a CoreError for layers outside core.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}
