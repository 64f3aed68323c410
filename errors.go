package chatstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrSuperseded is the cancellation cause of a session replaced by a newer turn.
	ErrSuperseded = errors.New("session superseded by a newer turn")

	// ErrBufferOverflow indicates the pending frame buffer grew past its limit
	// without yielding a decodable event.
	ErrBufferOverflow = errors.New("pending buffer limit exceeded")

	// ErrMessageFrozen indicates a fragment was offered to a finalized message.
	ErrMessageFrozen = errors.New("message is frozen")
)

// StatusError is returned by a Transport when the backend answers with a
// non-success HTTP status.
type StatusError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the backend's error description, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
