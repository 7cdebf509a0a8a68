package gateway

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMissingToken         = errors.New("token is required")
	ErrNoEndpoint           = errors.New("no gateway endpoint")
	ErrAlreadyConnected     = errors.New("already connected")
	ErrNotConnected         = errors.New("not connected")
	ErrClientClosed         = errors.New("client closed")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// CloseError is a fatal close received from the gateway.
type CloseError struct {
	Code   int
	Reason string
	err    error
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway closed with code %d", e.Code)
	}
	return fmt.Sprintf("gateway closed with code %d: %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error {
	return e.err
}

// Fatal reports whether the code forbids reconnecting.
func (e *CloseError) Fatal() bool {
	return isFatalClose(e.Code)
}
