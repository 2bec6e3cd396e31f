package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownChannel means the caller referenced a channel outside the
	// declared contract. Programmer error; caught without touching the
	// transport.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrDuplicateChannel means a handler was registered twice for the
	// same channel. Startup-time fatal.
	ErrDuplicateChannel = errors.New("duplicate channel registration")

	// ErrShapeMismatch means the channel exists in the contract but with a
	// different shape than the operation requires.
	ErrShapeMismatch = errors.New("channel shape mismatch")

	// ErrRequestTimeout means no response arrived within the deadline.
	// The pending entry is removed; a late response will be dropped.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportClosed means the underlying transport was severed. All
	// pending requests resolve with this; the bridge is unusable until a
	// new transport is established.
	ErrTransportClosed = errors.New("transport closed")

	// ErrHandlerFailure is the sentinel matched by HandlerError values.
	ErrHandlerFailure = errors.New("handler failure")
)

// HandlerError is the caller-side view of a host handler that failed while
// producing a response. The request still resolved: failure arrives as an
// error-bearing response, never as a timeout.
type HandlerError struct {
	Channel string
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failure on %s: %s", e.Channel, e.Message)
}

// Is lets errors.Is(err, ErrHandlerFailure) match HandlerError values.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailure
}
