package mux

import "errors"

var (
	// ErrAlreadyDestroyed is returned by CreateStream once Destroy was called.
	ErrAlreadyDestroyed = errors.New("objmux: multiplexer already destroyed")

	// ErrAlreadyEnded is returned by CreateStream once End was called.
	ErrAlreadyEnded = errors.New("objmux: multiplexer already ended")

	// ErrDuplicateChannel is returned by CreateStream when the name is taken.
	ErrDuplicateChannel = errors.New("objmux: channel already exists")

	// ErrChannelClosed is returned when writing to a channel that can no
	// longer send, and when receiving from a locally destroyed channel.
	ErrChannelClosed = errors.New("objmux: channel closed")

	// ErrDisconnected wraps the cause of a multiplexer teardown as seen
	// from its channels.
	ErrDisconnected = errors.New("objmux: disconnected")

	// ErrAlreadyAttached is returned by Attach when a connection is bound.
	ErrAlreadyAttached = errors.New("objmux: multiplexer already attached")
)

// disconnectError reports a multiplexer teardown to channels. It matches
// ErrDisconnected and, through Unwrap, the original cause.
type disconnectError struct {
	cause error
}

func (e *disconnectError) Error() string {
	if e.cause == nil {
		return ErrDisconnected.Error()
	}
	return ErrDisconnected.Error() + ": " + e.cause.Error()
}

func (e *disconnectError) Is(target error) bool {
	return target == ErrDisconnected
}

func (e *disconnectError) Unwrap() error {
	return e.cause
}
