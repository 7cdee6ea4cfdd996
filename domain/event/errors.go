package event

import "errors"

// Domain errors for event submission.
var (
	// ErrInvalidEvent is returned when an event is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrDepthExceeded is returned when a cascade chain exceeds the
	// configured bound.
	ErrDepthExceeded = errors.New("cascade depth exceeded")

	// ErrDispatcherClosed is returned when submitting to a stopped
	// dispatcher.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)
