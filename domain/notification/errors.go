package notification

import "errors"

// Domain errors for notification delivery.
var (
	// ErrInvalidMessage indicates a malformed message. Not retried.
	ErrInvalidMessage = errors.New("invalid notification message")

	// ErrEndpointUnavailable indicates a transient delivery failure.
	ErrEndpointUnavailable = errors.New("notification endpoint unavailable")

	// ErrEndpointRejected indicates the endpoint refused the message.
	// Not retried.
	ErrEndpointRejected = errors.New("notification endpoint rejected message")

	// ErrNotifierClosed is returned when dispatching after Close.
	ErrNotifierClosed = errors.New("notifier closed")
)
