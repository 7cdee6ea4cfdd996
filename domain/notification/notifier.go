package notification

import "context"

// Notifier delivers notifications to the external channel collaborator.
type Notifier interface {
	// Dispatch sends a message. A nil error means the collaborator
	// accepted it; delivery itself is acknowledged asynchronously.
	Dispatch(ctx context.Context, msg Message) error

	// Close releases any resources held by the notifier.
	Close() error
}
