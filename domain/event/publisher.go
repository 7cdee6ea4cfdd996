package event

import "context"

// Publisher accepts events for rule evaluation. The dispatcher in the
// application layer is the canonical implementation; tests may supply
// recording fakes.
type Publisher interface {
	// Publish submits an event. Events for the same candidate are
	// processed in submission order.
	Publish(ctx context.Context, evt Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, evt Event) error

// Publish calls the wrapped function.
func (f PublisherFunc) Publish(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
