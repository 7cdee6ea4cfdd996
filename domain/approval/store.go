package approval

import "context"

// Store persists approval requests.
type Store interface {
	// Create stores a new request.
	Create(ctx context.Context, r *Request) error

	// Get returns a request by ID.
	Get(ctx context.Context, id string) (*Request, error)

	// Update replaces a stored request after step resolution.
	Update(ctx context.Context, r *Request) error

	// ListPending returns all requests still awaiting resolution.
	ListPending(ctx context.Context) ([]*Request, error)
}

// FlowStore holds the configured approval flow definitions.
type FlowStore interface {
	// Put stores or replaces a flow definition.
	Put(ctx context.Context, f Flow) error

	// Get returns a flow by ID. Returns ErrFlowNotFound when absent.
	Get(ctx context.Context, id string) (Flow, error)

	// List returns all flow definitions.
	List(ctx context.Context) ([]Flow, error)
}
