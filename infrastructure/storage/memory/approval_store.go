package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hirewire/pipeline-go/domain/approval"
)

// ApprovalStore is an in-memory approval request store.
type ApprovalStore struct {
	mu       sync.RWMutex
	requests map[string]*approval.Request
}

var _ approval.Store = (*ApprovalStore)(nil)

// NewApprovalStore creates an empty approval store.
func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		requests: make(map[string]*approval.Request),
	}
}

// Create stores a new request.
func (s *ApprovalStore) Create(_ context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("approval request %s already exists", r.ID)
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

// Get returns a request by ID.
func (s *ApprovalStore) Get(_ context.Context, id string) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.requests[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", approval.ErrRequestNotFound, id)
	}
	return r.Clone(), nil
}

// Update replaces a stored request.
func (s *ApprovalStore) Update(_ context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; !exists {
		return fmt.Errorf("%w: %s", approval.ErrRequestNotFound, r.ID)
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

// ListPending returns unresolved requests, oldest first.
func (s *ApprovalStore) ListPending(_ context.Context) ([]*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*approval.Request
	for _, r := range s.requests {
		if !r.Status.Terminal() {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
