package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hirewire/pipeline-go/domain/approval"
)

// FlowStore is an in-memory approval flow definition store.
type FlowStore struct {
	mu    sync.RWMutex
	flows map[string]approval.Flow
}

var _ approval.FlowStore = (*FlowStore)(nil)

// NewFlowStore creates an empty flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		flows: make(map[string]approval.Flow),
	}
}

// Put stores or replaces a flow.
func (s *FlowStore) Put(_ context.Context, f approval.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = f
	return nil
}

// Get returns a flow by ID.
func (s *FlowStore) Get(_ context.Context, id string) (approval.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, exists := s.flows[id]
	if !exists {
		return approval.Flow{}, fmt.Errorf("%w: %s", approval.ErrFlowNotFound, id)
	}
	return f, nil
}

// List returns all flows ordered by ID.
func (s *FlowStore) List(_ context.Context) ([]approval.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]approval.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
