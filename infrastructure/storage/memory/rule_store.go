// Package memory provides in-memory store implementations, used for
// tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hirewire/pipeline-go/domain/rule"
)

// RuleStore is an in-memory rule repository.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*rule.Rule
}

var _ rule.Repository = (*RuleStore)(nil)

// NewRuleStore creates an empty rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{
		rules: make(map[string]*rule.Rule),
	}
}

// Create stores a new rule, assigning an ID if empty.
func (s *RuleStore) Create(_ context.Context, r *rule.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.ID]; exists {
		return fmt.Errorf("%w: %s", rule.ErrRuleExists, r.ID)
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

// Update replaces an existing rule.
func (s *RuleStore) Update(_ context.Context, r *rule.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.ID]; !exists {
		return fmt.Errorf("%w: %s", rule.ErrRuleNotFound, r.ID)
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

// Delete removes a rule.
func (s *RuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("%w: %s", rule.ErrRuleNotFound, id)
	}
	delete(s.rules, id)
	return nil
}

// SetActive toggles a rule.
func (s *RuleStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.rules[id]
	if !exists {
		return fmt.Errorf("%w: %s", rule.ErrRuleNotFound, id)
	}
	r.IsActive = active
	return nil
}

// Get returns a rule by ID.
func (s *RuleStore) Get(_ context.Context, id string) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", rule.ErrRuleNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// List returns all rules ordered by ID.
func (s *RuleStore) List(_ context.Context) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListActive returns active rules ordered by ID.
func (s *RuleStore) ListActive(ctx context.Context) ([]*rule.Rule, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, r := range all {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

// Replace swaps the whole rule set atomically. Used by rule file hot
// reload so a partially applied set is never observed.
func (s *RuleStore) Replace(_ context.Context, rules []rule.Rule) error {
	next := make(map[string]*rule.Rule, len(rules))
	for i := range rules {
		r := rules[i]
		if err := r.Validate(); err != nil {
			return err
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if _, dup := next[r.ID]; dup {
			return fmt.Errorf("%w: %s", rule.ErrRuleExists, r.ID)
		}
		next[r.ID] = &r
	}

	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	return nil
}
