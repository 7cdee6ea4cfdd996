package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/ledger"
)

// HistoryStore is an in-memory transition record store.
type HistoryStore struct {
	mu      sync.RWMutex
	history map[string][]candidate.TransitionRecord
}

var _ ledger.Store = (*HistoryStore)(nil)

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		history: make(map[string][]candidate.TransitionRecord),
	}
}

// Append persists a transition record.
func (s *HistoryStore) Append(_ context.Context, rec candidate.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[rec.CandidateID] = append(s.history[rec.CandidateID], rec)
	return nil
}

// History returns all records for a candidate, oldest first.
func (s *HistoryStore) History(_ context.Context, candidateID string) ([]candidate.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[candidateID]
	out := make([]candidate.TransitionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// Latest returns the most recent record for a candidate.
func (s *HistoryStore) Latest(_ context.Context, candidateID string) (candidate.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[candidateID]
	if len(recs) == 0 {
		return candidate.TransitionRecord{}, ledger.ErrNoHistory
	}
	return recs[len(recs)-1], nil
}

// Candidates lists all candidate IDs with history.
func (s *HistoryStore) Candidates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.history))
	for id := range s.history {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
