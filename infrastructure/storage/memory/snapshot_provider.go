package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// SnapshotProvider is an in-memory candidate snapshot source. The real
// deployment reads from the candidate store service; this one is fed
// directly and used in tests and single-process setups.
type SnapshotProvider struct {
	mu        sync.RWMutex
	snapshots map[string]candidate.Snapshot
}

var _ candidate.SnapshotProvider = (*SnapshotProvider)(nil)

// NewSnapshotProvider creates an empty snapshot provider.
func NewSnapshotProvider() *SnapshotProvider {
	return &SnapshotProvider{
		snapshots: make(map[string]candidate.Snapshot),
	}
}

// Put stores a candidate snapshot.
func (p *SnapshotProvider) Put(snap candidate.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[snap.CandidateID] = snap
}

// Snapshot returns the current view of a candidate.
func (p *SnapshotProvider) Snapshot(_ context.Context, candidateID string) (candidate.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, exists := p.snapshots[candidateID]
	if !exists {
		return candidate.Snapshot{}, fmt.Errorf("%w: %s", candidate.ErrCandidateNotFound, candidateID)
	}
	return snap, nil
}

// SetStatus updates the status portion of a stored snapshot, keeping
// the provider consistent with ledger transitions in tests.
func (p *SnapshotProvider) SetStatus(candidateID string, status candidate.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, exists := p.snapshots[candidateID]
	if !exists {
		snap = candidate.Snapshot{CandidateID: candidateID}
	}
	snap.Status = status
	p.snapshots[candidateID] = snap
}
