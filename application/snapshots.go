package application

import (
	"context"
	"errors"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/ledger"
)

// StatusOverlayProvider decorates a snapshot provider with the ledger's
// authoritative status. The candidate store collaborator may lag behind
// a transition that just committed; rule evaluation must not.
type StatusOverlayProvider struct {
	base   candidate.SnapshotProvider
	ledger *ledger.Ledger
}

var _ candidate.SnapshotProvider = (*StatusOverlayProvider)(nil)

// NewStatusOverlayProvider wraps base with ledger status overlay.
func NewStatusOverlayProvider(base candidate.SnapshotProvider, led *ledger.Ledger) *StatusOverlayProvider {
	return &StatusOverlayProvider{base: base, ledger: led}
}

// Snapshot returns the base snapshot with Status and StatusChangedAt
// replaced from the ledger when the candidate has ledger history.
func (p *StatusOverlayProvider) Snapshot(ctx context.Context, candidateID string) (candidate.Snapshot, error) {
	snap, err := p.base.Snapshot(ctx, candidateID)
	if err != nil {
		return candidate.Snapshot{}, err
	}

	history, err := p.ledger.HistoryOf(ctx, candidateID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoHistory) {
			return snap, nil
		}
		return candidate.Snapshot{}, err
	}
	if len(history) > 0 {
		latest := history[len(history)-1]
		snap.Status = latest.To
		snap.StatusChangedAt = latest.ChangedAt
	}
	return snap, nil
}
