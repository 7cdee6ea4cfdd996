// Package ledger provides the authoritative record of candidate status
// transitions. All status writes go through Transition, which is the
// atomicity boundary for the whole pipeline.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// Ledger is the single source of truth for candidate statuses. It has
// no side effects beyond appending records; triggering automation from
// a transition is the caller's responsibility.
type Ledger struct {
	store Store
	clock func() time.Time
	mu    sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock, used by tests to simulate time.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// New creates a ledger over the given history store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Transition appends a status change for the candidate and returns the
// record. It rejects no-op transitions (same status) and any transition
// out of a terminal status. A candidate with no history is seeded by
// its first transition.
func (l *Ledger) Transition(ctx context.Context, candidateID string, to candidate.Status, source candidate.Source, changedBy, reason, ruleID string) (candidate.TransitionRecord, error) {
	if !to.Valid() {
		return candidate.TransitionRecord{}, candidate.ErrUnknownStatus
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var from candidate.Status
	latest, err := l.store.Latest(ctx, candidateID)
	switch {
	case err == nil:
		from = latest.To
		if from == to {
			return candidate.TransitionRecord{}, ErrNoopTransition
		}
		if from.IsTerminal() {
			return candidate.TransitionRecord{}, ErrTerminalStatus
		}
	case errors.Is(err, ErrNoHistory):
		// First record seeds the candidate's status.
	default:
		return candidate.TransitionRecord{}, err
	}

	rec := candidate.TransitionRecord{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		From:        from,
		To:          to,
		ChangedAt:   l.clock(),
		ChangedBy:   changedBy,
		Reason:      reason,
		Source:      source,
		RuleID:      ruleID,
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return candidate.TransitionRecord{}, err
	}
	return rec, nil
}

// CurrentStatus returns the latest record's target status.
func (l *Ledger) CurrentStatus(ctx context.Context, candidateID string) (candidate.Status, error) {
	latest, err := l.store.Latest(ctx, candidateID)
	if err != nil {
		return "", err
	}
	return latest.To, nil
}

// HistoryOf returns the ordered, immutable transition sequence.
func (l *Ledger) HistoryOf(ctx context.Context, candidateID string) ([]candidate.TransitionRecord, error) {
	return l.store.History(ctx, candidateID)
}

// TimeInStatus returns how long the candidate has held its current
// status as of now.
func (l *Ledger) TimeInStatus(ctx context.Context, candidateID string, now time.Time) (time.Duration, error) {
	latest, err := l.store.Latest(ctx, candidateID)
	if err != nil {
		return 0, err
	}
	return now.Sub(latest.ChangedAt), nil
}

// Candidates lists all candidates with ledger history.
func (l *Ledger) Candidates(ctx context.Context) ([]string, error) {
	return l.store.Candidates(ctx)
}
