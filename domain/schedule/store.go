package schedule

import (
	"context"
	"time"
)

// Store persists scheduled jobs across restarts.
type Store interface {
	// Put stores a job. Returns ErrJobExists for a duplicate key,
	// which keeps re-delivered events from double-scheduling.
	Put(ctx context.Context, job Job) error

	// Cancel removes a pending job. Removing an absent key returns
	// ErrJobNotFound.
	Cancel(ctx context.Context, key Key) error

	// Claim removes and returns all jobs due at or before now. Each
	// job is returned exactly once; delivery to the executor is
	// at-least-once overall, so execution must be idempotent.
	Claim(ctx context.Context, now time.Time) ([]Job, error)

	// Pending returns all stored jobs, soonest first.
	Pending(ctx context.Context) ([]Job, error)
}
