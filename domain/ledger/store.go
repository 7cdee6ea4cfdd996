package ledger

import (
	"context"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// Store persists transition records. Implementations may be in-memory,
// SQLite, or PostgreSQL; records are immutable once appended.
type Store interface {
	// Append persists a record. Records for one candidate arrive in
	// ChangedAt order because the ledger serializes writes.
	Append(ctx context.Context, rec candidate.TransitionRecord) error

	// History returns all records for a candidate, oldest first.
	History(ctx context.Context, candidateID string) ([]candidate.TransitionRecord, error)

	// Latest returns the most recent record for a candidate.
	// Returns ErrNoHistory when the candidate has none.
	Latest(ctx context.Context, candidateID string) (candidate.TransitionRecord, error)

	// Candidates lists all candidate IDs with at least one record.
	Candidates(ctx context.Context) ([]string, error)
}
