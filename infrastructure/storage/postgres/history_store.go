// Package postgres provides PostgreSQL-backed implementations of
// storage interfaces, for multi-instance deployments.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/ledger"
)

// HistoryStore is a PostgreSQL-backed implementation of ledger.Store.
type HistoryStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ ledger.Store = (*HistoryStore)(nil)

// NewHistoryStore creates a new PostgreSQL history store.
func NewHistoryStore(pool *pgxpool.Pool, schema string) *HistoryStore {
	if schema == "" {
		schema = "public"
	}
	return &HistoryStore{pool: pool, schema: schema}
}

// Migrate creates the status_history table if it does not exist.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			changed_at TIMESTAMPTZ NOT NULL,
			changed_by TEXT NOT NULL,
			reason TEXT,
			source TEXT NOT NULL,
			rule_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_history_candidate_changed
			ON %s (candidate_id, changed_at);
	`, s.tableName(), s.tableName())
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *HistoryStore) tableName() string {
	return fmt.Sprintf("%s.status_history", s.schema)
}

// Append persists a transition record.
func (s *HistoryStore) Append(ctx context.Context, rec candidate.TransitionRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.tableName())
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.CandidateID, string(rec.From), string(rec.To),
		rec.ChangedAt, rec.ChangedBy, rec.Reason, string(rec.Source), rec.RuleID,
	)
	return err
}

// History returns all records for a candidate, oldest first.
func (s *HistoryStore) History(ctx context.Context, candidateID string) ([]candidate.TransitionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id
		FROM %s WHERE candidate_id = $1 ORDER BY changed_at ASC, id ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate.TransitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest returns the most recent record for a candidate.
func (s *HistoryStore) Latest(ctx context.Context, candidateID string) (candidate.TransitionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id
		FROM %s WHERE candidate_id = $1 ORDER BY changed_at DESC, id DESC LIMIT 1
	`, s.tableName())

	row := s.pool.QueryRow(ctx, query, candidateID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return candidate.TransitionRecord{}, ledger.ErrNoHistory
	}
	return rec, err
}

// Candidates lists all candidate IDs with history.
func (s *HistoryStore) Candidates(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT candidate_id FROM %s ORDER BY candidate_id ASC`, s.tableName())
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (candidate.TransitionRecord, error) {
	var (
		rec      candidate.TransitionRecord
		from, to string
		source   string
	)
	if err := row.Scan(&rec.ID, &rec.CandidateID, &from, &to, &rec.ChangedAt,
		&rec.ChangedBy, &rec.Reason, &source, &rec.RuleID); err != nil {
		return candidate.TransitionRecord{}, err
	}
	rec.From = candidate.Status(from)
	rec.To = candidate.Status(to)
	rec.Source = candidate.Source(source)
	return rec, nil
}
