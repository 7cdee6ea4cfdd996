package sqlite

import (
	"context"
	"database/sql"
	"errors"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/ledger"
)

// HistoryStore is a SQLite-backed implementation of ledger.Store.
type HistoryStore struct {
	db *sql.DB
}

var _ ledger.Store = (*HistoryStore)(nil)

// NewHistoryStore creates a new SQLite history store.
func NewHistoryStore(cfg Config, opts ...Option) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &HistoryStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewHistoryStoreFromDB creates a history store from an existing connection.
func NewHistoryStoreFromDB(db *sql.DB) (*HistoryStore, error) {
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS status_history (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			changed_at INTEGER NOT NULL,
			changed_by TEXT NOT NULL,
			reason TEXT,
			source TEXT NOT NULL,
			rule_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_history_candidate ON status_history(candidate_id);
		CREATE INDEX IF NOT EXISTS idx_history_candidate_changed ON status_history(candidate_id, changed_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Append persists a transition record.
func (s *HistoryStore) Append(ctx context.Context, rec candidate.TransitionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_history (id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CandidateID, string(rec.From), string(rec.To),
		rec.ChangedAt.UnixNano(), rec.ChangedBy, rec.Reason, string(rec.Source), rec.RuleID,
	)
	return err
}

// History returns all records for a candidate, oldest first.
func (s *HistoryStore) History(ctx context.Context, candidateID string) ([]candidate.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id
		 FROM status_history WHERE candidate_id = ? ORDER BY changed_at ASC, id ASC`,
		candidateID,
	)
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
	row := s.db.QueryRowContext(ctx,
		`SELECT id, candidate_id, from_status, to_status, changed_at, changed_by, reason, source, rule_id
		 FROM status_history WHERE candidate_id = ? ORDER BY changed_at DESC, id DESC LIMIT 1`,
		candidateID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return candidate.TransitionRecord{}, ledger.ErrNoHistory
	}
	return rec, err
}

// Candidates lists all candidate IDs with history.
func (s *HistoryStore) Candidates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT candidate_id FROM status_history ORDER BY candidate_id ASC`)
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

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection so sibling stores can share it.
func (s *HistoryStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (candidate.TransitionRecord, error) {
	var (
		rec       candidate.TransitionRecord
		from, to  string
		source    string
		changedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.CandidateID, &from, &to, &changedAt,
		&rec.ChangedBy, &rec.Reason, &source, &rec.RuleID); err != nil {
		return candidate.TransitionRecord{}, err
	}
	rec.From = candidate.Status(from)
	rec.To = candidate.Status(to)
	rec.Source = candidate.Source(source)
	rec.ChangedAt = nanosToTime(changedAt)
	return rec, nil
}
