package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hirewire/pipeline-go/domain/schedule"
)

// JobStore is a SQLite-backed implementation of schedule.Store. Jobs
// survive process restarts; Claim deletes inside a transaction so each
// job is handed out exactly once.
type JobStore struct {
	db *sql.DB
}

var _ schedule.Store = (*JobStore)(nil)

// NewJobStore creates a new SQLite job store.
func NewJobStore(cfg Config, opts ...Option) (*JobStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &JobStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewJobStoreFromDB creates a job store from an existing connection.
func NewJobStoreFromDB(db *sql.DB) (*JobStore, error) {
	s := &JobStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JobStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			job_key TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			candidate_id TEXT NOT NULL,
			action_index INTEGER NOT NULL,
			triggered_at INTEGER NOT NULL,
			due_at INTEGER NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_due_at ON scheduled_jobs(due_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Put stores a job, rejecting duplicate keys.
func (s *JobStore) Put(ctx context.Context, job schedule.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (job_key, rule_id, candidate_id, action_index, triggered_at, due_at, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Key.String(), job.Key.RuleID, job.Key.CandidateID, job.Key.ActionIndex,
		job.Key.TriggeredAt.UnixNano(), job.DueAt.UnixNano(), []byte(job.Payload), job.CreatedAt.UnixNano(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return errors.Join(schedule.ErrJobExists, err)
	}
	return err
}

// Cancel removes a pending job.
func (s *JobStore) Cancel(ctx context.Context, key schedule.Key) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_jobs WHERE job_key = ?`, key.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrJobNotFound
	}
	return nil
}

// Claim removes and returns all jobs due at or before now.
func (s *JobStore) Claim(ctx context.Context, now time.Time) ([]schedule.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		`SELECT rule_id, candidate_id, action_index, triggered_at, due_at, payload, created_at
		 FROM scheduled_jobs WHERE due_at <= ? ORDER BY due_at ASC`,
		now.UnixNano(),
	)
	if err != nil {
		return nil, err
	}

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scheduled_jobs WHERE due_at <= ?`, now.UnixNano()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Pending returns all stored jobs, soonest first.
func (s *JobStore) Pending(ctx context.Context) ([]schedule.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_id, candidate_id, action_index, triggered_at, due_at, payload, created_at
		 FROM scheduled_jobs ORDER BY due_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

// Close closes the underlying database.
func (s *JobStore) Close() error {
	return s.db.Close()
}

func scanJobs(rows *sql.Rows) ([]schedule.Job, error) {
	defer rows.Close()
	var out []schedule.Job
	for rows.Next() {
		var (
			job                             schedule.Job
			triggeredAt, dueAt, createdAt   int64
			payload                         []byte
		)
		if err := rows.Scan(&job.Key.RuleID, &job.Key.CandidateID, &job.Key.ActionIndex,
			&triggeredAt, &dueAt, &payload, &createdAt); err != nil {
			return nil, err
		}
		job.Key.TriggeredAt = nanosToTime(triggeredAt)
		job.DueAt = nanosToTime(dueAt)
		job.CreatedAt = nanosToTime(createdAt)
		job.Payload = payload
		out = append(out, job)
	}
	return out, rows.Err()
}

func nanosToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
