package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewire/pipeline-go/domain/approval"
)

// ApprovalStore is a PostgreSQL-backed implementation of approval.Store.
// The request aggregate is stored as a JSONB document with the fields
// needed for listing pulled into columns.
type ApprovalStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ approval.Store = (*ApprovalStore)(nil)

// NewApprovalStore creates a new PostgreSQL approval store.
func NewApprovalStore(pool *pgxpool.Pool, schema string) *ApprovalStore {
	if schema == "" {
		schema = "public"
	}
	return &ApprovalStore{pool: pool, schema: schema}
}

// Migrate creates the approval_requests table if it does not exist.
func (s *ApprovalStore) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			body JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_approvals_status ON %s (status);
		CREATE INDEX IF NOT EXISTS idx_approvals_candidate ON %s (candidate_id);
	`, s.tableName(), s.tableName(), s.tableName())
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *ApprovalStore) tableName() string {
	return fmt.Sprintf("%s.approval_requests", s.schema)
}

// Create stores a new request.
func (s *ApprovalStore) Create(ctx context.Context, r *approval.Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, candidate_id, status, created_at, body)
		VALUES ($1, $2, $3, $4, $5)
	`, s.tableName())
	_, err = s.pool.Exec(ctx, query, r.ID, r.CandidateID, string(r.Status), r.CreatedAt, body)
	return err
}

// Get returns a request by ID.
func (s *ApprovalStore) Get(ctx context.Context, id string) (*approval.Request, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE id = $1`, s.tableName())
	var body []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", approval.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r := &approval.Request{}
	if err := json.Unmarshal(body, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces a stored request.
func (s *ApprovalStore) Update(ctx context.Context, r *approval.Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, body = $3 WHERE id = $1
	`, s.tableName())
	tag, err := s.pool.Exec(ctx, query, r.ID, string(r.Status), body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", approval.ErrRequestNotFound, r.ID)
	}
	return nil
}

// ListPending returns unresolved requests, oldest first.
func (s *ApprovalStore) ListPending(ctx context.Context) ([]*approval.Request, error) {
	query := fmt.Sprintf(`
		SELECT body FROM %s WHERE status = $1 ORDER BY created_at ASC, id ASC
	`, s.tableName())
	rows, err := s.pool.Query(ctx, query, string(approval.RequestPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*approval.Request
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r := &approval.Request{}
		if err := json.Unmarshal(body, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
