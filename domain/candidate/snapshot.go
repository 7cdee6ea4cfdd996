package candidate

import (
	"context"
	"strings"
	"time"
)

// Snapshot is a read-only view of a candidate used for condition
// evaluation. It is produced by the candidate store collaborator and is
// never written back.
type Snapshot struct {
	CandidateID     string             `json:"candidate_id"`
	Status          Status             `json:"status"`
	StatusChangedAt time.Time          `json:"status_changed_at"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	Skills          []string           `json:"skills,omitempty"`
	JobID           string             `json:"job_id,omitempty"`

	// Fields holds any additional candidate attributes by name.
	Fields map[string]any `json:"fields,omitempty"`
}

// Field resolves a named field on the snapshot. Scores are addressable
// as "scores.<type>". Unknown fields return false.
func (s Snapshot) Field(name string) (any, bool) {
	switch name {
	case "status":
		return string(s.Status), true
	case "job_id", "jobId":
		return s.JobID, true
	case "skills":
		return s.Skills, true
	}

	if scoreType, ok := strings.CutPrefix(name, "scores."); ok {
		v, ok := s.Scores[scoreType]
		return v, ok
	}

	v, ok := s.Fields[name]
	return v, ok
}

// Score returns the named score, if recorded.
func (s Snapshot) Score(scoreType string) (float64, bool) {
	v, ok := s.Scores[scoreType]
	return v, ok
}

// SnapshotProvider supplies candidate snapshots from the candidate
// store collaborator.
type SnapshotProvider interface {
	// Snapshot returns the current view of a candidate.
	// Returns ErrCandidateNotFound for unknown candidates.
	Snapshot(ctx context.Context, candidateID string) (Snapshot, error)
}
