package application

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirewire/pipeline-go/domain/rule"
)

// Failure is one action that could not complete after all retries, or
// failed permanently. Failures never roll back previously completed
// sibling actions; operators review this log to repair partial effects.
type Failure struct {
	ID          string          `json:"id"`
	CandidateID string          `json:"candidate_id"`
	RuleID      string          `json:"rule_id"`
	RuleName    string          `json:"rule_name"`
	ActionIndex int             `json:"action_index"`
	ActionKind  rule.ActionKind `json:"action_kind"`
	Reason      string          `json:"reason"`
	Attempts    int             `json:"attempts"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// FailureLog is a bounded in-memory record of permanent action
// failures. Oldest entries are dropped past the capacity.
type FailureLog struct {
	mu      sync.Mutex
	entries []Failure
	cap     int
	clock   func() time.Time
}

// NewFailureLog creates a failure log holding at most capacity entries.
func NewFailureLog(capacity int) *FailureLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &FailureLog{
		cap:   capacity,
		clock: time.Now,
	}
}

// Record appends a failure, assigning ID and timestamp.
func (l *FailureLog) Record(f Failure) Failure {
	l.mu.Lock()
	defer l.mu.Unlock()

	f.ID = uuid.New().String()
	if f.OccurredAt.IsZero() {
		f.OccurredAt = l.clock()
	}
	l.entries = append(l.entries, f)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
	return f
}

// List returns all recorded failures, oldest first.
func (l *FailureLog) List() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForCandidate returns failures concerning one candidate.
func (l *FailureLog) ForCandidate(candidateID string) []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Failure
	for _, f := range l.entries {
		if f.CandidateID == candidateID {
			out = append(out, f)
		}
	}
	return out
}
