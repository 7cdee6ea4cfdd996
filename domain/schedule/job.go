// Package schedule provides the durable scheduled-job model backing
// delayed action execution.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// Key uniquely identifies a scheduled job. One rule match schedules at
// most one job per action, so the tuple guarantees at-most-once
// execution per rule instance.
type Key struct {
	RuleID      string    `json:"rule_id"`
	CandidateID string    `json:"candidate_id"`
	ActionIndex int       `json:"action_index"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// String renders the key in a stable form usable as a storage key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", k.RuleID, k.CandidateID, k.ActionIndex, k.TriggeredAt.UnixNano())
}

// Job is one durable timer entry. The payload carries the serialized
// action invocation; the scheduler re-validates its precondition at
// fire time before handing it to the executor.
type Job struct {
	Key       Key             `json:"key"`
	DueAt     time.Time       `json:"due_at"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
