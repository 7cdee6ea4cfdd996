package candidate

import "time"

// Source identifies who caused a status transition.
type Source string

const (
	// SourceManual marks a transition made by a user.
	SourceManual Source = "manual"

	// SourceAutomated marks a transition made by an automation rule.
	SourceAutomated Source = "automated"
)

// TransitionRecord is one immutable entry in a candidate's status
// history. The ordered sequence of records per candidate forms the
// status ledger; duration in a stage is the delta between consecutive
// records.
type TransitionRecord struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	From        Status    `json:"from_status,omitempty"`
	To          Status    `json:"to_status"`
	ChangedAt   time.Time `json:"changed_at"`
	ChangedBy   string    `json:"changed_by,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Source      Source    `json:"source"`

	// RuleID is set when Source is automated.
	RuleID string `json:"automation_rule_id,omitempty"`
}
