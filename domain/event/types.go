package event

import (
	"time"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// Type classifies pipeline events.
type Type string

// Event types recognized by the rule engine.
const (
	// TypeStatusChanged fires after every status ledger transition,
	// whether manual or cascaded from an automation rule.
	TypeStatusChanged Type = "status.changed"

	// TypeTimeElapsed fires from the scheduler's periodic scan when a
	// candidate's time in its current status crosses a rule threshold.
	TypeTimeElapsed Type = "time.elapsed"

	// TypeScoreRecorded fires when a new score lands for a candidate.
	TypeScoreRecorded Type = "score.recorded"

	// TypeInterviewCompleted fires when an interviewer files feedback.
	TypeInterviewCompleted Type = "interview.completed"

	// TypeResumeUploaded fires when a resume is attached.
	TypeResumeUploaded Type = "resume.uploaded"

	// TypeApprovalResolved fires when an approval request reaches a
	// terminal state.
	TypeApprovalResolved Type = "approval.resolved"
)

// StatusChangedPayload contains data for status.changed events.
type StatusChangedPayload struct {
	From   candidate.Status `json:"from_status,omitempty"`
	To     candidate.Status `json:"to_status"`
	Source candidate.Source `json:"source"`
	RuleID string           `json:"automation_rule_id,omitempty"`
}

// TimeElapsedPayload contains data for time.elapsed events.
type TimeElapsedPayload struct {
	Status          candidate.Status `json:"status"`
	StatusChangedAt time.Time        `json:"status_changed_at"`
	Elapsed         time.Duration    `json:"elapsed_ns"`

	// RuleID names the rule whose threshold was crossed. The scan emits
	// one event per satisfied rule so thresholds stay independent.
	RuleID string `json:"rule_id"`
}

// ScoreRecordedPayload contains data for score.recorded events.
type ScoreRecordedPayload struct {
	ScoreType string  `json:"score_type"`
	Value     float64 `json:"value"`
}

// InterviewCompletedPayload contains data for interview.completed events.
type InterviewCompletedPayload struct {
	InterviewType string `json:"interview_type,omitempty"`
	InterviewerID string `json:"interviewer_id,omitempty"`
}

// ApprovalResolvedPayload contains data for approval.resolved events.
type ApprovalResolvedPayload struct {
	RequestID   string `json:"request_id"`
	RequestType string `json:"request_type"`
	Outcome     string `json:"outcome"`
	ResolvedBy  string `json:"resolved_by,omitempty"`
}
