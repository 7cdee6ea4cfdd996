package rule

import (
	"time"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
)

// TriggerKind tags the trigger variant.
type TriggerKind string

const (
	TriggerStatusChange       TriggerKind = "status_change"
	TriggerTimeElapsed        TriggerKind = "time_elapsed"
	TriggerScoreThreshold     TriggerKind = "score_threshold"
	TriggerInterviewCompleted TriggerKind = "interview_completed"
	TriggerResumeUploaded     TriggerKind = "resume_uploaded"
)

// DelayUnit is a time unit for trigger thresholds and action delays.
type DelayUnit string

const (
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
)

// Duration converts a value in this unit to a time.Duration. Unknown
// units yield zero, which callers treat as "no delay".
func (u DelayUnit) Duration(value int) time.Duration {
	switch u {
	case UnitMinutes:
		return time.Duration(value) * time.Minute
	case UnitHours:
		return time.Duration(value) * time.Hour
	case UnitDays:
		return time.Duration(value) * 24 * time.Hour
	default:
		return 0
	}
}

// Trigger is the tagged event-shape condition that makes a rule
// eligible for evaluation. Exactly one variant field matching Kind is
// populated.
type Trigger struct {
	Kind TriggerKind `json:"kind" yaml:"kind"`

	StatusChange   *StatusChangeTrigger   `json:"status_change,omitempty" yaml:"status_change,omitempty"`
	TimeElapsed    *TimeElapsedTrigger    `json:"time_elapsed,omitempty" yaml:"time_elapsed,omitempty"`
	ScoreThreshold *ScoreThresholdTrigger `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
}

// StatusChangeTrigger matches status.changed events. Empty From or To
// act as wildcards.
type StatusChangeTrigger struct {
	From candidate.Status `json:"from,omitempty" yaml:"from,omitempty"`
	To   candidate.Status `json:"to,omitempty" yaml:"to,omitempty"`
}

// TimeElapsedTrigger matches when a candidate has sat in its current
// status longer than the threshold. Evaluated by the scheduler's
// periodic scan, not a one-shot timer, since the baseline timestamp
// moves whenever the status changes.
type TimeElapsedTrigger struct {
	Value int       `json:"value" yaml:"value"`
	Unit  DelayUnit `json:"unit" yaml:"unit"`
}

// Threshold returns the configured duration.
func (t TimeElapsedTrigger) Threshold() time.Duration {
	return t.Unit.Duration(t.Value)
}

// ScoreThresholdTrigger matches score.recorded events crossing a bound.
type ScoreThresholdTrigger struct {
	ScoreType string   `json:"score_type" yaml:"score_type"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
}

// Validate checks the trigger tag and its variant payload.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerStatusChange:
		return nil
	case TriggerTimeElapsed:
		if t.TimeElapsed == nil || t.TimeElapsed.Threshold() <= 0 {
			return ErrInvalidRule
		}
		return nil
	case TriggerScoreThreshold:
		if t.ScoreThreshold == nil || t.ScoreThreshold.ScoreType == "" {
			return ErrInvalidRule
		}
		switch t.ScoreThreshold.Operator {
		case OpGreaterThan, OpLessThan, OpEquals:
			return nil
		default:
			return ErrUnknownOperator
		}
	case TriggerInterviewCompleted, TriggerResumeUploaded:
		return nil
	default:
		return ErrUnknownTriggerKind
	}
}

// Matches reports whether the event's shape and target values satisfy
// this trigger. It decides eligibility only; conditions are evaluated
// separately against the candidate snapshot.
func (t Trigger) Matches(evt event.Event, ruleID string) bool {
	switch t.Kind {
	case TriggerStatusChange:
		if evt.Type != event.TypeStatusChanged {
			return false
		}
		if t.StatusChange == nil {
			return true
		}
		var p event.StatusChangedPayload
		if err := evt.UnmarshalPayload(&p); err != nil {
			return false
		}
		if t.StatusChange.From != "" && t.StatusChange.From != p.From {
			return false
		}
		if t.StatusChange.To != "" && t.StatusChange.To != p.To {
			return false
		}
		return true

	case TriggerTimeElapsed:
		if evt.Type != event.TypeTimeElapsed || t.TimeElapsed == nil {
			return false
		}
		var p event.TimeElapsedPayload
		if err := evt.UnmarshalPayload(&p); err != nil {
			return false
		}
		// The scan emits one event per rule; only the addressed rule
		// may claim it.
		return p.RuleID == ruleID && p.Elapsed >= t.TimeElapsed.Threshold()

	case TriggerScoreThreshold:
		if evt.Type != event.TypeScoreRecorded || t.ScoreThreshold == nil {
			return false
		}
		var p event.ScoreRecordedPayload
		if err := evt.UnmarshalPayload(&p); err != nil {
			return false
		}
		if p.ScoreType != t.ScoreThreshold.ScoreType {
			return false
		}
		return compareNumbers(p.Value, t.ScoreThreshold.Operator, t.ScoreThreshold.Threshold)

	case TriggerInterviewCompleted:
		return evt.Type == event.TypeInterviewCompleted

	case TriggerResumeUploaded:
		return evt.Type == event.TypeResumeUploaded

	default:
		return false
	}
}

func compareNumbers(value float64, op Operator, bound float64) bool {
	switch op {
	case OpGreaterThan:
		return value > bound
	case OpLessThan:
		return value < bound
	case OpEquals:
		return value == bound
	default:
		return false
	}
}
