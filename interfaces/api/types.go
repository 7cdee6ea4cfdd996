package api

import (
	"github.com/hirewire/pipeline-go/application"
	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/domain/rule"
	infraconfig "github.com/hirewire/pipeline-go/infrastructure/config"
)

// Re-export core types for convenience.
type (
	// Status is a candidate's position in the hiring pipeline.
	Status = candidate.Status

	// TransitionRecord is one entry in a candidate's status history.
	TransitionRecord = candidate.TransitionRecord

	// Snapshot is the read-only candidate view conditions evaluate on.
	Snapshot = candidate.Snapshot

	// SnapshotProvider serves candidate snapshots.
	SnapshotProvider = candidate.SnapshotProvider

	// Event is an external or cascade occurrence fed to the engine.
	Event = event.Event

	// Rule is one event-condition-action automation rule.
	Rule = rule.Rule

	// Trigger is a rule's event-shape condition.
	Trigger = rule.Trigger

	// StatusChangeTrigger matches status transitions.
	StatusChangeTrigger = rule.StatusChangeTrigger

	// TimeElapsedTrigger matches time spent in a status.
	TimeElapsedTrigger = rule.TimeElapsedTrigger

	// ScoreThresholdTrigger matches recorded scores crossing a bound.
	ScoreThresholdTrigger = rule.ScoreThresholdTrigger

	// Condition is a predicate over candidate data.
	Condition = rule.Condition

	// Action is one effect a triggered rule causes.
	Action = rule.Action

	// ChangeStatusAction moves the candidate to a target status.
	ChangeStatusAction = rule.ChangeStatusAction

	// SendNotificationAction delivers a templated notification.
	SendNotificationAction = rule.SendNotificationAction

	// ScheduleInterviewAction books an interview slot.
	ScheduleInterviewAction = rule.ScheduleInterviewAction

	// AddNoteAction appends a note to the candidate record.
	AddNoteAction = rule.AddNoteAction

	// AssignJobAction links the candidate to a job opening.
	AssignJobAction = rule.AssignJobAction

	// RequestApprovalAction opens an approval workflow instance.
	RequestApprovalAction = rule.RequestApprovalAction

	// Flow is a reusable approval workflow definition.
	Flow = approval.Flow

	// StepTemplate defines one flow step before instantiation.
	StepTemplate = approval.StepTemplate

	// EscalationRule handles stalled approval steps.
	EscalationRule = approval.EscalationRule

	// Request is one approval workflow instance.
	Request = approval.Request

	// Outcome summarizes an approval step resolution.
	Outcome = approval.Outcome

	// Message is an outbound notification.
	Message = notification.Message

	// Notifier delivers notification messages.
	Notifier = notification.Notifier

	// Failure is one permanently failed action.
	Failure = application.Failure

	// Config is the top-level service configuration.
	Config = infraconfig.Config

	// RuleFile is the on-disk rule and flow definition format.
	RuleFile = infraconfig.RuleFile
)

// Re-export pipeline statuses.
const (
	StatusForReview          = candidate.StatusForReview
	StatusPaperScreening     = candidate.StatusPaperScreening
	StatusExam               = candidate.StatusExam
	StatusHRInterview        = candidate.StatusHRInterview
	StatusTechnicalInterview = candidate.StatusTechnicalInterview
	StatusFinalInterview     = candidate.StatusFinalInterview
	StatusForJobOffer        = candidate.StatusForJobOffer
	StatusOfferExtended      = candidate.StatusOfferExtended
	StatusHired              = candidate.StatusHired
	StatusRejected           = candidate.StatusRejected
	StatusWithdrawn          = candidate.StatusWithdrawn
	StatusOnHold             = candidate.StatusOnHold
)

// Re-export trigger and action kinds.
const (
	TriggerStatusChange       = rule.TriggerStatusChange
	TriggerTimeElapsed        = rule.TriggerTimeElapsed
	TriggerScoreThreshold     = rule.TriggerScoreThreshold
	TriggerInterviewCompleted = rule.TriggerInterviewCompleted
	TriggerResumeUploaded     = rule.TriggerResumeUploaded

	ActionChangeStatus      = rule.ActionChangeStatus
	ActionSendNotification  = rule.ActionSendNotification
	ActionScheduleInterview = rule.ActionScheduleInterview
	ActionAddNote           = rule.ActionAddNote
	ActionAssignJob         = rule.ActionAssignJob
	ActionRequestApproval   = rule.ActionRequestApproval
)

// Re-export condition operators and delay units.
const (
	OpGreaterThan = rule.OpGreaterThan
	OpLessThan    = rule.OpLessThan
	OpEquals      = rule.OpEquals
	OpContains    = rule.OpContains

	UnitMinutes = rule.UnitMinutes
	UnitHours   = rule.UnitHours
	UnitDays    = rule.UnitDays
)

// Re-export event types.
const (
	TypeStatusChanged      = event.TypeStatusChanged
	TypeTimeElapsed        = event.TypeTimeElapsed
	TypeScoreRecorded      = event.TypeScoreRecorded
	TypeInterviewCompleted = event.TypeInterviewCompleted
	TypeResumeUploaded     = event.TypeResumeUploaded
	TypeApprovalResolved   = event.TypeApprovalResolved
)

// Re-export approval decisions, priorities and escalation actions.
const (
	DecisionApprove = approval.DecisionApprove
	DecisionReject  = approval.DecisionReject

	PriorityLow    = approval.PriorityLow
	PriorityMedium = approval.PriorityMedium
	PriorityHigh   = approval.PriorityHigh
	PriorityUrgent = approval.PriorityUrgent

	EscalationAutoApprove       = approval.EscalationAutoApprove
	EscalationEscalateToManager = approval.EscalationEscalateToManager
	EscalationReject            = approval.EscalationReject
	EscalationNotifyAdmin       = approval.EscalationNotifyAdmin

	ApproverUser  = approval.ApproverUser
	ApproverRole  = approval.ApproverRole
	ApproverAnyOf = approval.ApproverAnyOf
)

// Re-export common errors.
var (
	// ErrNoopTransition rejects transitions to the current status.
	ErrNoopTransition = ledger.ErrNoopTransition

	// ErrTerminalStatus rejects transitions out of a terminal status.
	ErrTerminalStatus = ledger.ErrTerminalStatus

	// ErrNoHistory marks candidates without ledger history.
	ErrNoHistory = ledger.ErrNoHistory

	// ErrRuleNotFound marks lookups of unknown rules.
	ErrRuleNotFound = rule.ErrRuleNotFound

	// ErrStepOutOfOrder rejects out-of-order step resolutions.
	ErrStepOutOfOrder = approval.ErrStepOutOfOrder

	// ErrUnauthorizedApprover rejects ineligible approvers.
	ErrUnauthorizedApprover = approval.ErrUnauthorizedApprover

	// ErrRequestResolved rejects operations on terminal requests.
	ErrRequestResolved = approval.ErrRequestResolved
)

// NewEvent builds an event with a JSON payload.
func NewEvent(candidateID string, eventType event.Type, payload any) (Event, error) {
	return event.New(candidateID, eventType, payload)
}

// LoadConfig loads a service configuration file.
func LoadConfig(path string) (*Config, error) {
	return infraconfig.NewLoader().LoadFile(path)
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() *Config {
	return infraconfig.Default()
}

// LoadRules loads rule and flow definitions from a file or directory.
func LoadRules(path string) (*RuleFile, error) {
	return infraconfig.LoadRules(path)
}
