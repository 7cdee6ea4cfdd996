package rule

import (
	"time"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// ActionKind tags the action variant.
type ActionKind string

const (
	ActionChangeStatus      ActionKind = "change_status"
	ActionSendNotification  ActionKind = "send_notification"
	ActionScheduleInterview ActionKind = "schedule_interview"
	ActionAddNote           ActionKind = "add_note"
	ActionAssignJob         ActionKind = "assign_job"
	ActionRequestApproval   ActionKind = "request_approval"
)

// Action is one tagged effect a rule causes once triggered. Exactly one
// variant field matching Kind is populated. Delay defers execution
// through the durable scheduler.
type Action struct {
	Kind ActionKind `json:"kind" yaml:"kind"`

	Delay     int       `json:"delay,omitempty" yaml:"delay,omitempty"`
	DelayUnit DelayUnit `json:"delay_unit,omitempty" yaml:"delay_unit,omitempty"`

	ChangeStatus      *ChangeStatusAction      `json:"change_status,omitempty" yaml:"change_status,omitempty"`
	SendNotification  *SendNotificationAction  `json:"send_notification,omitempty" yaml:"send_notification,omitempty"`
	ScheduleInterview *ScheduleInterviewAction `json:"schedule_interview,omitempty" yaml:"schedule_interview,omitempty"`
	AddNote           *AddNoteAction           `json:"add_note,omitempty" yaml:"add_note,omitempty"`
	AssignJob         *AssignJobAction         `json:"assign_job,omitempty" yaml:"assign_job,omitempty"`
	RequestApproval   *RequestApprovalAction   `json:"request_approval,omitempty" yaml:"request_approval,omitempty"`
}

// ChangeStatusAction moves the candidate to a target status through the
// status ledger and re-enters the engine as a cascade event.
type ChangeStatusAction struct {
	Target candidate.Status `json:"target" yaml:"target"`
}

// SendNotificationAction delivers a templated notification.
type SendNotificationAction struct {
	Template   string   `json:"template" yaml:"template"`
	Recipients []string `json:"recipients" yaml:"recipients"`
}

// ScheduleInterviewAction asks the interview collaborator to book a
// slot.
type ScheduleInterviewAction struct {
	InterviewType   string `json:"interview_type" yaml:"interview_type"`
	InterviewerRole string `json:"interviewer_role,omitempty" yaml:"interviewer_role,omitempty"`
	WithinDays      int    `json:"within_days,omitempty" yaml:"within_days,omitempty"`
}

// AddNoteAction appends a note to the candidate record.
type AddNoteAction struct {
	Text string `json:"text" yaml:"text"`
}

// AssignJobAction links the candidate to a job opening.
type AssignJobAction struct {
	JobID string `json:"job_id" yaml:"job_id"`
}

// RequestApprovalAction opens an approval workflow instance. The
// outcome re-enters the engine later as an approval.resolved event.
type RequestApprovalAction struct {
	FlowID         string `json:"flow_id" yaml:"flow_id"`
	RequestType    string `json:"request_type" yaml:"request_type"`
	RequestedValue string `json:"requested_value,omitempty" yaml:"requested_value,omitempty"`
	Priority       string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// DelayDuration returns how long execution is deferred. Zero means
// immediate.
func (a Action) DelayDuration() time.Duration {
	if a.Delay <= 0 {
		return 0
	}
	return a.DelayUnit.Duration(a.Delay)
}

// Validate checks the action tag and that its variant payload is
// present and well formed.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionChangeStatus:
		if a.ChangeStatus == nil || !a.ChangeStatus.Target.Valid() {
			return ErrInvalidRule
		}
	case ActionSendNotification:
		if a.SendNotification == nil || a.SendNotification.Template == "" {
			return ErrInvalidRule
		}
	case ActionScheduleInterview:
		if a.ScheduleInterview == nil || a.ScheduleInterview.InterviewType == "" {
			return ErrInvalidRule
		}
	case ActionAddNote:
		if a.AddNote == nil || a.AddNote.Text == "" {
			return ErrInvalidRule
		}
	case ActionAssignJob:
		if a.AssignJob == nil || a.AssignJob.JobID == "" {
			return ErrInvalidRule
		}
	case ActionRequestApproval:
		if a.RequestApproval == nil || a.RequestApproval.FlowID == "" {
			return ErrInvalidRule
		}
	default:
		return ErrUnknownActionKind
	}
	return nil
}
