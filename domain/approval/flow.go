package approval

import "time"

// EscalationAction is what happens to a stalled step once its flow's
// timeout passes. A stalled request is never silently dropped.
type EscalationAction string

const (
	EscalationAutoApprove       EscalationAction = "auto_approve"
	EscalationEscalateToManager EscalationAction = "escalate_to_manager"
	EscalationReject            EscalationAction = "reject"
	EscalationNotifyAdmin       EscalationAction = "notify_admin"
)

// EscalationRule is attached to a flow definition and evaluated by the
// scheduler against each pending step's entry time.
type EscalationRule struct {
	TimeoutHours   int              `json:"timeout_hours" yaml:"timeout_hours"`
	Action         EscalationAction `json:"action" yaml:"action"`
	EscalateToRole string           `json:"escalate_to_role,omitempty" yaml:"escalate_to_role,omitempty"`
}

// Timeout returns the rule's timeout as a duration.
func (e EscalationRule) Timeout() time.Duration {
	return time.Duration(e.TimeoutHours) * time.Hour
}

// StepTemplate defines one step of a flow before instantiation.
type StepTemplate struct {
	Order        int          `json:"order" yaml:"order"`
	ApproverType ApproverType `json:"approver_type" yaml:"approver_type"`
	ApproverRef  string       `json:"approver_ref,omitempty" yaml:"approver_ref,omitempty"`
	AnyOf        []string     `json:"any_of,omitempty" yaml:"any_of,omitempty"`
	IsRequired   bool         `json:"is_required" yaml:"is_required"`
}

// Flow is a reusable approval workflow definition.
type Flow struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Steps      []StepTemplate  `json:"steps" yaml:"steps"`
	Escalation *EscalationRule `json:"escalation,omitempty" yaml:"escalation,omitempty"`
}

// Instantiate produces fresh steps from the flow's templates.
func (f Flow) Instantiate() []Step {
	steps := make([]Step, 0, len(f.Steps))
	for _, t := range f.Steps {
		steps = append(steps, Step{
			Order:        t.Order,
			ApproverType: t.ApproverType,
			ApproverRef:  t.ApproverRef,
			AnyOf:        append([]string(nil), t.AnyOf...),
			IsRequired:   t.IsRequired,
		})
	}
	return steps
}
