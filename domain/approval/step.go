package approval

import "time"

// StepStatus is the lifecycle state of one approval step.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

// ApproverType determines how a step's approver reference resolves.
type ApproverType string

const (
	// ApproverUser requires an exact user match.
	ApproverUser ApproverType = "user"

	// ApproverRole accepts any caller holding the referenced role.
	ApproverRole ApproverType = "role"

	// ApproverAnyOf accepts any caller in the referenced user set.
	ApproverAnyOf ApproverType = "any_of"
)

// Step is one ordered gate in a request's sign-off sequence. A step
// downstream of an unresolved step may not be acted upon.
type Step struct {
	ID           string       `json:"id"`
	Order        int          `json:"order"`
	ApproverType ApproverType `json:"approver_type"`

	// ApproverRef is the user ID for user steps or the role name for
	// role steps.
	ApproverRef string `json:"approver_ref,omitempty"`

	// AnyOf is the candidate approver set for any_of steps.
	AnyOf []string `json:"any_of,omitempty"`

	IsRequired bool       `json:"is_required"`
	Status     StepStatus `json:"status"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ResolvedAt time.Time  `json:"resolved_at,omitempty"`
	Comment    string     `json:"comment,omitempty"`

	// EnteredAt is when this step became current; escalation timeouts
	// count from here.
	EnteredAt time.Time `json:"entered_at,omitempty"`
}

// CanBeResolvedBy reports whether the caller satisfies the step's
// approver resolution.
func (s Step) CanBeResolvedBy(userID string, roles []string) bool {
	switch s.ApproverType {
	case ApproverUser:
		return s.ApproverRef != "" && s.ApproverRef == userID
	case ApproverRole:
		for _, role := range roles {
			if role == s.ApproverRef {
				return true
			}
		}
		return false
	case ApproverAnyOf:
		for _, id := range s.AnyOf {
			if id == userID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (s *Step) resolve(decision Decision, approverID, comment string, now time.Time) {
	switch decision {
	case DecisionApprove:
		s.Status = StepApproved
	case DecisionReject:
		s.Status = StepRejected
	}
	s.ApprovedBy = approverID
	s.Comment = comment
	s.ResolvedAt = now
}

// Reassign points the step at a new role approver and restarts its
// escalation timer. Used by escalate_to_manager.
func (s *Step) Reassign(role string, now time.Time) {
	s.ApproverType = ApproverRole
	s.ApproverRef = role
	s.AnyOf = nil
	s.EnteredAt = now
}
