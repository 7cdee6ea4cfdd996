// Package approval provides the multi-step approval workflow model:
// ordered role-based sign-off gating sensitive pipeline transitions.
package approval

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// Terminal reports whether the status permits no further resolution.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

// Decision is an approver's verdict on a step.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

// Priority orders pending requests for reviewers.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Comment is one entry in a request's append-only comment trail.
type Comment struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Request is one approval workflow instance. It is mutated only by
// step resolution and becomes terminal exactly once.
type Request struct {
	ID               string        `json:"id"`
	CandidateID      string        `json:"candidate_id"`
	RequestType      string        `json:"request_type"`
	RequestedValue   string        `json:"requested_value,omitempty"`
	RequestedBy      string        `json:"requested_by"`
	Priority         Priority      `json:"priority"`
	Steps            []Step        `json:"steps"`
	CurrentStepIndex int           `json:"current_step_index"`
	Status           RequestStatus `json:"status"`
	Comments         []Comment     `json:"comments,omitempty"`
	FlowID           string        `json:"flow_id,omitempty"`
	RuleID           string        `json:"rule_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ResolvedAt       time.Time     `json:"resolved_at,omitempty"`
}

// Outcome summarizes the effect of a step resolution.
type Outcome struct {
	// Terminal is true when the resolution resolved the whole request.
	Terminal bool

	// Status is the request status after the resolution.
	Status RequestStatus

	// ResolvedBy is the approver who acted.
	ResolvedBy string
}

// NewRequest builds a pending request. Steps are sorted by their Order
// and the first step's timer starts immediately.
func NewRequest(candidateID, requestType, requestedValue, requestedBy string, priority Priority, steps []Step, now time.Time) (*Request, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if priority == "" {
		priority = PriorityMedium
	}

	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})
	for i := range ordered {
		if ordered[i].ID == "" {
			ordered[i].ID = uuid.New().String()
		}
		ordered[i].Status = StepPending
	}
	ordered[0].EnteredAt = now

	return &Request{
		ID:             uuid.New().String(),
		CandidateID:    candidateID,
		RequestType:    requestType,
		RequestedValue: requestedValue,
		RequestedBy:    requestedBy,
		Priority:       priority,
		Steps:          ordered,
		Status:         RequestPending,
		CreatedAt:      now,
	}, nil
}

// CurrentStep returns the step awaiting resolution.
func (r *Request) CurrentStep() (*Step, bool) {
	if r.Status.Terminal() || r.CurrentStepIndex >= len(r.Steps) {
		return nil, false
	}
	return &r.Steps[r.CurrentStepIndex], true
}

// ResolveStep applies an approver's decision to the named step. Steps
// resolve strictly in ascending order: resolving any step other than
// the current one fails with ErrStepOutOfOrder and no state change.
func (r *Request) ResolveStep(stepID string, decision Decision, approverID string, roles []string, comment string, now time.Time) (Outcome, error) {
	if r.Status.Terminal() {
		return Outcome{}, ErrRequestResolved
	}

	step, ok := r.CurrentStep()
	if !ok {
		return Outcome{}, ErrRequestResolved
	}
	if step.ID != stepID {
		if !r.hasStep(stepID) {
			return Outcome{}, ErrStepNotFound
		}
		return Outcome{}, ErrStepOutOfOrder
	}
	if !step.CanBeResolvedBy(approverID, roles) {
		return Outcome{}, ErrUnauthorizedApprover
	}

	step.resolve(decision, approverID, comment, now)
	if comment != "" {
		r.AddComment(approverID, comment, now)
	}

	switch decision {
	case DecisionApprove:
		return r.advance(approverID, now), nil
	case DecisionReject:
		if step.IsRequired {
			// Rejecting a required step short-circuits the request.
			r.skipFrom(r.CurrentStepIndex + 1)
			r.terminate(RequestRejected, now)
			return Outcome{Terminal: true, Status: RequestRejected, ResolvedBy: approverID}, nil
		}
		// A non-required rejection advances without terminating.
		return r.advance(approverID, now), nil
	default:
		return Outcome{}, ErrInvalidDecision
	}
}

// advance moves past the current step. If no required step remains the
// request resolves approved and any remaining non-required steps are
// skipped.
func (r *Request) advance(approverID string, now time.Time) Outcome {
	next := r.CurrentStepIndex + 1
	for i := next; i < len(r.Steps); i++ {
		if r.Steps[i].IsRequired {
			r.CurrentStepIndex = next
			r.Steps[next].EnteredAt = now
			return Outcome{Status: RequestPending, ResolvedBy: approverID}
		}
	}
	if next < len(r.Steps) {
		// Only non-required steps remain; consensus is already reached.
		r.skipFrom(next)
	}
	r.terminate(RequestApproved, now)
	return Outcome{Terminal: true, Status: RequestApproved, ResolvedBy: approverID}
}

func (r *Request) skipFrom(index int) {
	for i := index; i < len(r.Steps); i++ {
		if r.Steps[i].Status == StepPending {
			r.Steps[i].Status = StepSkipped
		}
	}
}

func (r *Request) terminate(status RequestStatus, now time.Time) {
	r.Status = status
	r.ResolvedAt = now
	r.CurrentStepIndex = len(r.Steps)
}

// ResolveCurrentBySystem applies an escalation decision to the current
// step without an approver authorization check. resolvedBy names the
// escalation actor recorded on the step.
func (r *Request) ResolveCurrentBySystem(decision Decision, resolvedBy, reason string, now time.Time) (Outcome, error) {
	if r.Status.Terminal() {
		return Outcome{}, ErrRequestResolved
	}
	step, ok := r.CurrentStep()
	if !ok {
		return Outcome{}, ErrRequestResolved
	}

	step.resolve(decision, resolvedBy, reason, now)
	if reason != "" {
		r.AddComment(resolvedBy, reason, now)
	}

	switch decision {
	case DecisionApprove:
		return r.advance(resolvedBy, now), nil
	case DecisionReject:
		if step.IsRequired {
			r.skipFrom(r.CurrentStepIndex + 1)
			r.terminate(RequestRejected, now)
			return Outcome{Terminal: true, Status: RequestRejected, ResolvedBy: resolvedBy}, nil
		}
		return r.advance(resolvedBy, now), nil
	default:
		return Outcome{}, ErrInvalidDecision
	}
}

// Cancel marks a pending request cancelled and skips unresolved steps.
func (r *Request) Cancel(byUserID string, now time.Time) error {
	if r.Status.Terminal() {
		return ErrRequestResolved
	}
	r.skipFrom(r.CurrentStepIndex)
	r.terminate(RequestCancelled, now)
	r.AddComment(byUserID, "request cancelled", now)
	return nil
}

// AddComment appends to the comment trail.
func (r *Request) AddComment(authorID, text string, now time.Time) {
	r.Comments = append(r.Comments, Comment{
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
	})
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Steps = make([]Step, len(r.Steps))
	for i, s := range r.Steps {
		cp.Steps[i] = s
		cp.Steps[i].AnyOf = append([]string(nil), s.AnyOf...)
	}
	cp.Comments = append([]Comment(nil), r.Comments...)
	return &cp
}

func (r *Request) hasStep(stepID string) bool {
	for i := range r.Steps {
		if r.Steps[i].ID == stepID {
			return true
		}
	}
	return false
}
