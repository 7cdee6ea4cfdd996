package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
	"github.com/hirewire/pipeline-go/infrastructure/statemachine"
)

// escalationActor is recorded on steps resolved by the escalation scan.
const escalationActor = "system:escalation"

// RequestTypeStatusChange marks requests gating a status transition;
// the requested value is the target status, applied on approval.
const RequestTypeStatusChange = "status_change"

// Approvals manages approval request lifecycles: creation from rules or
// operators, ordered step resolution, cancellation and escalation.
type Approvals struct {
	store     approval.Store
	flows     approval.FlowStore
	machine   *statekit.MachineConfig[*statemachine.Context]
	publisher event.Publisher
	notifier  notification.Notifier
	ledger    *ledger.Ledger
	clock     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ApprovalsOption configures the approvals service.
type ApprovalsOption func(*Approvals)

// WithApprovalsClock replaces the wall clock, used by tests.
func WithApprovalsClock(clock func() time.Time) ApprovalsOption {
	return func(a *Approvals) {
		a.clock = clock
	}
}

// WithApprovalsNotifier sets the notifier used by notify_admin
// escalations.
func WithApprovalsNotifier(n notification.Notifier) ApprovalsOption {
	return func(a *Approvals) {
		a.notifier = n
	}
}

// WithApprovalsLedger wires the status ledger. Needed to apply the
// requested status change when a status_change request is approved.
func WithApprovalsLedger(l *ledger.Ledger) ApprovalsOption {
	return func(a *Approvals) {
		a.ledger = l
	}
}

// NewApprovals creates the approvals service.
func NewApprovals(store approval.Store, flows approval.FlowStore, opts ...ApprovalsOption) (*Approvals, error) {
	machine, err := statemachine.NewRequestMachine()
	if err != nil {
		return nil, fmt.Errorf("build approval machine: %w", err)
	}
	a := &Approvals{
		store:   store,
		flows:   flows,
		machine: machine,
		clock:   time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SetPublisher wires the event publisher. Set after the dispatcher is
// constructed; terminal resolutions are published as approval.resolved
// events through it.
func (a *Approvals) SetPublisher(p event.Publisher) {
	a.publisher = p
}

// Create opens an approval request from the named flow.
func (a *Approvals) Create(ctx context.Context, candidateID, flowID, requestType, requestedValue, requestedBy string, priority approval.Priority, ruleID string) (*approval.Request, error) {
	flow, err := a.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	req, err := approval.NewRequest(candidateID, requestType, requestedValue, requestedBy, priority, flow.Instantiate(), a.clock())
	if err != nil {
		return nil, err
	}
	req.FlowID = flowID
	req.RuleID = ruleID

	if err := a.store.Create(ctx, req); err != nil {
		return nil, err
	}

	logging.Info().
		Add(logging.Component("approvals")).
		Add(logging.RequestID(req.ID)).
		Add(logging.CandidateID(candidateID)).
		Add(logging.Str("flow_id", flowID)).
		Add(logging.RuleID(ruleID)).
		Msg("approval request created")
	return req, nil
}

// Get returns a request by ID.
func (a *Approvals) Get(ctx context.Context, requestID string) (*approval.Request, error) {
	return a.store.Get(ctx, requestID)
}

// ResolveStep applies an approver's decision to a step of a request.
// Resolving the final required step publishes an approval.resolved
// event, which re-enters rule evaluation. Resolutions of one request
// are serialized: a second resolver racing the first re-reads the
// request after it went terminal and fails with ErrRequestResolved, so
// a request resolves terminally exactly once.
func (a *Approvals) ResolveStep(ctx context.Context, requestID, stepID string, decision approval.Decision, approverID string, roles []string, comment string) (approval.Outcome, error) {
	unlock := a.lockRequest(requestID)
	defer unlock()

	req, err := a.store.Get(ctx, requestID)
	if err != nil {
		return approval.Outcome{}, err
	}

	outcome, err := req.ResolveStep(stepID, decision, approverID, roles, comment, a.clock())
	if err != nil {
		return approval.Outcome{}, err
	}

	if outcome.Terminal {
		if err := a.checkLifecycle(req, outcome.Status); err != nil {
			return approval.Outcome{}, err
		}
	}

	if err := a.store.Update(ctx, req); err != nil {
		return approval.Outcome{}, err
	}

	logging.Info().
		Add(logging.Component("approvals")).
		Add(logging.RequestID(requestID)).
		Add(logging.Str("step_id", stepID)).
		Add(logging.Str("decision", string(decision))).
		Add(logging.Str("status", string(req.Status))).
		Msg("approval step resolved")

	if outcome.Terminal {
		a.applyOutcome(ctx, req, outcome)
		a.publishResolved(ctx, req, outcome)
	}
	return outcome, nil
}

// Cancel withdraws a pending request.
func (a *Approvals) Cancel(ctx context.Context, requestID, byUserID string) error {
	unlock := a.lockRequest(requestID)
	defer unlock()

	req, err := a.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if err := req.Cancel(byUserID, a.clock()); err != nil {
		return err
	}
	if err := a.checkLifecycle(req, approval.RequestCancelled); err != nil {
		return err
	}
	return a.store.Update(ctx, req)
}

// AddComment appends to a request's comment trail.
func (a *Approvals) AddComment(ctx context.Context, requestID, authorID, text string) error {
	unlock := a.lockRequest(requestID)
	defer unlock()

	req, err := a.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	req.AddComment(authorID, text, a.clock())
	return a.store.Update(ctx, req)
}

// ListPending returns pending requests. With a non-empty userID the
// list is narrowed to requests whose current step the caller may
// resolve.
func (a *Approvals) ListPending(ctx context.Context, userID string, roles []string) ([]*approval.Request, error) {
	pending, err := a.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return pending, nil
	}

	var out []*approval.Request
	for _, req := range pending {
		step, ok := req.CurrentStep()
		if ok && step.CanBeResolvedBy(userID, roles) {
			out = append(out, req)
		}
	}
	return out, nil
}

// Escalate applies flow escalation rules to every pending request whose
// current step has stalled past its flow's timeout, as of now.
func (a *Approvals) Escalate(ctx context.Context, now time.Time) error {
	pending, err := a.store.ListPending(ctx)
	if err != nil {
		return err
	}

	for _, req := range pending {
		if req.FlowID == "" {
			continue
		}
		flow, err := a.flows.Get(ctx, req.FlowID)
		if err != nil || flow.Escalation == nil {
			continue
		}
		if err := a.escalateOne(ctx, req.ID, flow.Escalation, now); err != nil {
			logging.Error().
				Add(logging.Component("approvals")).
				Add(logging.RequestID(req.ID)).
				Add(logging.ErrorField(err)).
				Msg("escalation failed")
		}
	}
	return nil
}

// escalateOne re-reads the request under its lock and re-checks the
// stall condition there; the pending list the scan iterated may be
// stale by the time the lock is held (an approver may have resolved the
// step meanwhile).
func (a *Approvals) escalateOne(ctx context.Context, requestID string, rule *approval.EscalationRule, now time.Time) error {
	unlock := a.lockRequest(requestID)
	defer unlock()

	req, err := a.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return nil
	}
	step, ok := req.CurrentStep()
	if !ok || step.EnteredAt.IsZero() || now.Sub(step.EnteredAt) < rule.Timeout() {
		return nil
	}

	var outcome approval.Outcome

	switch rule.Action {
	case approval.EscalationAutoApprove:
		var err error
		outcome, err = req.ResolveCurrentBySystem(approval.DecisionApprove, escalationActor, "step timed out, auto-approved", now)
		if err != nil {
			return err
		}

	case approval.EscalationReject:
		var err error
		outcome, err = req.ResolveCurrentBySystem(approval.DecisionReject, escalationActor, "step timed out, rejected", now)
		if err != nil {
			return err
		}

	case approval.EscalationEscalateToManager:
		step, ok := req.CurrentStep()
		if !ok {
			return approval.ErrRequestResolved
		}
		step.Reassign(rule.EscalateToRole, now)
		req.AddComment(escalationActor, "step timed out, escalated to "+rule.EscalateToRole, now)

	case approval.EscalationNotifyAdmin:
		a.notifyAdmin(ctx, req)
		// Restart the step timer so the admin is not paged every scan.
		if step, ok := req.CurrentStep(); ok {
			step.EnteredAt = now
		}

	default:
		return fmt.Errorf("unknown escalation action %q", rule.Action)
	}

	if outcome.Terminal {
		if err := a.checkLifecycle(req, outcome.Status); err != nil {
			return err
		}
	}
	if err := a.store.Update(ctx, req); err != nil {
		return err
	}

	logging.Info().
		Add(logging.Component("approvals")).
		Add(logging.RequestID(req.ID)).
		Add(logging.Str("escalation", string(rule.Action))).
		Add(logging.Str("status", string(req.Status))).
		Msg("approval request escalated")

	if outcome.Terminal {
		a.applyOutcome(ctx, req, outcome)
		a.publishResolved(ctx, req, outcome)
	}
	return nil
}

// applyOutcome carries out the gated effect of an approved request. A
// rejected or cancelled request applies nothing.
func (a *Approvals) applyOutcome(ctx context.Context, req *approval.Request, outcome approval.Outcome) {
	if outcome.Status != approval.RequestApproved {
		return
	}
	if req.RequestType != RequestTypeStatusChange || a.ledger == nil {
		return
	}

	target, err := candidate.ParseStatus(req.RequestedValue)
	if err != nil {
		logging.Error().
			Add(logging.Component("approvals")).
			Add(logging.RequestID(req.ID)).
			Add(logging.Str("requested_value", req.RequestedValue)).
			Msg("approved request carries unknown target status")
		return
	}

	rec, err := a.ledger.Transition(ctx, req.CandidateID, target, candidate.SourceAutomated, outcome.ResolvedBy, "approval "+req.ID, req.RuleID)
	if err != nil {
		// Noop and terminal rejections mean the candidate moved on
		// while the request was pending.
		logging.Warn().
			Add(logging.Component("approvals")).
			Add(logging.RequestID(req.ID)).
			Add(logging.CandidateID(req.CandidateID)).
			Add(logging.ToStatus(target)).
			Add(logging.ErrorField(err)).
			Msg("approved status change not applied")
		return
	}

	if a.publisher != nil {
		evt, err := event.New(req.CandidateID, event.TypeStatusChanged, event.StatusChangedPayload{
			From:   rec.From,
			To:     rec.To,
			Source: candidate.SourceAutomated,
			RuleID: req.RuleID,
		})
		if err == nil {
			if err := a.publisher.Publish(ctx, evt); err != nil {
				logging.Error().
					Add(logging.Component("approvals")).
					Add(logging.RequestID(req.ID)).
					Add(logging.ErrorField(err)).
					Msg("failed to publish approved status change")
			}
		}
	}
}

func (a *Approvals) notifyAdmin(ctx context.Context, req *approval.Request) {
	if a.notifier == nil {
		return
	}
	msg := notification.Message{
		Template:    "approval_stalled",
		Recipients:  []string{"admin"},
		CandidateID: req.CandidateID,
		Context: map[string]any{
			"request_id":   req.ID,
			"request_type": req.RequestType,
		},
	}
	if err := a.notifier.Dispatch(ctx, msg); err != nil {
		logging.Warn().
			Add(logging.Component("approvals")).
			Add(logging.RequestID(req.ID)).
			Add(logging.ErrorField(err)).
			Msg("admin notification failed")
	}
}

// checkLifecycle replays the terminal transition through the request
// statechart. The aggregate has already applied the decision; the chart
// confirms it is a legal move out of pending and re-applies the status
// through the machine action.
func (a *Approvals) checkLifecycle(req *approval.Request, to approval.RequestStatus) error {
	mctx := &statemachine.Context{Request: req}
	interp := statemachine.NewInterpreter(a.machine, mctx)
	interp.Start()

	prev := req.Status
	req.Status = approval.RequestPending
	if err := interp.Resolve(to); err != nil {
		req.Status = prev
		return err
	}
	if interp.State() != to {
		req.Status = prev
		return approval.ErrInvalidDecision
	}
	return nil
}

// lockRequest acquires the per-request mutex, creating it on first use.
// Mirrors the dispatcher's per-candidate locks; the map grows with the
// request population, which is bounded in practice.
func (a *Approvals) lockRequest(requestID string) func() {
	a.mu.Lock()
	lock, ok := a.locks[requestID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[requestID] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (a *Approvals) publishResolved(ctx context.Context, req *approval.Request, outcome approval.Outcome) {
	if a.publisher == nil {
		return
	}
	evt, err := event.New(req.CandidateID, event.TypeApprovalResolved, event.ApprovalResolvedPayload{
		RequestID:   req.ID,
		RequestType: req.RequestType,
		Outcome:     string(outcome.Status),
		ResolvedBy:  outcome.ResolvedBy,
	})
	if err != nil {
		logging.Error().
			Add(logging.Component("approvals")).
			Add(logging.RequestID(req.ID)).
			Add(logging.ErrorField(err)).
			Msg("failed to build approval.resolved event")
		return
	}
	if err := a.publisher.Publish(ctx, evt); err != nil {
		logging.Error().
			Add(logging.Component("approvals")).
			Add(logging.RequestID(req.ID)).
			Add(logging.ErrorField(err)).
			Msg("failed to publish approval.resolved event")
	}
}
