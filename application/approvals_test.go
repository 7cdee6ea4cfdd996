package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/rule"
)

func roleStep(order int, role string, required bool) approval.StepTemplate {
	return approval.StepTemplate{
		Order:        order,
		ApproverType: approval.ApproverRole,
		ApproverRef:  role,
		IsRequired:   required,
	}
}

// stepID fetches the ID of the request's step at the given index.
func stepID(t *testing.T, sys *system, requestID string, index int) string {
	t.Helper()
	req, err := sys.approvals.Get(context.Background(), requestID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if index >= len(req.Steps) {
		t.Fatalf("request has %d steps, want index %d", len(req.Steps), index)
	}
	return req.Steps[index].ID
}

func TestApprovalsStepOrderingAndAuthorization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-1", nil,
		roleStep(1, "recruiter", true),
		roleStep(2, "hr_manager", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityHigh, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The second step may not resolve before the first.
	_, err = sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 1), approval.DecisionApprove, "hr-1", []string{"hr_manager"}, "")
	if !errors.Is(err, approval.ErrStepOutOfOrder) {
		t.Errorf("ResolveStep(step 2 first) error = %v, want ErrStepOutOfOrder", err)
	}

	_, err = sys.approvals.ResolveStep(ctx, req.ID, "no-such-step", approval.DecisionApprove, "hr-1", []string{"hr_manager"}, "")
	if !errors.Is(err, approval.ErrStepNotFound) {
		t.Errorf("ResolveStep(unknown step) error = %v, want ErrStepNotFound", err)
	}

	// Roles must satisfy the step's approver resolution.
	_, err = sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionApprove, "intern-1", []string{"intern"}, "")
	if !errors.Is(err, approval.ErrUnauthorizedApprover) {
		t.Errorf("ResolveStep(wrong role) error = %v, want ErrUnauthorizedApprover", err)
	}

	outcome, err := sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionApprove, "recruiter-1", []string{"recruiter"}, "looks good")
	if err != nil {
		t.Fatalf("ResolveStep(step 1) error = %v", err)
	}
	if outcome.Terminal {
		t.Fatal("ResolveStep(step 1) terminal, want pending")
	}
	sys.mustStatus(t, "cand-1", candidate.StatusExam)

	outcome, err = sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 1), approval.DecisionApprove, "hr-1", []string{"hr_manager"}, "")
	if err != nil {
		t.Fatalf("ResolveStep(step 2) error = %v", err)
	}
	if !outcome.Terminal || outcome.Status != approval.RequestApproved {
		t.Fatalf("outcome = %+v, want terminal approved", outcome)
	}

	// Full approval applies the gated status change through the ledger.
	sys.mustStatus(t, "cand-1", candidate.StatusForJobOffer)
	history, err := sys.ledger.HistoryOf(ctx, "cand-1")
	if err != nil {
		t.Fatalf("HistoryOf() error = %v", err)
	}
	last := history[len(history)-1]
	if last.Source != candidate.SourceAutomated || last.ChangedBy != "hr-1" {
		t.Errorf("applied record = %+v", last)
	}
}

func TestApprovalsRequiredRejectShortCircuits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-1", nil,
		roleStep(1, "recruiter", true),
		roleStep(2, "hr_manager", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	outcome, err := sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionReject, "recruiter-1", []string{"recruiter"}, "not a fit")
	if err != nil {
		t.Fatalf("ResolveStep() error = %v", err)
	}
	if !outcome.Terminal || outcome.Status != approval.RequestRejected {
		t.Fatalf("outcome = %+v, want terminal rejected", outcome)
	}

	got, err := sys.approvals.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Steps[1].Status != approval.StepSkipped {
		t.Errorf("downstream step status = %s, want %s", got.Steps[1].Status, approval.StepSkipped)
	}

	// A rejection applies nothing.
	sys.mustStatus(t, "cand-1", candidate.StatusExam)

	_, err = sys.approvals.ResolveStep(ctx, req.ID, got.Steps[1].ID, approval.DecisionApprove, "hr-1", []string{"hr_manager"}, "")
	if !errors.Is(err, approval.ErrRequestResolved) {
		t.Errorf("ResolveStep(resolved request) error = %v, want ErrRequestResolved", err)
	}
}

func TestApprovalsOptionalSteps(t *testing.T) {
	t.Parallel()

	t.Run("trailing optional steps skipped on consensus", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		sys := newSystem(t)

		flow := approvalFlow("flow-1", nil,
			roleStep(1, "recruiter", true),
			roleStep(2, "observer", false),
		)
		if err := sys.flows.Put(ctx, flow); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

		req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		outcome, err := sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionApprove, "recruiter-1", []string{"recruiter"}, "")
		if err != nil {
			t.Fatalf("ResolveStep() error = %v", err)
		}
		if !outcome.Terminal || outcome.Status != approval.RequestApproved {
			t.Fatalf("outcome = %+v, want terminal approved", outcome)
		}

		got, err := sys.approvals.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Steps[1].Status != approval.StepSkipped {
			t.Errorf("optional step status = %s, want %s", got.Steps[1].Status, approval.StepSkipped)
		}
		sys.mustStatus(t, "cand-1", candidate.StatusForJobOffer)
	})

	t.Run("optional rejection does not terminate", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		sys := newSystem(t)

		flow := approvalFlow("flow-1", nil,
			roleStep(1, "observer", false),
			roleStep(2, "recruiter", true),
		)
		if err := sys.flows.Put(ctx, flow); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

		req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		outcome, err := sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionReject, "obs-1", []string{"observer"}, "concerns noted")
		if err != nil {
			t.Fatalf("ResolveStep() error = %v", err)
		}
		if outcome.Terminal {
			t.Fatal("optional rejection terminated the request")
		}

		outcome, err = sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 1), approval.DecisionApprove, "recruiter-1", []string{"recruiter"}, "")
		if err != nil {
			t.Fatalf("ResolveStep() error = %v", err)
		}
		if !outcome.Terminal || outcome.Status != approval.RequestApproved {
			t.Fatalf("outcome = %+v, want terminal approved", outcome)
		}
	})
}

func TestApprovalsCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-1", nil, roleStep(1, "recruiter", true))
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sys.approvals.Cancel(ctx, req.ID, "recruiter-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, err := sys.approvals.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != approval.RequestCancelled {
		t.Fatalf("status = %s, want %s", got.Status, approval.RequestCancelled)
	}
	sys.mustStatus(t, "cand-1", candidate.StatusExam)

	_, err = sys.approvals.ResolveStep(ctx, req.ID, got.Steps[0].ID, approval.DecisionApprove, "recruiter-1", []string{"recruiter"}, "")
	if !errors.Is(err, approval.ErrRequestResolved) {
		t.Errorf("ResolveStep(cancelled) error = %v, want ErrRequestResolved", err)
	}
	if err := sys.approvals.Cancel(ctx, req.ID, "recruiter-1"); !errors.Is(err, approval.ErrRequestResolved) {
		t.Errorf("Cancel(cancelled) error = %v, want ErrRequestResolved", err)
	}
}

func TestApprovalsListPendingFiltersByCurrentStep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	recruiterFlow := approvalFlow("flow-recruiter", nil, roleStep(1, "recruiter", true))
	hrFlow := approvalFlow("flow-hr", nil, roleStep(1, "hr_manager", true))
	for _, f := range []approval.Flow{recruiterFlow, hrFlow} {
		if err := sys.flows.Put(ctx, f); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)
	sys.seedCandidate(t, "cand-2", candidate.StatusExam, nil)

	if _, err := sys.approvals.Create(ctx, "cand-1", "flow-recruiter", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "op", approval.PriorityMedium, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := sys.approvals.Create(ctx, "cand-2", "flow-hr", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "op", approval.PriorityMedium, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := sys.approvals.ListPending(ctx, "", nil)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListPending(all) = %d, want 2", len(all))
	}

	mine, err := sys.approvals.ListPending(ctx, "u1", []string{"recruiter"})
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(mine) != 1 || mine[0].CandidateID != "cand-1" {
		t.Errorf("ListPending(recruiter) = %d requests, want the recruiter-gated one", len(mine))
	}
}

func TestApprovalsEscalateAutoApprove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)
	base := sys.clock.Now()

	flow := approvalFlow("flow-1",
		&approval.EscalationRule{TimeoutHours: 24, Action: approval.EscalationAutoApprove},
		roleStep(1, "recruiter", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityUrgent, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sys.approvals.Escalate(ctx, base.Add(23*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	got, err := sys.approvals.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != approval.RequestPending {
		t.Fatalf("status before timeout = %s, want pending", got.Status)
	}

	if err := sys.approvals.Escalate(ctx, base.Add(25*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	got, err = sys.approvals.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != approval.RequestApproved {
		t.Fatalf("status after timeout = %s, want approved", got.Status)
	}
	if got.Steps[0].ApprovedBy != escalationActor {
		t.Errorf("step resolved by %q, want %q", got.Steps[0].ApprovedBy, escalationActor)
	}
	sys.mustStatus(t, "cand-1", candidate.StatusForJobOffer)
}

func TestApprovalsEscalateToManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)
	base := sys.clock.Now()

	flow := approvalFlow("flow-1",
		&approval.EscalationRule{TimeoutHours: 24, Action: approval.EscalationEscalateToManager, EscalateToRole: "manager"},
		roleStep(1, "recruiter", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sys.approvals.Escalate(ctx, base.Add(25*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}

	// The original role lost the step; the manager role gained it.
	_, err = sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionApprove, "recruiter-1", []string{"recruiter"}, "")
	if !errors.Is(err, approval.ErrUnauthorizedApprover) {
		t.Errorf("ResolveStep(original role) error = %v, want ErrUnauthorizedApprover", err)
	}

	outcome, err := sys.approvals.ResolveStep(ctx, req.ID, stepID(t, sys, req.ID, 0), approval.DecisionApprove, "mgr-1", []string{"manager"}, "")
	if err != nil {
		t.Fatalf("ResolveStep(manager) error = %v", err)
	}
	if !outcome.Terminal || outcome.Status != approval.RequestApproved {
		t.Fatalf("outcome = %+v, want terminal approved", outcome)
	}
}

func TestApprovalsEscalateNotifyAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)
	base := sys.clock.Now()

	flow := approvalFlow("flow-1",
		&approval.EscalationRule{TimeoutHours: 24, Action: approval.EscalationNotifyAdmin},
		roleStep(1, "recruiter", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	if _, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityMedium, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sys.approvals.Escalate(ctx, base.Add(25*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if got := sys.notifier.count(); got != 1 {
		t.Fatalf("notifications = %d, want 1", got)
	}

	// The step timer restarts, so the next scan stays quiet.
	if err := sys.approvals.Escalate(ctx, base.Add(26*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if got := sys.notifier.count(); got != 1 {
		t.Errorf("notifications after quiet scan = %d, want 1", got)
	}

	if err := sys.approvals.Escalate(ctx, base.Add(50*time.Hour)); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if got := sys.notifier.count(); got != 2 {
		t.Errorf("notifications after second timeout = %d, want 2", got)
	}
}

func TestRuleDrivenApprovalRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-offer", nil, roleStep(1, "hiring_manager", true))
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	r := &rule.Rule{
		ID:       "rule-offer-gate",
		Name:     "gate job offers",
		IsActive: true,
		Trigger: rule.Trigger{
			Kind:         rule.TriggerStatusChange,
			StatusChange: &rule.StatusChangeTrigger{To: candidate.StatusFinalInterview},
		},
		Actions: []rule.Action{{
			Kind: rule.ActionRequestApproval,
			RequestApproval: &rule.RequestApprovalAction{
				FlowID:         "flow-offer",
				RequestType:    RequestTypeStatusChange,
				RequestedValue: string(candidate.StatusForJobOffer),
				Priority:       string(approval.PriorityHigh),
			},
		}},
	}
	if err := sys.rules.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sys.seedCandidate(t, "cand-1", candidate.StatusTechnicalInterview, nil)
	sys.transitionAndSubmit(t, "cand-1", candidate.StatusFinalInterview)

	pending, err := sys.approvals.ListPending(ctx, "", nil)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() = %d requests, want 1", len(pending))
	}
	req := pending[0]
	if req.RuleID != "rule-offer-gate" || req.RequestedValue != string(candidate.StatusForJobOffer) {
		t.Errorf("request = %+v", req)
	}
	// The transition itself waits for the approval.
	sys.mustStatus(t, "cand-1", candidate.StatusFinalInterview)

	// Approving applies the requested value and cascades normally.
	outcome, err := sys.approvals.ResolveStep(ctx, req.ID, req.Steps[0].ID, approval.DecisionApprove, "hm-1", []string{"hiring_manager"}, "offer approved")
	if err != nil {
		t.Fatalf("ResolveStep() error = %v", err)
	}
	if !outcome.Terminal || outcome.Status != approval.RequestApproved {
		t.Fatalf("outcome = %+v, want terminal approved", outcome)
	}
	sys.mustStatus(t, "cand-1", candidate.StatusForJobOffer)
}

func TestRuleApprovalUnknownFlowIsPermanentFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	r := &rule.Rule{
		ID:       "rule-broken",
		Name:     "references missing flow",
		IsActive: true,
		Trigger: rule.Trigger{
			Kind:         rule.TriggerStatusChange,
			StatusChange: &rule.StatusChangeTrigger{To: candidate.StatusFinalInterview},
		},
		Actions: []rule.Action{{
			Kind: rule.ActionRequestApproval,
			RequestApproval: &rule.RequestApprovalAction{
				FlowID:      "no-such-flow",
				RequestType: RequestTypeStatusChange,
			},
		}},
	}
	if err := sys.rules.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sys.seedCandidate(t, "cand-1", candidate.StatusTechnicalInterview, nil)
	sys.transitionAndSubmit(t, "cand-1", candidate.StatusFinalInterview)

	failures := sys.failures.List()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].ActionKind != rule.ActionRequestApproval || failures[0].Attempts != 1 {
		t.Errorf("failure = %+v", failures[0])
	}
}

func TestApprovalsConcurrentResolversTerminateOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-1", nil, roleStep(1, "hr_manager", true))
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityHigh, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	sid := stepID(t, sys, req.ID, 0)

	const resolvers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		rejected []error
	)
	start := make(chan struct{})
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(approver string) {
			defer wg.Done()
			<-start
			_, err := sys.approvals.ResolveStep(ctx, req.ID, sid, approval.DecisionApprove, approver, []string{"hr_manager"}, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				approved++
			} else {
				rejected = append(rejected, err)
			}
		}("hr-" + string(rune('a'+i)))
	}
	close(start)
	wg.Wait()

	if approved != 1 {
		t.Fatalf("terminal resolutions = %d, want exactly 1", approved)
	}
	for _, err := range rejected {
		if !errors.Is(err, approval.ErrRequestResolved) {
			t.Errorf("losing resolver error = %v, want ErrRequestResolved", err)
		}
	}

	// The gated status change applied exactly once: seed plus one record.
	history, err := sys.ledger.HistoryOf(ctx, "cand-1")
	if err != nil {
		t.Fatalf("HistoryOf() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d records, want 2", len(history))
	}
	sys.mustStatus(t, "cand-1", candidate.StatusForJobOffer)
}

func TestApprovalsResolverRacingEscalation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	flow := approvalFlow("flow-1",
		&approval.EscalationRule{TimeoutHours: 24, Action: approval.EscalationAutoApprove},
		roleStep(1, "hr_manager", true),
	)
	if err := sys.flows.Put(ctx, flow); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	sys.seedCandidate(t, "cand-1", candidate.StatusExam, nil)

	req, err := sys.approvals.Create(ctx, "cand-1", "flow-1", RequestTypeStatusChange, string(candidate.StatusForJobOffer), "recruiter-1", approval.PriorityHigh, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	sid := stepID(t, sys, req.ID, 0)
	stalled := sys.clock.Advance(25 * time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = sys.approvals.ResolveStep(ctx, req.ID, sid, approval.DecisionApprove, "hr-1", []string{"hr_manager"}, "")
	}()
	go func() {
		defer wg.Done()
		if err := sys.approvals.Escalate(ctx, stalled); err != nil {
			t.Errorf("Escalate() error = %v", err)
		}
	}()
	wg.Wait()

	resolved, err := sys.approvals.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resolved.Status != approval.RequestApproved {
		t.Fatalf("request status = %s, want approved", resolved.Status)
	}

	// Whoever lost the race found the request terminal and backed off;
	// the status change landed exactly once.
	history, err := sys.ledger.HistoryOf(ctx, "cand-1")
	if err != nil {
		t.Fatalf("HistoryOf() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d records, want 2", len(history))
	}
}
