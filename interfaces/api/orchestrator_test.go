package api

import (
	"context"
	"testing"

	"github.com/hirewire/pipeline-go/infrastructure/storage/memory"
)

func newTestOrchestrator(t *testing.T, snapshots *memory.SnapshotProvider) *Orchestrator {
	t.Helper()
	orch, err := New(WithSnapshotProvider(snapshots))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	return orch
}

func TestOrchestratorManualTransitionCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	snapshots := memory.NewSnapshotProvider()
	orch := newTestOrchestrator(t, snapshots)

	if err := orch.CreateRule(ctx, &Rule{
		ID:       "advance-screened",
		Name:     "advance screened candidates",
		IsActive: true,
		Trigger: Trigger{
			Kind:         TriggerStatusChange,
			StatusChange: &StatusChangeTrigger{To: StatusPaperScreening},
		},
		Actions: []Action{{
			Kind:         ActionChangeStatus,
			ChangeStatus: &ChangeStatusAction{Target: StatusExam},
		}},
	}); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	snapshots.Put(Snapshot{CandidateID: "cand-1", Status: StatusForReview})
	if _, err := orch.TransitionCandidate(ctx, "cand-1", StatusForReview, "seed", ""); err != nil {
		t.Fatalf("TransitionCandidate(seed) error = %v", err)
	}

	rec, err := orch.TransitionCandidate(ctx, "cand-1", StatusPaperScreening, "recruiter-1", "screen done")
	if err != nil {
		t.Fatalf("TransitionCandidate() error = %v", err)
	}
	if rec.From != StatusForReview || rec.To != StatusPaperScreening {
		t.Errorf("record = %+v", rec)
	}

	// The automated consequence is applied before return.
	status, err := orch.CurrentStatus(ctx, "cand-1")
	if err != nil {
		t.Fatalf("CurrentStatus() error = %v", err)
	}
	if status != StatusExam {
		t.Errorf("CurrentStatus() = %s, want %s", status, StatusExam)
	}

	history, err := orch.History(ctx, "cand-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Errorf("History() = %d records, want 3", len(history))
	}
}

func TestOrchestratorApprovalLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	snapshots := memory.NewSnapshotProvider()
	orch := newTestOrchestrator(t, snapshots)

	if err := orch.PutFlow(ctx, Flow{
		ID:   "offer-approval",
		Name: "offer approval",
		Steps: []StepTemplate{{
			Order:        1,
			ApproverType: ApproverRole,
			ApproverRef:  "hiring_manager",
			IsRequired:   true,
		}},
	}); err != nil {
		t.Fatalf("PutFlow() error = %v", err)
	}

	snapshots.Put(Snapshot{CandidateID: "cand-1", Status: StatusFinalInterview})
	if _, err := orch.TransitionCandidate(ctx, "cand-1", StatusFinalInterview, "seed", ""); err != nil {
		t.Fatalf("TransitionCandidate(seed) error = %v", err)
	}

	req, err := orch.CreateApprovalRequest(ctx, "cand-1", "offer-approval", "status_change", string(StatusForJobOffer), "recruiter-1", PriorityHigh)
	if err != nil {
		t.Fatalf("CreateApprovalRequest() error = %v", err)
	}

	pending, err := orch.ListPendingApprovals(ctx, "hm-1", []string{"hiring_manager"})
	if err != nil {
		t.Fatalf("ListPendingApprovals() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPendingApprovals() = %d, want 1", len(pending))
	}

	outcome, err := orch.ResolveApprovalStep(ctx, req.ID, pending[0].Steps[0].ID, DecisionApprove, "hm-1", []string{"hiring_manager"}, "approved")
	if err != nil {
		t.Fatalf("ResolveApprovalStep() error = %v", err)
	}
	if !outcome.Terminal {
		t.Fatal("outcome not terminal")
	}

	status, err := orch.CurrentStatus(ctx, "cand-1")
	if err != nil {
		t.Fatalf("CurrentStatus() error = %v", err)
	}
	if status != StatusForJobOffer {
		t.Errorf("CurrentStatus() = %s, want %s", status, StatusForJobOffer)
	}
}

func TestOrchestratorRuleLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	orch := newTestOrchestrator(t, memory.NewSnapshotProvider())

	r := &Rule{
		ID:       "r1",
		Name:     "sample",
		IsActive: true,
		Trigger:  Trigger{Kind: TriggerStatusChange},
		Actions: []Action{{
			Kind:    ActionAddNote,
			AddNote: &AddNoteAction{Text: "hello"},
		}},
	}
	if err := orch.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	if err := orch.ToggleRule(ctx, "r1", false); err != nil {
		t.Fatalf("ToggleRule() error = %v", err)
	}
	got, err := orch.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got.IsActive {
		t.Error("rule still active after toggle")
	}

	if err := orch.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if _, err := orch.GetRule(ctx, "r1"); err == nil {
		t.Error("GetRule() after delete succeeded")
	}
}
