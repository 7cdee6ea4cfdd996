package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/domain/schedule"
)

func testRule(id string) *rule.Rule {
	return &rule.Rule{
		ID:       id,
		Name:     "auto-shortlist",
		IsActive: true,
		Trigger:  rule.Trigger{Kind: rule.TriggerStatusChange},
		Actions: []rule.Action{{
			Kind:         rule.ActionChangeStatus,
			ChangeStatus: &rule.ChangeStatusAction{Target: candidate.StatusPaperScreening},
		}},
	}
}

func TestRuleStoreCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRuleStore()

	r := testRule("")
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	dup := testRule(r.ID)
	if err := store.Create(ctx, dup); !errors.Is(err, rule.ErrRuleExists) {
		t.Errorf("Create() duplicate error = %v, want ErrRuleExists", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "auto-shortlist" {
		t.Errorf("Get() name = %q", got.Name)
	}

	// Mutating the returned copy must not touch the stored rule.
	got.Name = "mutated"
	again, _ := store.Get(ctx, r.ID)
	if again.Name != "auto-shortlist" {
		t.Error("Get() returned a shared reference")
	}

	if err := store.SetActive(ctx, r.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() after deactivation = %d rules, want 0", len(active))
	}

	if err := store.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, r.ID); !errors.Is(err, rule.ErrRuleNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRuleNotFound", err)
	}
}

func TestRuleStoreListActiveOrdered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRuleStore()

	for _, id := range []string{"rule-c", "rule-a", "rule-b"} {
		if err := store.Create(ctx, testRule(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	want := []string{"rule-a", "rule-b", "rule-c"}
	for i, r := range active {
		if r.ID != want[i] {
			t.Errorf("ListActive()[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
}

func TestRuleStoreReplace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRuleStore()
	if err := store.Create(ctx, testRule("old")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Replace(ctx, []rule.Rule{*testRule("new-1"), *testRule("new-2")}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if _, err := store.Get(ctx, "old"); !errors.Is(err, rule.ErrRuleNotFound) {
		t.Errorf("Get(old) after Replace error = %v, want ErrRuleNotFound", err)
	}
	all, _ := store.List(ctx)
	if len(all) != 2 {
		t.Errorf("List() after Replace = %d rules, want 2", len(all))
	}
}

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewHistoryStore()

	if _, err := store.Latest(ctx, "cand-1"); !errors.Is(err, ledger.ErrNoHistory) {
		t.Errorf("Latest() empty error = %v, want ErrNoHistory", err)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	recs := []candidate.TransitionRecord{
		{ID: "t1", CandidateID: "cand-1", To: candidate.StatusForReview, ChangedAt: base},
		{ID: "t2", CandidateID: "cand-1", From: candidate.StatusForReview, To: candidate.StatusPaperScreening, ChangedAt: base.Add(time.Hour)},
	}
	for _, rec := range recs {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	latest, err := store.Latest(ctx, "cand-1")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.To != candidate.StatusPaperScreening {
		t.Errorf("Latest().To = %s, want %s", latest.To, candidate.StatusPaperScreening)
	}

	hist, err := store.History(ctx, "cand-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 2 || hist[0].ID != "t1" {
		t.Errorf("History() = %v, want t1 first", hist)
	}

	ids, err := store.Candidates(ctx)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "cand-1" {
		t.Errorf("Candidates() = %v", ids)
	}
}

func TestJobStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	key := schedule.Key{RuleID: "rule-1", CandidateID: "cand-1", ActionIndex: 0, TriggeredAt: now}
	job := schedule.Job{Key: key, DueAt: now.Add(time.Hour), CreatedAt: now}

	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, job); !errors.Is(err, schedule.ErrJobExists) {
		t.Errorf("Put() duplicate error = %v, want ErrJobExists", err)
	}

	// Not due yet.
	due, err := store.Claim(ctx, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Claim() before due = %d jobs, want 0", len(due))
	}

	due, err = store.Claim(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Claim() = %d jobs, want 1", len(due))
	}

	// Claimed jobs are gone.
	due, _ = store.Claim(ctx, now.Add(3*time.Hour))
	if len(due) != 0 {
		t.Errorf("Claim() second pass = %d jobs, want 0", len(due))
	}

	if err := store.Cancel(ctx, key); !errors.Is(err, schedule.ErrJobNotFound) {
		t.Errorf("Cancel() after claim error = %v, want ErrJobNotFound", err)
	}
}

func TestApprovalStorePendingOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewApprovalStore()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	steps := []approval.Step{{Order: 1, ApproverType: approval.ApproverRole, ApproverRef: "recruiter", IsRequired: true}}
	newer, err := approval.NewRequest("cand-2", "status_change", "", "system", approval.PriorityMedium, steps, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	older, err := approval.NewRequest("cand-1", "status_change", "", "system", approval.PriorityMedium, steps, now)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	for _, r := range []*approval.Request{newer, older} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPending() = %d requests, want 2", len(pending))
	}
	if pending[0].CandidateID != "cand-1" {
		t.Errorf("ListPending() order: first = %s, want cand-1", pending[0].CandidateID)
	}

	// Resolving removes from pending.
	step := older.Steps[0]
	if _, err := older.ResolveStep(step.ID, approval.DecisionApprove, "u1", []string{"recruiter"}, "", now.Add(time.Minute)); err != nil {
		t.Fatalf("ResolveStep() error = %v", err)
	}
	if err := store.Update(ctx, older); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	pending, _ = store.ListPending(ctx)
	if len(pending) != 1 {
		t.Errorf("ListPending() after resolve = %d, want 1", len(pending))
	}
}

func TestSnapshotProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewSnapshotProvider()

	if _, err := p.Snapshot(ctx, "missing"); !errors.Is(err, candidate.ErrCandidateNotFound) {
		t.Errorf("Snapshot() missing error = %v, want ErrCandidateNotFound", err)
	}

	p.Put(candidate.Snapshot{
		CandidateID: "cand-1",
		Status:      candidate.StatusForReview,
		Scores:      map[string]float64{"resume": 82},
	})
	snap, err := p.Snapshot(ctx, "cand-1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if v, ok := snap.Score("resume"); !ok || v != 82 {
		t.Errorf("Score(resume) = %v, %v", v, ok)
	}

	p.SetStatus("cand-1", candidate.StatusPaperScreening)
	snap, _ = p.Snapshot(ctx, "cand-1")
	if snap.Status != candidate.StatusPaperScreening {
		t.Errorf("SetStatus() status = %s", snap.Status)
	}
}
