package application

import (
	"context"
	"sync"
	"testing"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/domain/rule"
)

func TestDispatcherCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	// rule-a: PAPER_SCREENING -> EXAM, rule-b: EXAM -> HR_INTERVIEW.
	// A manual move into PAPER_SCREENING must cascade all the way.
	if err := sys.rules.Create(ctx, changeStatusRule("rule-a", candidate.StatusPaperScreening, candidate.StatusExam)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := sys.rules.Create(ctx, changeStatusRule("rule-b", candidate.StatusExam, candidate.StatusHRInterview)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sys.seedCandidate(t, "cand-1", candidate.StatusForReview, nil)
	sys.transitionAndSubmit(t, "cand-1", candidate.StatusPaperScreening)

	sys.mustStatus(t, "cand-1", candidate.StatusHRInterview)

	history, err := sys.ledger.HistoryOf(ctx, "cand-1")
	if err != nil {
		t.Fatalf("HistoryOf() error = %v", err)
	}
	// seed, manual, cascade x2.
	if len(history) != 4 {
		t.Fatalf("HistoryOf() = %d records, want 4", len(history))
	}
	for _, rec := range history[2:] {
		if rec.Source != candidate.SourceAutomated {
			t.Errorf("cascade record source = %s, want %s", rec.Source, candidate.SourceAutomated)
		}
		if rec.RuleID == "" {
			t.Error("cascade record missing rule ID")
		}
	}
}

func TestDispatcherCascadeDepthBounded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	// Two rules forming a cycle; only the depth bound stops them.
	if err := sys.rules.Create(ctx, changeStatusRule("rule-a", candidate.StatusPaperScreening, candidate.StatusExam)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := sys.rules.Create(ctx, changeStatusRule("rule-b", candidate.StatusExam, candidate.StatusPaperScreening)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sys.seedCandidate(t, "cand-1", candidate.StatusForReview, nil)
	sys.transitionAndSubmit(t, "cand-1", candidate.StatusPaperScreening)

	history, err := sys.ledger.HistoryOf(ctx, "cand-1")
	if err != nil {
		t.Fatalf("HistoryOf() error = %v", err)
	}
	// seed + manual + at most maxDepth cascades.
	if len(history) > 2+defaultMaxCascadeDepth {
		t.Errorf("HistoryOf() = %d records, cascade not bounded", len(history))
	}
}

func TestDispatcherNonRetryableFailureSkipsSiblings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)
	sys.notifier.failWith = notification.ErrEndpointRejected

	failing := &rule.Rule{
		ID:       "rule-a",
		Name:     "notify then note",
		IsActive: true,
		Trigger: rule.Trigger{
			Kind:         rule.TriggerStatusChange,
			StatusChange: &rule.StatusChangeTrigger{To: candidate.StatusPaperScreening},
		},
		Actions: []rule.Action{
			{
				Kind:             rule.ActionSendNotification,
				SendNotification: &rule.SendNotificationAction{Template: "t", Recipients: []string{"r"}},
			},
			{
				Kind:    rule.ActionAddNote,
				AddNote: &rule.AddNoteAction{Text: "should be skipped"},
			},
		},
	}
	other := &rule.Rule{
		ID:       "rule-b",
		Name:     "independent note",
		IsActive: true,
		Trigger: rule.Trigger{
			Kind:         rule.TriggerStatusChange,
			StatusChange: &rule.StatusChangeTrigger{To: candidate.StatusPaperScreening},
		},
		Actions: []rule.Action{{
			Kind:    rule.ActionAddNote,
			AddNote: &rule.AddNoteAction{Text: "still runs"},
		}},
	}
	for _, r := range []*rule.Rule{failing, other} {
		if err := sys.rules.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	sys.seedCandidate(t, "cand-1", candidate.StatusForReview, nil)
	sys.transitionAndSubmit(t, "cand-1", candidate.StatusPaperScreening)

	if got := sys.collab.noteCount(); got != 1 {
		t.Errorf("notes = %d, want 1 (failing rule's sibling skipped, other rule ran)", got)
	}

	failures := sys.failures.List()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	f := failures[0]
	if f.RuleID != "rule-a" || f.ActionKind != rule.ActionSendNotification {
		t.Errorf("failure = %+v", f)
	}
	if f.Attempts != 1 {
		t.Errorf("failure attempts = %d, want 1 (non-retryable)", f.Attempts)
	}
}

func TestDispatcherSerializesPerCandidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sys := newSystem(t)

	if err := sys.rules.Create(ctx, changeStatusRule("rule-a", candidate.StatusPaperScreening, candidate.StatusExam)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		candidateID := "cand-" + string(rune('a'+i))
		sys.seedCandidate(t, candidateID, candidate.StatusForReview, nil)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			rec, err := sys.ledger.Transition(ctx, id, candidate.StatusPaperScreening, candidate.SourceManual, "op", "", "")
			if err != nil {
				t.Errorf("Transition() error = %v", err)
				return
			}
			evt := statusChangedEvent(t, id, rec.From, rec.To)
			if err := sys.dispatcher.Submit(ctx, evt); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}(candidateID)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		sys.mustStatus(t, "cand-"+string(rune('a'+i)), candidate.StatusExam)
	}
}
