package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/infrastructure/resilience"
	"github.com/hirewire/pipeline-go/infrastructure/storage/memory"
)

// fakeClock is a manually advanced clock shared by every component of a
// test system.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// recordingNotifier captures dispatched messages; failWith injects
// delivery failures.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
	failWith error
}

func (n *recordingNotifier) Dispatch(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// recordingCollaborators implements every collaborator interface and
// records the calls.
type recordingCollaborators struct {
	mu         sync.Mutex
	interviews []string
	notes      []string
	jobs       []string
}

func (r *recordingCollaborators) ScheduleInterview(_ context.Context, candidateID string, _ rule.ScheduleInterviewAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interviews = append(r.interviews, candidateID)
	return nil
}

func (r *recordingCollaborators) AppendNote(_ context.Context, candidateID, text, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, candidateID+": "+text)
	return nil
}

func (r *recordingCollaborators) AssignJob(_ context.Context, candidateID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, candidateID+": "+jobID)
	return nil
}

func (r *recordingCollaborators) noteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// system is a fully wired in-memory orchestration stack.
type system struct {
	clock         *fakeClock
	rules         *memory.RuleStore
	history       *memory.HistoryStore
	snapshots     *memory.SnapshotProvider
	jobs          *memory.JobStore
	approvalStore *memory.ApprovalStore
	flows         *memory.FlowStore
	ledger        *ledger.Ledger
	engine        *Engine
	executor      *Executor
	dispatcher    *Dispatcher
	scheduler     *Scheduler
	approvals     *Approvals
	failures      *FailureLog
	notifier      *recordingNotifier
	collab        *recordingCollaborators
}

func newSystem(t *testing.T) *system {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	ruleStore := memory.NewRuleStore()
	historyStore := memory.NewHistoryStore()
	snapshots := memory.NewSnapshotProvider()
	jobStore := memory.NewJobStore()
	approvalStore := memory.NewApprovalStore()
	flowStore := memory.NewFlowStore()
	notifier := &recordingNotifier{}
	collab := &recordingCollaborators{}

	led := ledger.New(historyStore, ledger.WithClock(clock.Now))
	overlay := NewStatusOverlayProvider(snapshots, led)
	engine := NewEngine(ruleStore, overlay, WithEngineClock(clock.Now))
	failures := NewFailureLog(100)

	res := resilience.New(resilience.Config{
		MaxConcurrent:           4,
		CircuitBreakerThreshold: 100,
		CircuitBreakerTimeout:   time.Second,
		RetryMaxAttempts:        2,
		RetryInitialDelay:       time.Millisecond,
		RetryBackoffMultiplier:  1.0,
		CallTimeout:             time.Second,
	})

	approvals, err := NewApprovals(approvalStore, flowStore,
		WithApprovalsClock(clock.Now),
		WithApprovalsNotifier(notifier),
		WithApprovalsLedger(led),
	)
	if err != nil {
		t.Fatalf("NewApprovals() error = %v", err)
	}

	executor := NewExecutor(led, approvals, notifier, res, failures,
		WithInterviewScheduler(collab),
		WithNoteAppender(collab),
		WithJobAssigner(collab),
	)
	dispatcher := NewDispatcher(engine, executor)
	scheduler := NewScheduler(jobStore, ruleStore, led, engine, dispatcher, approvals,
		WithSchedulerClock(clock.Now))
	approvals.SetPublisher(dispatcher)

	return &system{
		clock:         clock,
		rules:         ruleStore,
		history:       historyStore,
		snapshots:     snapshots,
		jobs:          jobStore,
		approvalStore: approvalStore,
		flows:         flowStore,
		ledger:        led,
		engine:        engine,
		executor:      executor,
		dispatcher:    dispatcher,
		scheduler:     scheduler,
		approvals:     approvals,
		failures:      failures,
		notifier:      notifier,
		collab:        collab,
	}
}

// seedCandidate gives the candidate a snapshot and an initial ledger
// status.
func (s *system) seedCandidate(t *testing.T, candidateID string, status candidate.Status, scores map[string]float64) {
	t.Helper()
	s.snapshots.Put(candidate.Snapshot{
		CandidateID: candidateID,
		Status:      status,
		Scores:      scores,
	})
	if _, err := s.ledger.Transition(context.Background(), candidateID, status, candidate.SourceManual, "seed", "", ""); err != nil {
		t.Fatalf("seed transition error = %v", err)
	}
}

// transitionAndSubmit performs a manual transition and feeds the
// resulting status.changed event into the dispatcher, the way the
// operator-facing surface does.
func (s *system) transitionAndSubmit(t *testing.T, candidateID string, to candidate.Status) {
	t.Helper()
	ctx := context.Background()
	rec, err := s.ledger.Transition(ctx, candidateID, to, candidate.SourceManual, "operator", "", "")
	if err != nil {
		t.Fatalf("Transition(%s) error = %v", to, err)
	}
	evt, err := event.New(candidateID, event.TypeStatusChanged, event.StatusChangedPayload{
		From:   rec.From,
		To:     rec.To,
		Source: candidate.SourceManual,
	})
	if err != nil {
		t.Fatalf("event.New() error = %v", err)
	}
	if err := s.dispatcher.Submit(ctx, evt); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}

// mustStatus asserts the candidate's current ledger status.
func (s *system) mustStatus(t *testing.T, candidateID string, want candidate.Status) {
	t.Helper()
	got, err := s.ledger.CurrentStatus(context.Background(), candidateID)
	if err != nil {
		t.Fatalf("CurrentStatus() error = %v", err)
	}
	if got != want {
		t.Fatalf("CurrentStatus() = %s, want %s", got, want)
	}
}

// changeStatusRule builds a rule transitioning candidates reaching
// `from` onward to `to`.
func changeStatusRule(id string, from, to candidate.Status) *rule.Rule {
	return &rule.Rule{
		ID:       id,
		Name:     "move " + string(from) + " to " + string(to),
		IsActive: true,
		Trigger: rule.Trigger{
			Kind:         rule.TriggerStatusChange,
			StatusChange: &rule.StatusChangeTrigger{To: from},
		},
		Actions: []rule.Action{{
			Kind:         rule.ActionChangeStatus,
			ChangeStatus: &rule.ChangeStatusAction{Target: to},
		}},
	}
}

func approvalFlow(id string, escalation *approval.EscalationRule, steps ...approval.StepTemplate) approval.Flow {
	return approval.Flow{
		ID:         id,
		Name:       id,
		Steps:      steps,
		Escalation: escalation,
	}
}
