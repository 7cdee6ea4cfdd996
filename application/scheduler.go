package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/domain/schedule"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// Scheduler owns everything time-driven: durable delayed actions,
// elapsed-time trigger scans and approval escalations. All of it runs
// off one periodic tick rather than per-job timers, so restarts only
// delay work by at most one interval.
type Scheduler struct {
	store      schedule.Store
	rules      rule.Repository
	ledger     *ledger.Ledger
	engine     *Engine
	dispatcher *Dispatcher
	approvals  *Approvals
	clock      func() time.Time
	interval   time.Duration

	mu sync.Mutex
	// fired dedupes elapsed-trigger emissions. Keys include the status
	// change instant, so a candidate re-entering a status re-arms every
	// threshold. Delivery is at-least-once across restarts; execution
	// stays idempotent through fire-time revalidation.
	fired map[string]struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock replaces the wall clock, used by tests.
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithTickInterval sets the periodic scan interval.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewScheduler creates the scheduler and wires it into the dispatcher.
func NewScheduler(store schedule.Store, rules rule.Repository, led *ledger.Ledger, engine *Engine, dispatcher *Dispatcher, approvals *Approvals, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:      store,
		rules:      rules,
		ledger:     led,
		engine:     engine,
		dispatcher: dispatcher,
		approvals:  approvals,
		clock:      time.Now,
		interval:   30 * time.Second,
		fired:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	dispatcher.SetScheduler(s)
	dispatcher.executor.SetRetryScheduler(s)
	return s
}

// Schedule persists a delayed invocation. The job key derives from the
// rule, candidate, action index and trigger instant, so re-delivery of
// the same trigger never double-schedules.
func (s *Scheduler) Schedule(ctx context.Context, inv ActionInvocation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invocation: %w", err)
	}

	job := schedule.Job{
		Key: schedule.Key{
			RuleID:      inv.RuleID,
			CandidateID: inv.CandidateID,
			ActionIndex: inv.ActionIndex,
			TriggeredAt: inv.TriggeredAt,
		},
		DueAt:     inv.TriggeredAt.Add(inv.Action.DelayDuration()),
		Payload:   payload,
		CreatedAt: s.clock(),
	}

	if err := s.store.Put(ctx, job); err != nil {
		if errors.Is(err, schedule.ErrJobExists) {
			logging.Debug().
				Add(logging.Component("scheduler")).
				Add(logging.Str("job_key", job.Key.String())).
				Msg("job already scheduled")
			return nil
		}
		return err
	}

	logging.Info().
		Add(logging.Component("scheduler")).
		Add(logging.RuleID(inv.RuleID)).
		Add(logging.CandidateID(inv.CandidateID)).
		Add(logging.ActionIndex(inv.ActionIndex)).
		Add(logging.Str("due_at", job.DueAt.Format(time.RFC3339))).
		Msg("delayed action scheduled")
	return nil
}

// ScheduleRetry re-enqueues a collaborator invocation after a transient
// failure, due after the backoff delay. The job reuses the invocation's
// key; the prior attempt's job was already claimed, so the put cannot
// collide with it.
func (s *Scheduler) ScheduleRetry(ctx context.Context, inv ActionInvocation, delay time.Duration) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invocation: %w", err)
	}

	now := s.clock()
	job := schedule.Job{
		Key: schedule.Key{
			RuleID:      inv.RuleID,
			CandidateID: inv.CandidateID,
			ActionIndex: inv.ActionIndex,
			TriggeredAt: inv.TriggeredAt,
		},
		DueAt:     now.Add(delay),
		Payload:   payload,
		CreatedAt: now,
	}

	if err := s.store.Put(ctx, job); err != nil {
		if errors.Is(err, schedule.ErrJobExists) {
			return nil
		}
		return err
	}
	return nil
}

// Cancel removes a pending job.
func (s *Scheduler) Cancel(ctx context.Context, key schedule.Key) error {
	return s.store.Cancel(ctx, key)
}

// Pending returns all stored jobs, soonest first.
func (s *Scheduler) Pending(ctx context.Context) ([]schedule.Job, error) {
	return s.store.Pending(ctx)
}

// Tick claims and fires every job due as of now. Each job's
// precondition is revalidated first: a deactivated rule, a changed
// candidate status or conditions that no longer hold turn the firing
// into a logged no-op.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	jobs, err := s.store.Claim(ctx, now)
	if err != nil {
		return fmt.Errorf("claim due jobs: %w", err)
	}

	for _, job := range jobs {
		var inv ActionInvocation
		if err := json.Unmarshal(job.Payload, &inv); err != nil {
			logging.Error().
				Add(logging.Component("scheduler")).
				Add(logging.Str("job_key", job.Key.String())).
				Add(logging.ErrorField(err)).
				Msg("dropping undecodable job")
			continue
		}

		ok, err := s.engine.Revalidate(ctx, inv)
		if err != nil {
			logging.Error().
				Add(logging.Component("scheduler")).
				Add(logging.Str("job_key", job.Key.String())).
				Add(logging.ErrorField(err)).
				Msg("revalidation failed, dropping job")
			continue
		}
		if !ok {
			logging.Info().
				Add(logging.Component("scheduler")).
				Add(logging.RuleID(inv.RuleID)).
				Add(logging.CandidateID(inv.CandidateID)).
				Add(logging.ActionIndex(inv.ActionIndex)).
				Msg("precondition no longer holds, delayed action skipped")
			continue
		}

		if err := s.dispatcher.SubmitInvocation(ctx, inv); err != nil {
			logging.Error().
				Add(logging.Component("scheduler")).
				Add(logging.Str("job_key", job.Key.String())).
				Add(logging.ErrorField(err)).
				Msg("delayed action dispatch failed")
		}
	}
	return nil
}

// ScanElapsed emits time.elapsed events for every candidate whose time
// in its current status crossed an active rule's threshold. One event
// per (rule, candidate, status entry); thresholds of different rules
// fire independently. Dedupe entries whose rule or status entry no
// longer exists are pruned at the end of each scan, so the map tracks
// the live rule x candidate surface instead of the process lifetime.
func (s *Scheduler) ScanElapsed(ctx context.Context, now time.Time) error {
	all, err := s.rules.List(ctx)
	if err != nil {
		return err
	}
	// Inactive rules keep their dedupe state so toggling a rule off and
	// on does not re-fire thresholds already delivered.
	var timeRules, armed []*rule.Rule
	for _, r := range all {
		if r.Trigger.Kind != rule.TriggerTimeElapsed {
			continue
		}
		armed = append(armed, r)
		if r.IsActive {
			timeRules = append(timeRules, r)
		}
	}
	if len(armed) == 0 {
		s.pruneFired(nil)
		return nil
	}

	candidates, err := s.ledger.Candidates(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]struct{})
	for _, candidateID := range candidates {
		status, err := s.ledger.CurrentStatus(ctx, candidateID)
		if err != nil || status.IsTerminal() {
			continue
		}
		elapsed, err := s.ledger.TimeInStatus(ctx, candidateID, now)
		if err != nil {
			continue
		}
		changedAt := now.Add(-elapsed)

		for _, r := range armed {
			live[elapsedKey(r.ID, candidateID, changedAt)] = struct{}{}
		}

		for _, r := range timeRules {
			if elapsed < r.Trigger.TimeElapsed.Threshold() {
				continue
			}
			key := elapsedKey(r.ID, candidateID, changedAt)
			if s.alreadyFired(key) {
				continue
			}

			evt, err := event.New(candidateID, event.TypeTimeElapsed, event.TimeElapsedPayload{
				Status:          status,
				StatusChangedAt: changedAt,
				Elapsed:         elapsed,
				RuleID:          r.ID,
			})
			if err != nil {
				continue
			}
			s.markFired(key)
			if err := s.dispatcher.Submit(ctx, evt); err != nil {
				logging.Error().
					Add(logging.Component("scheduler")).
					Add(logging.RuleID(r.ID)).
					Add(logging.CandidateID(candidateID)).
					Add(logging.ErrorField(err)).
					Msg("elapsed-time event dispatch failed")
			}
		}
	}
	s.pruneFired(live)
	return nil
}

func elapsedKey(ruleID, candidateID string, changedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%d", ruleID, candidateID, changedAt.UnixNano())
}

// Run drives the periodic scans until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().
		Add(logging.Component("scheduler")).
		Add(logging.Str("interval", s.interval.String())).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Add(logging.Component("scheduler")).
				Msg("scheduler stopped")
			return
		case <-ticker.C:
			now := s.clock()
			if err := s.Tick(ctx, now); err != nil {
				logging.Error().
					Add(logging.Component("scheduler")).
					Add(logging.ErrorField(err)).
					Msg("tick failed")
			}
			if err := s.ScanElapsed(ctx, now); err != nil {
				logging.Error().
					Add(logging.Component("scheduler")).
					Add(logging.ErrorField(err)).
					Msg("elapsed scan failed")
			}
			if err := s.approvals.Escalate(ctx, now); err != nil {
				logging.Error().
					Add(logging.Component("scheduler")).
					Add(logging.ErrorField(err)).
					Msg("escalation scan failed")
			}
		}
	}
}

func (s *Scheduler) alreadyFired(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[key]
	return ok
}

func (s *Scheduler) markFired(key string) {
	s.mu.Lock()
	s.fired[key] = struct{}{}
	s.mu.Unlock()
}

// pruneFired drops dedupe entries outside the live key set.
func (s *Scheduler) pruneFired(live map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.fired {
		if _, ok := live[key]; !ok {
			delete(s.fired, key)
		}
	}
}
