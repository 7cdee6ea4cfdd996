// Package application wires the domain into the running orchestration
// service: rule evaluation, per-candidate dispatch, action execution,
// durable scheduling and approval workflows.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// ActionInvocation is one action of one matched rule, bound to the
// candidate and trigger instant. It is what the executor runs and what
// the scheduler persists for delayed actions.
type ActionInvocation struct {
	RuleID      string      `json:"rule_id"`
	RuleName    string      `json:"rule_name"`
	CandidateID string      `json:"candidate_id"`
	ActionIndex int         `json:"action_index"`
	Action      rule.Action `json:"action"`
	TriggeredAt time.Time   `json:"triggered_at"`

	// Depth is the cascade depth inherited from the triggering event.
	Depth int `json:"depth"`

	// Attempt counts prior delivery attempts of a collaborator action.
	// Zero on first execution; incremented on each scheduled retry.
	Attempt int `json:"attempt,omitempty"`

	// GuardStatus is the candidate's status when the rule matched.
	// Delayed invocations re-check it at fire time; a candidate who
	// moved on invalidates the invocation.
	GuardStatus candidate.Status `json:"guard_status,omitempty"`
}

// Engine evaluates events against the active rule set. It is stateless;
// each call reads the current rules and one candidate snapshot.
type Engine struct {
	rules     rule.Repository
	snapshots candidate.SnapshotProvider
	clock     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock replaces the wall clock, used by tests.
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates a rule engine over the given repository and
// snapshot provider.
func NewEngine(rules rule.Repository, snapshots candidate.SnapshotProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:     rules,
		snapshots: snapshots,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate matches the event against all active rules, in rule-ID order,
// and returns the action invocations of every rule whose trigger and
// conditions hold. The candidate snapshot is fetched at most once per
// call, so all rules in a dispatch see the same view.
func (e *Engine) Evaluate(ctx context.Context, evt event.Event) ([]ActionInvocation, error) {
	active, err := e.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	var (
		snap      candidate.Snapshot
		snapReady bool
		out       []ActionInvocation
	)
	now := e.clock()

	for _, r := range active {
		if !r.Trigger.Matches(evt, r.ID) {
			continue
		}

		if !snapReady {
			snap, err = e.snapshots.Snapshot(ctx, evt.CandidateID)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", evt.CandidateID, err)
			}
			snapReady = true
		}

		if !e.conditionsHold(r, snap) {
			continue
		}

		for i, action := range r.Actions {
			out = append(out, ActionInvocation{
				RuleID:      r.ID,
				RuleName:    r.Name,
				CandidateID: evt.CandidateID,
				ActionIndex: i,
				Action:      action,
				TriggeredAt: now,
				Depth:       evt.Depth,
				GuardStatus: snap.Status,
			})
		}
	}
	return out, nil
}

// Revalidate re-checks a delayed invocation's precondition at fire
// time: the rule must still exist and be active, the candidate must
// still hold the status it had when the rule matched, and the rule's
// conditions must still pass.
func (e *Engine) Revalidate(ctx context.Context, inv ActionInvocation) (bool, error) {
	r, err := e.rules.Get(ctx, inv.RuleID)
	if err != nil {
		if errors.Is(err, rule.ErrRuleNotFound) {
			return false, nil
		}
		return false, err
	}
	if !r.IsActive {
		return false, nil
	}

	snap, err := e.snapshots.Snapshot(ctx, inv.CandidateID)
	if err != nil {
		if errors.Is(err, candidate.ErrCandidateNotFound) {
			return false, nil
		}
		return false, err
	}
	if inv.GuardStatus != "" && snap.Status != inv.GuardStatus {
		return false, nil
	}
	return e.conditionsHold(r, snap), nil
}

// conditionsHold ANDs the rule's conditions over the snapshot. Data
// problems (unknown field, type mismatch) evaluate false and are logged
// so misconfigured rules are visible without stopping the dispatch.
func (e *Engine) conditionsHold(r *rule.Rule, snap candidate.Snapshot) bool {
	for _, cond := range r.Conditions {
		ok, err := cond.Check(snap)
		if err != nil {
			logging.Warn().
				Add(logging.Component("engine")).
				Add(logging.RuleID(r.ID)).
				Add(logging.CandidateID(snap.CandidateID)).
				Add(logging.Str("field", cond.Field)).
				Add(logging.ErrorField(err)).
				Msg("condition evaluated false on data problem")
		}
		if !ok {
			return false
		}
	}
	return true
}
