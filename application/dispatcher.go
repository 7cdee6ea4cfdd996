package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// defaultMaxCascadeDepth bounds automated cascade chains.
const defaultMaxCascadeDepth = 8

// jobScheduler persists delayed invocations. Implemented by Scheduler;
// declared here so the dispatcher and scheduler can reference each
// other without an import cycle at construction.
type jobScheduler interface {
	Schedule(ctx context.Context, inv ActionInvocation) error
}

// Dispatcher serializes rule evaluation and action execution per
// candidate. Events for one candidate are processed strictly in
// submission order; cascade events produced by an action run to
// completion under the same lock, before any later submission for that
// candidate can begin.
type Dispatcher struct {
	engine    *Engine
	executor  *Executor
	scheduler jobScheduler
	maxDepth  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	closedMu sync.RWMutex
	closed   bool
}

var _ event.Publisher = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxCascadeDepth bounds automated cascade chains.
func WithMaxCascadeDepth(depth int) DispatcherOption {
	return func(d *Dispatcher) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// NewDispatcher creates a dispatcher over the engine and executor.
func NewDispatcher(engine *Engine, executor *Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		executor: executor,
		maxDepth: defaultMaxCascadeDepth,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetScheduler wires the delayed-action scheduler. Must be called
// before the first Submit; set after construction because the scheduler
// itself submits through the dispatcher.
func (d *Dispatcher) SetScheduler(s jobScheduler) {
	d.scheduler = s
}

// Publish implements event.Publisher.
func (d *Dispatcher) Publish(ctx context.Context, evt event.Event) error {
	return d.Submit(ctx, evt)
}

// Submit runs an event through rule evaluation and executes the
// resulting actions synchronously. Cascade events are drained before
// returning, so a caller observing Submit's return sees every automated
// consequence of its event already applied or scheduled.
func (d *Dispatcher) Submit(ctx context.Context, evt event.Event) error {
	if evt.CandidateID == "" || evt.Type == "" {
		return event.ErrInvalidEvent
	}
	if err := d.checkOpen(); err != nil {
		return err
	}

	unlock := d.lockCandidate(evt.CandidateID)
	defer unlock()

	d.drain(ctx, []event.Event{evt})
	return nil
}

// SubmitInvocation executes a previously scheduled invocation under the
// candidate's lock. The scheduler calls this for due jobs after
// revalidation; resulting cascades drain like any other dispatch.
func (d *Dispatcher) SubmitInvocation(ctx context.Context, inv ActionInvocation) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	unlock := d.lockCandidate(inv.CandidateID)
	defer unlock()

	cascades, err := d.executor.Execute(ctx, inv)
	if err != nil {
		// Recorded in the failure log by the executor; the job is
		// consumed either way.
		return nil
	}
	d.drain(ctx, cascades)
	return nil
}

// Close rejects further submissions.
func (d *Dispatcher) Close() {
	d.closedMu.Lock()
	d.closed = true
	d.closedMu.Unlock()
}

func (d *Dispatcher) checkOpen() error {
	d.closedMu.RLock()
	defer d.closedMu.RUnlock()
	if d.closed {
		return event.ErrDispatcherClosed
	}
	return nil
}

// drain processes a FIFO queue of events for one candidate, appending
// cascades as they occur. Runs entirely under the candidate's lock.
func (d *Dispatcher) drain(ctx context.Context, queue []event.Event) {
	for len(queue) > 0 {
		evt := queue[0]
		queue = queue[1:]

		if evt.ID == "" {
			evt.ID = uuid.New().String()
		}
		if evt.Depth > d.maxDepth {
			logging.Error().
				Add(logging.Component("dispatcher")).
				Add(logging.CandidateID(evt.CandidateID)).
				Add(logging.EventType(evt.Type)).
				Add(logging.Depth(evt.Depth)).
				Add(logging.ErrorField(event.ErrDepthExceeded)).
				Msg("cascade depth exceeded, dropping event")
			continue
		}

		cascades, err := d.process(ctx, evt)
		if err != nil {
			logging.Error().
				Add(logging.Component("dispatcher")).
				Add(logging.CandidateID(evt.CandidateID)).
				Add(logging.EventType(evt.Type)).
				Add(logging.ErrorField(err)).
				Msg("event processing failed")
			continue
		}
		queue = append(queue, cascades...)
	}
}

// process evaluates one event and runs or schedules its invocations.
// A non-retryable failure skips the remaining actions of the same rule
// instance; other rules still run.
func (d *Dispatcher) process(ctx context.Context, evt event.Event) ([]event.Event, error) {
	invocations, err := d.engine.Evaluate(ctx, evt)
	if err != nil {
		return nil, err
	}

	var (
		cascades []event.Event
		skipped  = make(map[string]bool)
	)
	for _, inv := range invocations {
		if skipped[inv.RuleID] {
			logging.Warn().
				Add(logging.Component("dispatcher")).
				Add(logging.RuleID(inv.RuleID)).
				Add(logging.CandidateID(inv.CandidateID)).
				Add(logging.ActionIndex(inv.ActionIndex)).
				Msg("skipping action after sibling's permanent failure")
			continue
		}

		if inv.Action.DelayDuration() > 0 {
			if d.scheduler == nil {
				return nil, fmt.Errorf("delayed action on rule %s: no scheduler configured", inv.RuleID)
			}
			if err := d.scheduler.Schedule(ctx, inv); err != nil {
				logging.Error().
					Add(logging.Component("dispatcher")).
					Add(logging.RuleID(inv.RuleID)).
					Add(logging.CandidateID(inv.CandidateID)).
					Add(logging.ErrorField(err)).
					Msg("failed to schedule delayed action")
			}
			continue
		}

		produced, err := d.executor.Execute(ctx, inv)
		if err != nil {
			if isNonRetryable(err) {
				skipped[inv.RuleID] = true
			}
			continue
		}
		cascades = append(cascades, produced...)
	}
	return cascades, nil
}

// lockCandidate acquires the per-candidate mutex, creating it on first
// use. Locks are never evicted; the map grows with the candidate
// population, which is bounded in practice.
func (d *Dispatcher) lockCandidate(candidateID string) func() {
	d.mu.Lock()
	lock, ok := d.locks[candidateID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[candidateID] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
