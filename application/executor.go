package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
	"github.com/hirewire/pipeline-go/infrastructure/resilience"
)

// automationActor is recorded as the changer on rule-driven transitions.
const automationActor = "system:automation"

// retryScheduler re-enqueues collaborator invocations after transient
// failures. Implemented by Scheduler; declared here so the executor and
// scheduler can reference each other without an import cycle.
type retryScheduler interface {
	ScheduleRetry(ctx context.Context, inv ActionInvocation, delay time.Duration) error
}

// Executor runs action invocations against the ledger, the approval
// service and the external collaborators. Each collaborator call makes
// one bounded attempt through the resilience executor; transient
// failures are re-enqueued with backoff through the scheduler, so the
// caller's per-candidate lock is never held across a retry wait. The
// ledger write takes no resilience wrapper (it is local and the
// atomicity boundary).
type Executor struct {
	ledger      *ledger.Ledger
	approvals   *Approvals
	notifier    notification.Notifier
	interviews  InterviewScheduler
	notes       NoteAppender
	jobs        JobAssigner
	resilience  *resilience.Executor
	failures    *FailureLog
	invalidator SnapshotInvalidator
	retries     retryScheduler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithInterviewScheduler sets the interview collaborator.
func WithInterviewScheduler(s InterviewScheduler) ExecutorOption {
	return func(x *Executor) { x.interviews = s }
}

// WithNoteAppender sets the note collaborator.
func WithNoteAppender(n NoteAppender) ExecutorOption {
	return func(x *Executor) { x.notes = n }
}

// WithJobAssigner sets the job assignment collaborator.
func WithJobAssigner(j JobAssigner) ExecutorOption {
	return func(x *Executor) { x.jobs = j }
}

// WithSnapshotInvalidator sets the snapshot cache invalidator.
func WithSnapshotInvalidator(i SnapshotInvalidator) ExecutorOption {
	return func(x *Executor) { x.invalidator = i }
}

// NewExecutor creates an action executor.
func NewExecutor(led *ledger.Ledger, approvals *Approvals, notifier notification.Notifier, res *resilience.Executor, failures *FailureLog, opts ...ExecutorOption) *Executor {
	x := &Executor{
		ledger:     led,
		approvals:  approvals,
		notifier:   notifier,
		resilience: res,
		failures:   failures,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// SetRetryScheduler wires the retry scheduler. Set by NewScheduler;
// without one, transient collaborator failures become permanent after
// the first attempt.
func (x *Executor) SetRetryScheduler(s retryScheduler) {
	x.retries = s
}

// Execute runs one invocation. It returns any cascade events the action
// produced. A transient collaborator failure with attempts remaining is
// re-enqueued and reported as success; a permanent failure is recorded
// in the failure log and returned. Completed sibling actions are never
// rolled back.
func (x *Executor) Execute(ctx context.Context, inv ActionInvocation) ([]event.Event, error) {
	var (
		cascades []event.Event
		err      error
	)

	switch inv.Action.Kind {
	case rule.ActionChangeStatus:
		cascades, err = x.changeStatus(ctx, inv)
	case rule.ActionSendNotification:
		err = x.sendNotification(ctx, inv)
	case rule.ActionScheduleInterview:
		err = x.scheduleInterview(ctx, inv)
	case rule.ActionAddNote:
		err = x.addNote(ctx, inv)
	case rule.ActionAssignJob:
		err = x.assignJob(ctx, inv)
	case rule.ActionRequestApproval:
		err = x.requestApproval(ctx, inv)
	default:
		err = fmt.Errorf("%w: %q", rule.ErrUnknownActionKind, inv.Action.Kind)
	}

	if err != nil {
		if x.scheduleRetry(ctx, inv, err) {
			return nil, nil
		}
		x.recordFailure(inv, err)
		return nil, err
	}
	return cascades, nil
}

// scheduleRetry re-enqueues a failed collaborator call with exponential
// backoff. Only collaborator actions retry; ledger writes and approval
// creation are local, and their errors are never transient.
func (x *Executor) scheduleRetry(ctx context.Context, inv ActionInvocation, cause error) bool {
	if x.retries == nil || !isCollaboratorAction(inv.Action.Kind) || isNonRetryable(cause) {
		return false
	}
	next := inv.Attempt + 1
	if next >= x.resilience.MaxAttempts() {
		return false
	}

	retryInv := inv
	retryInv.Attempt = next
	delay := x.resilience.RetryDelay(inv.Attempt)
	if err := x.retries.ScheduleRetry(ctx, retryInv, delay); err != nil {
		logging.Error().
			Add(logging.Component("executor")).
			Add(logging.RuleID(inv.RuleID)).
			Add(logging.CandidateID(inv.CandidateID)).
			Add(logging.ErrorField(err)).
			Msg("failed to schedule collaborator retry")
		return false
	}

	logging.Warn().
		Add(logging.Component("executor")).
		Add(logging.RuleID(inv.RuleID)).
		Add(logging.CandidateID(inv.CandidateID)).
		Add(logging.ActionKind(string(inv.Action.Kind))).
		Add(logging.Attempts(next)).
		Add(logging.Str("retry_in", delay.String())).
		Add(logging.ErrorField(cause)).
		Msg("collaborator call failed, retry scheduled")
	return true
}

// changeStatus writes to the ledger and emits the cascade event. A
// no-op or terminal-status rejection is a benign skip, not a failure:
// the candidate simply moved on before the action ran.
func (x *Executor) changeStatus(ctx context.Context, inv ActionInvocation) ([]event.Event, error) {
	target := inv.Action.ChangeStatus.Target
	rec, err := x.ledger.Transition(ctx, inv.CandidateID, target, candidate.SourceAutomated, automationActor, inv.RuleName, inv.RuleID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoopTransition) || errors.Is(err, ledger.ErrTerminalStatus) {
			logging.Debug().
				Add(logging.Component("executor")).
				Add(logging.RuleID(inv.RuleID)).
				Add(logging.CandidateID(inv.CandidateID)).
				Add(logging.ToStatus(target)).
				Add(logging.ErrorField(err)).
				Msg("status change skipped")
			return nil, nil
		}
		return nil, err
	}

	if x.invalidator != nil {
		if err := x.invalidator.Invalidate(ctx, inv.CandidateID); err != nil {
			logging.Warn().
				Add(logging.Component("executor")).
				Add(logging.CandidateID(inv.CandidateID)).
				Add(logging.ErrorField(err)).
				Msg("snapshot invalidation failed")
		}
	}

	evt, err := event.New(inv.CandidateID, event.TypeStatusChanged, event.StatusChangedPayload{
		From:   rec.From,
		To:     rec.To,
		Source: candidate.SourceAutomated,
		RuleID: inv.RuleID,
	})
	if err != nil {
		return nil, err
	}
	evt.Depth = inv.Depth + 1

	logging.Info().
		Add(logging.Component("executor")).
		Add(logging.RuleID(inv.RuleID)).
		Add(logging.CandidateID(inv.CandidateID)).
		Add(logging.FromStatus(rec.From)).
		Add(logging.ToStatus(rec.To)).
		Add(logging.Depth(evt.Depth)).
		Msg("automated status change applied")
	return []event.Event{evt}, nil
}

func (x *Executor) sendNotification(ctx context.Context, inv ActionInvocation) error {
	if x.notifier == nil {
		return fmt.Errorf("%w: no notifier configured", notification.ErrEndpointUnavailable)
	}
	spec := inv.Action.SendNotification
	msg := notification.Message{
		Template:    spec.Template,
		Recipients:  spec.Recipients,
		CandidateID: inv.CandidateID,
		Context: map[string]any{
			"rule_id":   inv.RuleID,
			"rule_name": inv.RuleName,
		},
	}
	return x.resilience.Do(ctx, func(ctx context.Context) error {
		return x.notifier.Dispatch(ctx, msg)
	})
}

func (x *Executor) scheduleInterview(ctx context.Context, inv ActionInvocation) error {
	if x.interviews == nil {
		return errors.New("interview collaborator not configured")
	}
	spec := *inv.Action.ScheduleInterview
	return x.resilience.Do(ctx, func(ctx context.Context) error {
		return x.interviews.ScheduleInterview(ctx, inv.CandidateID, spec)
	})
}

func (x *Executor) addNote(ctx context.Context, inv ActionInvocation) error {
	if x.notes == nil {
		return errors.New("note collaborator not configured")
	}
	text := inv.Action.AddNote.Text
	return x.resilience.Do(ctx, func(ctx context.Context) error {
		return x.notes.AppendNote(ctx, inv.CandidateID, text, automationActor)
	})
}

func (x *Executor) assignJob(ctx context.Context, inv ActionInvocation) error {
	if x.jobs == nil {
		return errors.New("job collaborator not configured")
	}
	jobID := inv.Action.AssignJob.JobID
	return x.resilience.Do(ctx, func(ctx context.Context) error {
		return x.jobs.AssignJob(ctx, inv.CandidateID, jobID)
	})
}

func (x *Executor) requestApproval(ctx context.Context, inv ActionInvocation) error {
	spec := inv.Action.RequestApproval
	_, err := x.approvals.Create(ctx, inv.CandidateID, spec.FlowID, spec.RequestType, spec.RequestedValue, automationActor, approval.Priority(spec.Priority), inv.RuleID)
	return err
}

func (x *Executor) recordFailure(inv ActionInvocation, cause error) {
	attempts := inv.Attempt + 1
	f := x.failures.Record(Failure{
		CandidateID: inv.CandidateID,
		RuleID:      inv.RuleID,
		RuleName:    inv.RuleName,
		ActionIndex: inv.ActionIndex,
		ActionKind:  inv.Action.Kind,
		Reason:      cause.Error(),
		Attempts:    attempts,
	})
	logging.Error().
		Add(logging.Component("executor")).
		Add(logging.RuleID(inv.RuleID)).
		Add(logging.CandidateID(inv.CandidateID)).
		Add(logging.ActionKind(string(inv.Action.Kind))).
		Add(logging.ActionIndex(inv.ActionIndex)).
		Add(logging.Attempts(f.Attempts)).
		Add(logging.ErrorField(cause)).
		Msg("action failed permanently")
}

// isNonRetryable reports whether retrying the failed call can never
// succeed. Such failures also skip the remaining actions of the same
// rule instance.
func isNonRetryable(err error) bool {
	return errors.Is(err, notification.ErrInvalidMessage) ||
		errors.Is(err, notification.ErrEndpointRejected) ||
		errors.Is(err, approval.ErrFlowNotFound) ||
		errors.Is(err, rule.ErrUnknownActionKind)
}

// isCollaboratorAction reports whether the action calls out to an
// external collaborator.
func isCollaboratorAction(kind rule.ActionKind) bool {
	switch kind {
	case rule.ActionSendNotification, rule.ActionScheduleInterview,
		rule.ActionAddNote, rule.ActionAssignJob:
		return true
	default:
		return false
	}
}
