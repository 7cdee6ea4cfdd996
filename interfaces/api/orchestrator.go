// Package api provides the public API for the pipeline-go orchestration
// core.
//
// pipeline-go automates candidate pipeline workflows: operator and
// system events run through an event-condition-action rule engine whose
// actions move candidates through the hiring pipeline, notify
// collaborators and open multi-step approval workflows.
//
// # Quick Start
//
// Create an in-memory orchestrator, register a rule and feed it a
// transition:
//
//	orch, _ := api.New()
//	defer orch.Close()
//
//	orch.CreateRule(ctx, &api.Rule{
//	    Name:     "advance strong screens",
//	    IsActive: true,
//	    Trigger: api.Trigger{
//	        Kind:         api.TriggerStatusChange,
//	        StatusChange: &api.StatusChangeTrigger{To: api.StatusPaperScreening},
//	    },
//	    Conditions: []api.Condition{
//	        {Field: "scores.resume", Operator: api.OpGreaterThan, Value: 80},
//	    },
//	    Actions: []api.Action{
//	        {Kind: api.ActionChangeStatus, ChangeStatus: &api.ChangeStatusAction{Target: api.StatusExam}},
//	    },
//	})
//
//	orch.TransitionCandidate(ctx, "cand-42", api.StatusPaperScreening, "recruiter-1", "screen done")
//
// The transition and every automated consequence of it are applied
// before TransitionCandidate returns; delayed actions are persisted and
// fire through the scheduler started by Start.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewire/pipeline-go/application"
	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
	"github.com/hirewire/pipeline-go/domain/ledger"
	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/domain/rule"
	"github.com/hirewire/pipeline-go/domain/schedule"
	"github.com/hirewire/pipeline-go/infrastructure/config"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
	infranotification "github.com/hirewire/pipeline-go/infrastructure/notification"
	"github.com/hirewire/pipeline-go/infrastructure/resilience"
	storagememory "github.com/hirewire/pipeline-go/infrastructure/storage/memory"
	storagepostgres "github.com/hirewire/pipeline-go/infrastructure/storage/postgres"
	storageredis "github.com/hirewire/pipeline-go/infrastructure/storage/redis"
	storagesqlite "github.com/hirewire/pipeline-go/infrastructure/storage/sqlite"
)

// Orchestrator is the assembled pipeline automation core: status
// ledger, rule engine, action executor, durable scheduler and approval
// workflows behind one facade.
type Orchestrator struct {
	cfg        *config.Config
	rules      *storagememory.RuleStore
	flows      approval.FlowStore
	ledger     *ledger.Ledger
	engine     *application.Engine
	dispatcher *application.Dispatcher
	scheduler  *application.Scheduler
	approvals  *application.Approvals
	failures   *application.FailureLog
	watcher    *config.Watcher

	pool    *pgxpool.Pool
	cache   *storageredis.SnapshotCache
	closers []func() error

	cancelRun context.CancelFunc
}

type options struct {
	cfg        *config.Config
	snapshots  candidate.SnapshotProvider
	notifier   notification.Notifier
	clock      func() time.Time
	interviews application.InterviewScheduler
	notes      application.NoteAppender
	jobs       application.JobAssigner
}

// Option configures the orchestrator.
type Option func(*options)

// WithConfig supplies a loaded service configuration. Without it the
// defaults apply: memory storage, console logging, no webhook.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithSnapshotProvider wires the candidate store collaborator that
// serves snapshots for condition evaluation.
func WithSnapshotProvider(p candidate.SnapshotProvider) Option {
	return func(o *options) { o.snapshots = p }
}

// WithNotifier overrides the notification channel. Without it the
// configured webhook endpoint is used, or a log notifier when none is
// configured.
func WithNotifier(n notification.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock replaces the wall clock, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithInterviewScheduler wires the interview booking collaborator.
func WithInterviewScheduler(s application.InterviewScheduler) Option {
	return func(o *options) { o.interviews = s }
}

// WithNoteAppender wires the candidate note collaborator.
func WithNoteAppender(n application.NoteAppender) Option {
	return func(o *options) { o.notes = n }
}

// WithJobAssigner wires the job assignment collaborator.
func WithJobAssigner(j application.JobAssigner) Option {
	return func(o *options) { o.jobs = j }
}

// New assembles an orchestrator from the given options.
func New(opts ...Option) (*Orchestrator, error) {
	o := &options{
		cfg:   config.Default(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.cfg

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	orch := &Orchestrator{
		cfg:   cfg,
		rules: storagememory.NewRuleStore(),
	}

	historyStore, jobStore, approvalStore, err := orch.buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	orch.flows = storagememory.NewFlowStore()

	orch.ledger = ledger.New(historyStore, ledger.WithClock(o.clock))

	snapshots := o.snapshots
	if snapshots == nil {
		snapshots = storagememory.NewSnapshotProvider()
	}
	var invalidator application.SnapshotInvalidator
	if cfg.Storage.Redis.Enabled {
		cache := storageredis.NewSnapshotCache(storageredis.SnapshotCacheConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			TTL:      cfg.Storage.Redis.TTL,
		}, snapshots)
		orch.cache = cache
		snapshots = cache
		invalidator = cache
	}
	overlay := application.NewStatusOverlayProvider(snapshots, orch.ledger)

	orch.engine = application.NewEngine(orch.rules, overlay, application.WithEngineClock(o.clock))
	orch.failures = application.NewFailureLog(0)

	notifier := o.notifier
	if notifier == nil {
		if cfg.Webhook.Endpoint != "" {
			notifier = infranotification.NewWebhookNotifier(infranotification.WebhookConfig{
				Endpoint:      cfg.Webhook.Endpoint,
				SigningSecret: cfg.Webhook.SigningSecret,
				Timeout:       cfg.Webhook.Timeout,
			})
		} else {
			notifier = infranotification.NewLogNotifier()
		}
	}
	orch.closers = append(orch.closers, notifier.Close)

	res := resilience.New(resilience.Config{
		MaxConcurrent:           cfg.Resilience.MaxConcurrent,
		CircuitBreakerThreshold: cfg.Resilience.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.Resilience.CircuitBreakerTimeout,
		RetryMaxAttempts:        cfg.Resilience.RetryMaxAttempts,
		RetryInitialDelay:       cfg.Resilience.RetryInitialDelay,
		RetryBackoffMultiplier:  2.0,
		CallTimeout:             cfg.Resilience.CallTimeout,
	})

	approvals, err := application.NewApprovals(approvalStore, orch.flows,
		application.WithApprovalsClock(o.clock),
		application.WithApprovalsNotifier(notifier),
		application.WithApprovalsLedger(orch.ledger),
	)
	if err != nil {
		return nil, err
	}
	orch.approvals = approvals

	executorOpts := []application.ExecutorOption{}
	if o.interviews != nil {
		executorOpts = append(executorOpts, application.WithInterviewScheduler(o.interviews))
	}
	if o.notes != nil {
		executorOpts = append(executorOpts, application.WithNoteAppender(o.notes))
	}
	if o.jobs != nil {
		executorOpts = append(executorOpts, application.WithJobAssigner(o.jobs))
	}
	if invalidator != nil {
		executorOpts = append(executorOpts, application.WithSnapshotInvalidator(invalidator))
	}
	executor := application.NewExecutor(orch.ledger, approvals, notifier, res, orch.failures, executorOpts...)

	orch.dispatcher = application.NewDispatcher(orch.engine, executor,
		application.WithMaxCascadeDepth(cfg.Scheduler.MaxCascadeDepth))
	orch.scheduler = application.NewScheduler(jobStore, orch.rules, orch.ledger, orch.engine, orch.dispatcher, approvals,
		application.WithSchedulerClock(o.clock),
		application.WithTickInterval(cfg.Scheduler.TickInterval))
	approvals.SetPublisher(orch.dispatcher)

	if cfg.Rules.Path != "" {
		rf, err := config.LoadRules(cfg.Rules.Path)
		if err != nil {
			return nil, err
		}
		if err := orch.applyRuleFile(context.Background(), rf); err != nil {
			return nil, err
		}
	}

	return orch, nil
}

// buildStorage selects the persistence backend for transition history,
// scheduled jobs and approval requests. Rule definitions always live in
// memory; they are owned by the rule files and rebuilt on startup.
func (o *Orchestrator) buildStorage(cfg *config.Config) (ledger.Store, schedule.Store, approval.Store, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return storagememory.NewHistoryStore(), storagememory.NewJobStore(), storagememory.NewApprovalStore(), nil

	case "sqlite":
		sqliteCfg := storagesqlite.DefaultConfig()
		sqliteCfg.DSN = "file:" + cfg.Storage.Path + "?cache=shared&mode=rwc"
		history, err := storagesqlite.NewHistoryStore(sqliteCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite history store: %w", err)
		}
		o.closers = append(o.closers, history.Close)
		jobs, err := storagesqlite.NewJobStoreFromDB(history.DB())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite job store: %w", err)
		}
		// Approval aggregates stay in memory on sqlite; their durable
		// trail is the status history the approved outcome writes.
		return history, jobs, storagememory.NewApprovalStore(), nil

	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		o.pool = pool
		history := storagepostgres.NewHistoryStore(pool, "")
		approvals := storagepostgres.NewApprovalStore(pool, "")
		if err := history.Migrate(context.Background()); err != nil {
			return nil, nil, nil, err
		}
		if err := approvals.Migrate(context.Background()); err != nil {
			return nil, nil, nil, err
		}
		return history, storagememory.NewJobStore(), approvals, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrValidationFailed, cfg.Storage.Backend)
	}
}

// applyRuleFile atomically replaces the rule set and upserts flows.
func (o *Orchestrator) applyRuleFile(ctx context.Context, rf *config.RuleFile) error {
	rules := make([]rule.Rule, len(rf.Rules))
	copy(rules, rf.Rules)
	if err := o.rules.Replace(ctx, rules); err != nil {
		return err
	}
	for _, f := range rf.Flows {
		if err := o.flows.Put(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the scheduler loop and, when configured, the rule file
// watcher. It returns immediately; background work stops when ctx is
// cancelled or Close is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel

	go o.scheduler.Run(runCtx)

	if o.cfg.Rules.Path != "" && o.cfg.Rules.Watch {
		o.watcher = config.NewWatcher(o.cfg.Rules.Path, o.applyRuleFile)
		if err := o.watcher.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("start rule watcher: %w", err)
		}
	}

	logging.Info().
		Add(logging.Component("orchestrator")).
		Add(logging.Str("storage", o.cfg.Storage.Backend)).
		Add(logging.Str("tick_interval", o.cfg.Scheduler.TickInterval.String())).
		Msg("orchestrator started")
	return nil
}

// Close stops background work and releases storage handles.
func (o *Orchestrator) Close() error {
	if o.cancelRun != nil {
		o.cancelRun()
	}
	if o.watcher != nil {
		o.watcher.Stop()
	}
	o.dispatcher.Close()

	var errs []error
	for _, c := range o.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.cache != nil {
		if err := o.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.pool != nil {
		o.pool.Close()
	}
	return errors.Join(errs...)
}

// CreateRule registers a new automation rule.
func (o *Orchestrator) CreateRule(ctx context.Context, r *rule.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return o.rules.Create(ctx, r)
}

// UpdateRule replaces an existing rule's definition.
func (o *Orchestrator) UpdateRule(ctx context.Context, r *rule.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return o.rules.Update(ctx, r)
}

// DeleteRule removes a rule. Scheduled jobs referencing it are skipped
// at fire time by revalidation.
func (o *Orchestrator) DeleteRule(ctx context.Context, id string) error {
	return o.rules.Delete(ctx, id)
}

// ToggleRule activates or deactivates a rule without touching its
// definition.
func (o *Orchestrator) ToggleRule(ctx context.Context, id string, active bool) error {
	return o.rules.SetActive(ctx, id, active)
}

// GetRule returns a rule by ID.
func (o *Orchestrator) GetRule(ctx context.Context, id string) (*rule.Rule, error) {
	return o.rules.Get(ctx, id)
}

// ListRules returns all registered rules ordered by ID.
func (o *Orchestrator) ListRules(ctx context.Context) ([]*rule.Rule, error) {
	return o.rules.List(ctx)
}

// PutFlow registers or replaces an approval flow definition.
func (o *Orchestrator) PutFlow(ctx context.Context, f approval.Flow) error {
	return o.flows.Put(ctx, f)
}

// SubmitEvent feeds an external event through rule evaluation. The
// event and all its automated consequences are applied before return.
func (o *Orchestrator) SubmitEvent(ctx context.Context, evt event.Event) error {
	return o.dispatcher.Submit(ctx, evt)
}

// TransitionCandidate applies a manual status change and runs the
// resulting automation.
func (o *Orchestrator) TransitionCandidate(ctx context.Context, candidateID string, to candidate.Status, changedBy, reason string) (candidate.TransitionRecord, error) {
	rec, err := o.ledger.Transition(ctx, candidateID, to, candidate.SourceManual, changedBy, reason, "")
	if err != nil {
		return candidate.TransitionRecord{}, err
	}

	evt, err := event.New(candidateID, event.TypeStatusChanged, event.StatusChangedPayload{
		From:   rec.From,
		To:     rec.To,
		Source: candidate.SourceManual,
	})
	if err != nil {
		return rec, err
	}
	if err := o.dispatcher.Submit(ctx, evt); err != nil {
		return rec, err
	}
	return rec, nil
}

// CurrentStatus returns a candidate's authoritative status.
func (o *Orchestrator) CurrentStatus(ctx context.Context, candidateID string) (candidate.Status, error) {
	return o.ledger.CurrentStatus(ctx, candidateID)
}

// History returns a candidate's ordered transition history.
func (o *Orchestrator) History(ctx context.Context, candidateID string) ([]candidate.TransitionRecord, error) {
	return o.ledger.HistoryOf(ctx, candidateID)
}

// CreateApprovalRequest opens an approval workflow from a registered
// flow, outside of rule automation.
func (o *Orchestrator) CreateApprovalRequest(ctx context.Context, candidateID, flowID, requestType, requestedValue, requestedBy string, priority approval.Priority) (*approval.Request, error) {
	return o.approvals.Create(ctx, candidateID, flowID, requestType, requestedValue, requestedBy, priority, "")
}

// GetApprovalRequest returns an approval request by ID.
func (o *Orchestrator) GetApprovalRequest(ctx context.Context, requestID string) (*approval.Request, error) {
	return o.approvals.Get(ctx, requestID)
}

// ListPendingApprovals returns pending requests, narrowed to those the
// given user may act on when userID is non-empty.
func (o *Orchestrator) ListPendingApprovals(ctx context.Context, userID string, roles []string) ([]*approval.Request, error) {
	return o.approvals.ListPending(ctx, userID, roles)
}

// ResolveApprovalStep applies an approver's decision to a request step.
func (o *Orchestrator) ResolveApprovalStep(ctx context.Context, requestID, stepID string, decision approval.Decision, approverID string, roles []string, comment string) (approval.Outcome, error) {
	return o.approvals.ResolveStep(ctx, requestID, stepID, decision, approverID, roles, comment)
}

// CancelApprovalRequest withdraws a pending request.
func (o *Orchestrator) CancelApprovalRequest(ctx context.Context, requestID, byUserID string) error {
	return o.approvals.Cancel(ctx, requestID, byUserID)
}

// CommentOnApproval appends to a request's comment trail.
func (o *Orchestrator) CommentOnApproval(ctx context.Context, requestID, authorID, text string) error {
	return o.approvals.AddComment(ctx, requestID, authorID, text)
}

// Failures returns recorded permanent action failures, newest last.
func (o *Orchestrator) Failures() []application.Failure {
	return o.failures.List()
}

// FailuresFor returns permanent failures affecting one candidate.
func (o *Orchestrator) FailuresFor(candidateID string) []application.Failure {
	return o.failures.ForCandidate(candidateID)
}

// PendingJobs returns the stored delayed actions, soonest first.
func (o *Orchestrator) PendingJobs(ctx context.Context) ([]schedule.Job, error) {
	return o.scheduler.Pending(ctx)
}
