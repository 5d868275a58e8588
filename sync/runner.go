package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

// Lifecycle is the part of the registry the runner drives. Going through
// the registry keeps sync events flowing.
type Lifecycle interface {
	GetSyncOperation(id string) (core.SyncOperation, bool)
	UpdateSyncProgress(ctx context.Context, id string, progress core.SyncProgress) (core.SyncOperation, bool)
	CompleteSyncOperation(ctx context.Context, id string, status core.SyncStatus, errMsg string) (core.SyncOperation, error)
}

// TrackerLifecycle exposes a bare tracker as a Lifecycle.
func TrackerLifecycle(tracker core.SyncTracker) Lifecycle {
	return trackerLifecycle{tracker: tracker}
}

type trackerLifecycle struct {
	tracker core.SyncTracker
}

func (l trackerLifecycle) GetSyncOperation(id string) (core.SyncOperation, bool) {
	return l.tracker.Get(id)
}

func (l trackerLifecycle) UpdateSyncProgress(ctx context.Context, id string, progress core.SyncProgress) (core.SyncOperation, bool) {
	return l.tracker.UpdateProgress(ctx, id, progress)
}

func (l trackerLifecycle) CompleteSyncOperation(ctx context.Context, id string, status core.SyncStatus, errMsg string) (core.SyncOperation, error) {
	return l.tracker.Complete(ctx, id, status, errMsg)
}

// Runner consumes queued sync runs and executes the executor registered for
// the operation's integration.
type Runner struct {
	lifecycle Lifecycle
	dequeuer  core.JobDequeuer
	jobID     string
	hook      core.JobWorkerHook
	logger    core.Logger
	idleDelay time.Duration

	mu        stdsync.RWMutex
	executors map[string]core.SyncExecutor
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithWorkerHook(hook core.JobWorkerHook) RunnerOption {
	return func(r *Runner) {
		r.hook = hook
	}
}

func WithJobID(jobID string) RunnerOption {
	return func(r *Runner) {
		if jobID = strings.TrimSpace(jobID); jobID != "" {
			r.jobID = jobID
		}
	}
}

// WithIdleDelay sets the pause after a failed dequeue.
func WithIdleDelay(delay time.Duration) RunnerOption {
	return func(r *Runner) {
		if delay >= 0 {
			r.idleDelay = delay
		}
	}
}

func NewRunner(lifecycle Lifecycle, dequeuer core.JobDequeuer, opts ...RunnerOption) *Runner {
	r := &Runner{
		lifecycle: lifecycle,
		dequeuer:  dequeuer,
		jobID:     core.DefaultSyncJobID,
		idleDelay: time.Second,
		executors: map[string]core.SyncExecutor{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = glog.Ensure(r.logger)
	return r
}

func (r *Runner) RegisterExecutor(integration string, executor core.SyncExecutor) error {
	integration = strings.TrimSpace(integration)
	if integration == "" {
		return core.BadInputError("sync: executor integration is required", nil)
	}
	if executor == nil {
		return core.BadInputError("sync: executor is required", map[string]any{"integration": integration})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[integration]; exists {
		return core.DuplicateRegistrationError("sync executor", integration)
	}
	r.executors[integration] = executor
	return nil
}

// Run processes deliveries until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("sync runner iteration failed", "error", err.Error())
			if waitErr := sleep(ctx, r.idleDelay); waitErr != nil {
				return waitErr
			}
		}
	}
}

// RunOnce dequeues and handles a single delivery.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r == nil || r.lifecycle == nil || r.dequeuer == nil {
		return core.InternalError("sync: runner requires lifecycle and dequeuer", nil)
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != r.jobID {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "unexpected job message"})
	}

	id := strings.TrimSpace(fmt.Sprint(msg.Parameters["sync_operation_id"]))
	if id == "" || id == "<nil>" {
		id = strings.TrimSpace(msg.IdempotencyKey)
	}
	op, ok := r.lifecycle.GetSyncOperation(id)
	if !ok {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "sync operation not found"})
	}
	if op.Status.Terminal() {
		return delivery.Ack(ctx)
	}

	event := core.JobWorkerEvent{Message: msg, Attempt: 1, StartedAt: time.Now().UTC()}
	r.onStart(ctx, event)

	execErr := r.execute(ctx, op)
	event.Duration = time.Since(event.StartedAt)
	if execErr != nil {
		event.Err = execErr
		if _, err := r.lifecycle.CompleteSyncOperation(ctx, op.ID, core.SyncStatusFailed, execErr.Error()); err != nil && !core.HasErrorCode(err, core.ErrorSyncFinalized) {
			return errors.Join(err, delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Delay: r.idleDelay, Reason: err.Error()}))
		}
		r.onFailure(ctx, event)
		return delivery.Ack(ctx)
	}

	if _, err := r.lifecycle.CompleteSyncOperation(ctx, op.ID, core.SyncStatusCompleted, ""); err != nil && !core.HasErrorCode(err, core.ErrorSyncFinalized) {
		return errors.Join(err, delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Delay: r.idleDelay, Reason: err.Error()}))
	}
	r.onSuccess(ctx, event)
	return delivery.Ack(ctx)
}

func (r *Runner) execute(ctx context.Context, op core.SyncOperation) (err error) {
	r.mu.RLock()
	executor, ok := r.executors[op.Integration]
	r.mu.RUnlock()
	if !ok {
		return core.NotFoundError("sync executor", op.Integration)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("sync: executor panic: %v", recovered)
		}
	}()
	return executor.ExecuteSync(ctx, op, reporter{lifecycle: r.lifecycle, id: op.ID})
}

func (r *Runner) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}
}

func (r *Runner) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnSuccess(ctx, event)
	}
}

func (r *Runner) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
	r.logger.Warn("sync run failed", "job_id", event.Message.JobID, "error", event.Err.Error())
}

type reporter struct {
	lifecycle Lifecycle
	id        string
}

func (r reporter) Progress(ctx context.Context, progress core.SyncProgress) {
	r.lifecycle.UpdateSyncProgress(ctx, r.id, progress)
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ Lifecycle         = trackerLifecycle{}
	_ core.SyncReporter = reporter{}
	_ Lifecycle         = (*core.Registry)(nil)
)
