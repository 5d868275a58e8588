package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-integrations/core"
)

// WorkerHookAdapter lets a go-job worker report sync runs. Events are
// forwarded to an optional core hook; retries and failures are also logged
// with the sync operation id.
type WorkerHookAdapter struct {
	hook   core.JobWorkerHook
	logger core.Logger
}

type HookOption func(*WorkerHookAdapter)

func WithHookLogger(logger core.Logger) HookOption {
	return func(a *WorkerHookAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewWorkerHookAdapter(hook core.JobWorkerHook, opts ...HookOption) *WorkerHookAdapter {
	a := &WorkerHookAdapter{hook: hook, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, toWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, toWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	mapped := toWorkerEvent(event)
	a.logger.Error("sync job failed", workerFields(mapped)...)
	if a.hook != nil {
		a.hook.OnFailure(ctx, mapped)
	}
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil {
		return
	}
	mapped := toWorkerEvent(event)
	a.logger.Warn("sync job retry scheduled", append(workerFields(mapped), "delay", mapped.Delay.String())...)
	if a.hook != nil {
		a.hook.OnRetry(ctx, mapped)
	}
}

func toWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func workerFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID, "sync_operation_id", SyncOperationID(event.Message))
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var _ worker.Hook = (*WorkerHookAdapter)(nil)
