package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type StartSyncRequest struct {
	Integration  string
	Kind         SyncKind
	EntityType   string
	RecordsTotal *int
	Metadata     map[string]any
	// Enqueue asks for a background run when a job enqueuer is configured.
	Enqueue bool
}

func (r StartSyncRequest) Validate() error {
	if strings.TrimSpace(r.Integration) == "" {
		return BadInputError("core: sync integration is required", nil)
	}
	switch r.Kind {
	case SyncKindImport, SyncKindExport, SyncKindBidirectional:
	default:
		return BadInputError(fmt.Sprintf("core: invalid sync kind %q", r.Kind), map[string]any{"integration": r.Integration})
	}
	if strings.TrimSpace(r.EntityType) == "" {
		return BadInputError("core: sync entity type is required", map[string]any{"integration": r.Integration})
	}
	return nil
}

// StartSync opens a tracked operation for a registered integration.
func (r *Registry) StartSync(ctx context.Context, req StartSyncRequest) (op SyncOperation, err error) {
	startedAt := time.Now()
	defer func() {
		r.obs().Operation(ctx, startedAt, "start_sync", err, map[string]any{
			"integration":       req.Integration,
			"sync_operation_id": op.ID,
			"entity_type":       req.EntityType,
		})
	}()
	if err := req.Validate(); err != nil {
		return SyncOperation{}, err
	}
	tracker, err := r.syncTracker()
	if err != nil {
		return SyncOperation{}, err
	}
	if _, err := r.entry(req.Integration); err != nil {
		return SyncOperation{}, err
	}

	op, err = tracker.Start(ctx, SyncOperation{
		Integration:  strings.TrimSpace(req.Integration),
		Kind:         req.Kind,
		EntityType:   strings.TrimSpace(req.EntityType),
		RecordsTotal: req.RecordsTotal,
		Metadata:     copyAnyMap(req.Metadata),
	})
	if err != nil {
		return SyncOperation{}, err
	}
	r.emit(ctx, NewEvent(EventSyncStarted, op.Integration, map[string]any{
		"sync_operation_id": op.ID,
		"kind":              string(op.Kind),
		"entity_type":       op.EntityType,
	}))

	if req.Enqueue && r.jobs != nil {
		if enqueueErr := r.jobs.Enqueue(ctx, r.syncJobMessage(op)); enqueueErr != nil {
			failed, _ := r.CompleteSyncOperation(ctx, op.ID, SyncStatusFailed, "enqueue failed: "+enqueueErr.Error())
			op = failed
			return op, WrapError(enqueueErr, goerrors.CategoryOperation, "core: enqueue sync run", ErrorInternal, map[string]any{
				"integration":       op.Integration,
				"sync_operation_id": op.ID,
			})
		}
	}
	return op, nil
}

// UpdateSyncProgress merges progress into a running operation. Unknown or
// finalized ids are a no-op and report false.
func (r *Registry) UpdateSyncProgress(ctx context.Context, id string, progress SyncProgress) (SyncOperation, bool) {
	tracker, err := r.syncTracker()
	if err != nil {
		return SyncOperation{}, false
	}
	op, ok := tracker.UpdateProgress(ctx, id, progress)
	if !ok {
		return SyncOperation{}, false
	}
	metadata := map[string]any{
		"sync_operation_id": op.ID,
		"records_processed": op.RecordsProcessed,
	}
	if op.RecordsTotal != nil {
		metadata["records_total"] = *op.RecordsTotal
	}
	r.emit(ctx, NewEvent(EventSyncProgress, op.Integration, metadata))
	return op, true
}

// CompleteSyncOperation finalizes an operation. A second completion is
// rejected with ErrorSyncFinalized.
func (r *Registry) CompleteSyncOperation(ctx context.Context, id string, status SyncStatus, errMsg string) (op SyncOperation, err error) {
	startedAt := time.Now()
	defer func() {
		r.obs().Operation(ctx, startedAt, "complete_sync", err, map[string]any{
			"integration":       op.Integration,
			"sync_operation_id": id,
			"sync_status":       string(status),
		})
	}()
	tracker, err := r.syncTracker()
	if err != nil {
		return SyncOperation{}, err
	}
	op, err = tracker.Complete(ctx, id, status, errMsg)
	if err != nil {
		return SyncOperation{}, err
	}
	event := NewEvent(EventSyncCompleted, op.Integration, map[string]any{
		"sync_operation_id": op.ID,
		"sync_status":       string(op.Status),
		"records_processed": op.RecordsProcessed,
	})
	if strings.TrimSpace(errMsg) != "" {
		event.Error = errMsg
	}
	r.emit(ctx, event)
	return op, nil
}

func (r *Registry) GetSyncOperation(id string) (SyncOperation, bool) {
	tracker, err := r.syncTracker()
	if err != nil {
		return SyncOperation{}, false
	}
	return tracker.Get(id)
}

func (r *Registry) ListSyncOperations(integration string) []SyncOperation {
	tracker, err := r.syncTracker()
	if err != nil {
		return nil
	}
	return tracker.List(integration)
}

func (r *Registry) syncTracker() (SyncTracker, error) {
	if r == nil {
		return nil, InternalError("core: registry is nil", nil)
	}
	if r.tracker == nil {
		return nil, InternalError("core: sync tracker is not configured", nil)
	}
	return r.tracker, nil
}

func (r *Registry) syncJobMessage(op SyncOperation) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:      r.config.SyncJobID(),
		ScriptPath: op.Integration,
		Parameters: map[string]any{
			"sync_operation_id": op.ID,
			"integration":       op.Integration,
			"kind":              string(op.Kind),
			"entity_type":       op.EntityType,
		},
		IdempotencyKey: op.ID,
		DedupPolicy:    "drop",
	}
}
