package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	stdsync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-integrations/core"
)

// Tracker keeps sync operations in memory keyed by id. Operations are never
// purged; hosts snapshot and restore them across restarts.
type Tracker struct {
	mu  stdsync.RWMutex
	ops map[string]core.SyncOperation

	clamp  bool
	logger core.Logger
	now    func() time.Time
	newID  func() string
}

type TrackerOption func(*Tracker)

// WithClampProgress controls whether processed counts above the known total
// are clamped to the total.
func WithClampProgress(clamp bool) TrackerOption {
	return func(t *Tracker) {
		t.clamp = clamp
	}
}

func WithLogger(logger core.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithIDGenerator(newID func() string) TrackerOption {
	return func(t *Tracker) {
		if newID != nil {
			t.newID = newID
		}
	}
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		ops:   map[string]core.SyncOperation{},
		clamp: true,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "sync_" + uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.logger = glog.Ensure(t.logger)
	return t
}

// NewTrackerFromConfig applies the sync section of the runtime config.
func NewTrackerFromConfig(cfg core.Config, opts ...TrackerOption) *Tracker {
	return NewTracker(append([]TrackerOption{WithClampProgress(cfg.Sync.ClampProgress)}, opts...)...)
}

func (t *Tracker) Start(_ context.Context, op core.SyncOperation) (core.SyncOperation, error) {
	op.Integration = strings.TrimSpace(op.Integration)
	op.EntityType = strings.TrimSpace(op.EntityType)
	if op.Integration == "" {
		return core.SyncOperation{}, core.BadInputError("sync: integration is required", nil)
	}
	if op.EntityType == "" {
		return core.SyncOperation{}, core.BadInputError("sync: entity type is required", map[string]any{"integration": op.Integration})
	}
	switch op.Kind {
	case core.SyncKindImport, core.SyncKindExport, core.SyncKindBidirectional:
	default:
		return core.SyncOperation{}, core.BadInputError(fmt.Sprintf("sync: invalid kind %q", op.Kind), map[string]any{"integration": op.Integration})
	}
	if op.RecordsTotal != nil && *op.RecordsTotal < 0 {
		return core.SyncOperation{}, core.BadInputError("sync: records total must be >= 0", map[string]any{"integration": op.Integration})
	}

	op = op.Clone()
	op.ID = strings.TrimSpace(op.ID)
	if op.ID == "" {
		op.ID = t.newID()
	}
	op.Status = core.SyncStatusRunning
	op.StartedAt = t.now()
	op.CompletedAt = nil
	if op.RecordsProcessed < 0 {
		op.RecordsProcessed = 0
	}
	t.clampProcessed(&op)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.ops[op.ID]; exists {
		return core.SyncOperation{}, core.DuplicateRegistrationError("sync operation", op.ID)
	}
	t.ops[op.ID] = op
	return op.Clone(), nil
}

// UpdateProgress merges the non-nil progress fields. Unknown ids and
// finalized operations are left alone and report false.
func (t *Tracker) UpdateProgress(_ context.Context, id string, progress core.SyncProgress) (core.SyncOperation, bool) {
	id = strings.TrimSpace(id)
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok || op.Status.Terminal() {
		return core.SyncOperation{}, false
	}
	if progress.RecordsTotal != nil && *progress.RecordsTotal >= 0 {
		total := *progress.RecordsTotal
		op.RecordsTotal = &total
	}
	if progress.RecordsProcessed != nil {
		op.RecordsProcessed = max(*progress.RecordsProcessed, 0)
	}
	if progress.ContinuationToken != nil {
		op.ContinuationToken = strings.TrimSpace(*progress.ContinuationToken)
	}
	if len(progress.Errors) > 0 {
		op.Errors = append(op.Errors, progress.Errors...)
	}
	if len(progress.Metadata) > 0 {
		if op.Metadata == nil {
			op.Metadata = map[string]any{}
		}
		for key, value := range progress.Metadata {
			op.Metadata[key] = value
		}
	}
	t.clampProcessed(&op)
	t.ops[id] = op
	return op.Clone(), true
}

// Complete finalizes an operation. Completing an already finalized
// operation returns ErrorSyncFinalized.
func (t *Tracker) Complete(_ context.Context, id string, status core.SyncStatus, errMsg string) (core.SyncOperation, error) {
	id = strings.TrimSpace(id)
	if !status.Terminal() {
		return core.SyncOperation{}, core.BadInputError(fmt.Sprintf("sync: %q is not a terminal status", status), map[string]any{"sync_operation_id": id})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return core.SyncOperation{}, core.NotFoundError("sync operation", id)
	}
	if op.Status.Terminal() {
		return core.SyncOperation{}, core.SyncFinalizedError(id, op.Status)
	}
	completedAt := t.now()
	op.Status = status
	op.CompletedAt = &completedAt
	if msg := strings.TrimSpace(errMsg); msg != "" {
		op.Errors = append(op.Errors, msg)
	}
	t.ops[id] = op
	return op.Clone(), nil
}

func (t *Tracker) Get(id string) (core.SyncOperation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[strings.TrimSpace(id)]
	if !ok {
		return core.SyncOperation{}, false
	}
	return op.Clone(), true
}

// List returns operations oldest first. An empty integration lists all.
func (t *Tracker) List(integration string) []core.SyncOperation {
	integration = strings.TrimSpace(integration)
	t.mu.RLock()
	out := make([]core.SyncOperation, 0, len(t.ops))
	for _, op := range t.ops {
		if integration != "" && op.Integration != integration {
			continue
		}
		out = append(out, op.Clone())
	}
	t.mu.RUnlock()
	sortOperations(out)
	return out
}

func (t *Tracker) Snapshot(ctx context.Context, writer core.SyncSnapshotWriter) error {
	if writer == nil {
		return core.BadInputError("sync: snapshot writer is required", nil)
	}
	return writer.SaveSyncOperations(ctx, t.List(""))
}

// Restore loads a snapshot. Restored entries replace in-memory entries with
// the same id.
func (t *Tracker) Restore(ctx context.Context, reader core.SyncSnapshotReader) (int, error) {
	if reader == nil {
		return 0, core.BadInputError("sync: snapshot reader is required", nil)
	}
	ops, err := reader.LoadSyncOperations(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range ops {
		id := strings.TrimSpace(op.ID)
		if id == "" {
			continue
		}
		op.ID = id
		t.ops[id] = op.Clone()
		restored++
	}
	return restored, nil
}

func (t *Tracker) clampProcessed(op *core.SyncOperation) {
	if !t.clamp || op.RecordsTotal == nil || op.RecordsProcessed <= *op.RecordsTotal {
		return
	}
	t.logger.Warn("sync progress exceeds total, clamping",
		"sync_operation_id", op.ID,
		"integration", op.Integration,
		"records_processed", op.RecordsProcessed,
		"records_total", *op.RecordsTotal,
	)
	op.RecordsProcessed = *op.RecordsTotal
}

func sortOperations(ops []core.SyncOperation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].StartedAt.Equal(ops[j].StartedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].StartedAt.Before(ops[j].StartedAt)
	})
}

var _ core.SyncTracker = (*Tracker)(nil)
