package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-integrations/core"
)

// SyncOperationStore persists tracker snapshots. It implements both
// core.SyncSnapshotWriter and core.SyncSnapshotReader so a sync.Tracker can be
// saved on shutdown and restored on boot.
type SyncOperationStore struct {
	db   *bun.DB
	repo repository.Repository[*syncOperationRecord]
	now  func() time.Time
}

func NewSyncOperationStore(db *bun.DB) (*SyncOperationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncOperationRecord](db, syncOperationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync operation repository wiring: %w", err)
		}
	}
	return &SyncOperationStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// SaveSyncOperations upserts every operation by id inside one transaction.
func (s *SyncOperationStore) SaveSyncOperations(ctx context.Context, ops []core.SyncOperation) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: sync operation store is not configured")
	}
	if len(ops) == 0 {
		return nil
	}
	now := s.now()
	records := make([]*syncOperationRecord, 0, len(ops))
	for _, op := range ops {
		if strings.TrimSpace(op.ID) == "" {
			return core.BadInputError("sqlstore: sync operation id is required", map[string]any{
				"integration": op.Integration,
			})
		}
		records = append(records, newSyncOperationRecord(op, now))
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			if err := upsertSyncOperation(ctx, tx, record); err != nil {
				return fmt.Errorf("sqlstore: save sync operation %q: %w", record.ID, err)
			}
		}
		return nil
	})
}

// Save upserts a single operation.
func (s *SyncOperationStore) Save(ctx context.Context, op core.SyncOperation) error {
	return s.SaveSyncOperations(ctx, []core.SyncOperation{op})
}

// LoadSyncOperations returns every stored operation ordered by start time.
func (s *SyncOperationStore) LoadSyncOperations(ctx context.Context) ([]core.SyncOperation, error) {
	return s.List(ctx, "")
}

func (s *SyncOperationStore) Get(ctx context.Context, id string) (core.SyncOperation, error) {
	if s == nil || s.db == nil {
		return core.SyncOperation{}, fmt.Errorf("sqlstore: sync operation store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.SyncOperation{}, core.BadInputError("sqlstore: sync operation id is required", nil)
	}
	record := &syncOperationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SyncOperation{}, core.NotFoundError("sync operation", id)
		}
		return core.SyncOperation{}, err
	}
	return record.toDomain(), nil
}

// List returns operations for integration, or all when integration is empty.
func (s *SyncOperationStore) List(ctx context.Context, integration string) ([]core.SyncOperation, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: sync operation store is not configured")
	}
	records := []*syncOperationRecord{}
	query := s.db.NewSelect().Model(&records)
	if integration = strings.TrimSpace(integration); integration != "" {
		query = query.Where("?TableAlias.integration = ?", integration)
	}
	if err := query.OrderExpr("?TableAlias.started_at ASC, ?TableAlias.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.SyncOperation, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Count reports stored operations per status.
func (s *SyncOperationStore) Count(ctx context.Context, status core.SyncStatus) (int, error) {
	if s == nil || s.repo == nil {
		return 0, fmt.Errorf("sqlstore: sync operation store is not configured")
	}
	_, total, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(status)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// PruneFinalized deletes terminal operations that completed before cutoff and
// reports how many rows were removed.
func (s *SyncOperationStore) PruneFinalized(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: sync operation store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*syncOperationRecord)(nil)).
		Where("status IN (?)", bun.In([]string{string(core.SyncStatusCompleted), string(core.SyncStatusFailed)})).
		Where("completed_at IS NOT NULL").
		Where("completed_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func upsertSyncOperation(ctx context.Context, db bun.IDB, record *syncOperationRecord) error {
	_, err := db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("integration = EXCLUDED.integration").
		Set("kind = EXCLUDED.kind").
		Set("entity_type = EXCLUDED.entity_type").
		Set("status = EXCLUDED.status").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Set("records_processed = EXCLUDED.records_processed").
		Set("records_total = EXCLUDED.records_total").
		Set("errors = EXCLUDED.errors").
		Set("continuation_token = EXCLUDED.continuation_token").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
