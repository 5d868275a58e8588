package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/webhooks"
)

type syncOperationRecord struct {
	bun.BaseModel `bun:"table:integration_sync_operations,alias:iso"`

	ID                string         `bun:"id,pk"`
	Integration       string         `bun:"integration,notnull"`
	Kind              string         `bun:"kind,notnull"`
	EntityType        string         `bun:"entity_type,notnull"`
	Status            string         `bun:"status,notnull"`
	StartedAt         time.Time      `bun:"started_at,notnull"`
	CompletedAt       *time.Time     `bun:"completed_at,nullzero"`
	RecordsProcessed  int            `bun:"records_processed,notnull"`
	RecordsTotal      *int           `bun:"records_total"`
	Errors            []string       `bun:"errors,type:jsonb,notnull"`
	ContinuationToken string         `bun:"continuation_token,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newSyncOperationRecord(op core.SyncOperation, now time.Time) *syncOperationRecord {
	op = op.Clone()
	record := &syncOperationRecord{
		ID:                strings.TrimSpace(op.ID),
		Integration:       strings.TrimSpace(op.Integration),
		Kind:              string(op.Kind),
		EntityType:        op.EntityType,
		Status:            string(op.Status),
		StartedAt:         op.StartedAt.UTC(),
		CompletedAt:       op.CompletedAt,
		RecordsProcessed:  op.RecordsProcessed,
		RecordsTotal:      op.RecordsTotal,
		Errors:            op.Errors,
		ContinuationToken: op.ContinuationToken,
		Metadata:          op.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if record.CompletedAt != nil {
		value := record.CompletedAt.UTC()
		record.CompletedAt = &value
	}
	if record.Errors == nil {
		record.Errors = []string{}
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	return record
}

func (r *syncOperationRecord) toDomain() core.SyncOperation {
	if r == nil {
		return core.SyncOperation{}
	}
	op := core.SyncOperation{
		ID:                r.ID,
		Integration:       r.Integration,
		Kind:              core.SyncKind(r.Kind),
		EntityType:        r.EntityType,
		Status:            core.SyncStatus(r.Status),
		StartedAt:         r.StartedAt.UTC(),
		CompletedAt:       r.CompletedAt,
		RecordsProcessed:  r.RecordsProcessed,
		RecordsTotal:      r.RecordsTotal,
		Errors:            r.Errors,
		ContinuationToken: r.ContinuationToken,
		Metadata:          r.Metadata,
	}
	if op.CompletedAt != nil {
		value := op.CompletedAt.UTC()
		op.CompletedAt = &value
	}
	if len(op.Errors) == 0 {
		op.Errors = nil
	}
	return op.Clone()
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:integration_webhook_deliveries,alias:iwd"`

	ID         string    `bun:"id,pk"`
	DeliveryID string    `bun:"delivery_id,notnull"`
	Webhook    string    `bun:"webhook,notnull"`
	Direction  string    `bun:"direction,notnull"`
	Event      string    `bun:"event,notnull"`
	Attempt    int       `bun:"attempt,notnull"`
	Status     string    `bun:"status,notnull"`
	StatusCode int       `bun:"status_code,notnull"`
	Error      string    `bun:"error,notnull"`
	StartedAt  time.Time `bun:"started_at,notnull"`
	DurationMS int64     `bun:"duration_ms,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *webhookDeliveryRecord) toDomain() webhooks.DeliveryAttempt {
	if r == nil {
		return webhooks.DeliveryAttempt{}
	}
	return webhooks.DeliveryAttempt{
		DeliveryID: r.DeliveryID,
		Webhook:    r.Webhook,
		Direction:  r.Direction,
		Event:      r.Event,
		Attempt:    r.Attempt,
		Status:     r.Status,
		StatusCode: r.StatusCode,
		Error:      r.Error,
		StartedAt:  r.StartedAt.UTC(),
		Duration:   time.Duration(r.DurationMS) * time.Millisecond,
	}
}
