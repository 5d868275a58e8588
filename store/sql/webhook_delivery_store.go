package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-integrations/webhooks"
)

// WebhookDeliveryStore is a durable webhooks.DeliveryLog. Each attempt is one
// row; attempts of the same delivery share a delivery id.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *WebhookDeliveryStore) Append(ctx context.Context, attempt webhooks.DeliveryAttempt) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	webhook := strings.TrimSpace(attempt.Webhook)
	if webhook == "" {
		return fmt.Errorf("sqlstore: webhook is required")
	}
	id := uuid.NewString()
	deliveryID := strings.TrimSpace(attempt.DeliveryID)
	if deliveryID == "" {
		// Rejected inbound calls never get a delivery id.
		deliveryID = id
	}
	startedAt := attempt.StartedAt.UTC()
	if attempt.StartedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	record := &webhookDeliveryRecord{
		ID:         id,
		DeliveryID: deliveryID,
		Webhook:    webhook,
		Direction:  strings.TrimSpace(attempt.Direction),
		Event:      attempt.Event,
		Attempt:    attempt.Attempt,
		Status:     strings.TrimSpace(attempt.Status),
		StatusCode: attempt.StatusCode,
		Error:      attempt.Error,
		StartedAt:  startedAt,
		DurationMS: attempt.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("sqlstore: append webhook delivery attempt: %w", err)
	}
	return nil
}

// ForDelivery returns every attempt of one delivery in attempt order.
func (s *WebhookDeliveryStore) ForDelivery(ctx context.Context, deliveryID string) ([]webhooks.DeliveryAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("delivery_id", "=", strings.TrimSpace(deliveryID)),
		repository.OrderBy("attempt ASC"),
	)
	if err != nil {
		return nil, err
	}
	return deliveryRecordsToDomain(records), nil
}

// Recent returns up to limit attempts for webhook, newest first. An empty
// webhook matches every row.
func (s *WebhookDeliveryStore) Recent(ctx context.Context, webhook string, limit int) ([]webhooks.DeliveryAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("started_at DESC"),
		repository.OrderBy("attempt DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if webhook = strings.TrimSpace(webhook); webhook != "" {
		selectors = append(selectors, repository.SelectBy("webhook", "=", webhook))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	return deliveryRecordsToDomain(records), nil
}

func deliveryRecordsToDomain(records []*webhookDeliveryRecord) []webhooks.DeliveryAttempt {
	out := make([]webhooks.DeliveryAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}
