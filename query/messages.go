package query

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeGetIntegration       = "integrations.query.integration.get"
	TypeListIntegrations     = "integrations.query.integration.list"
	TypeHealthCheck          = "integrations.query.health.check"
	TypeHealthCheckAll       = "integrations.query.health.check_all"
	TypeGetSyncOperation     = "integrations.query.sync.get"
	TypeListSyncOperations   = "integrations.query.sync.list"
	TypeRecentDeliveries     = "integrations.query.webhook.deliveries.recent"
	TypeDeliveryAttempts     = "integrations.query.webhook.deliveries.attempts"
	maxRecentDeliveriesLimit = 500
)

type GetIntegrationMessage struct {
	Name string
}

func (GetIntegrationMessage) Type() string { return TypeGetIntegration }

func (m GetIntegrationMessage) Validate() error {
	return validateName(m.Name)
}

type ListIntegrationsMessage struct {
	// EnabledOnly drops disabled integrations from the listing.
	EnabledOnly bool
}

func (ListIntegrationsMessage) Type() string { return TypeListIntegrations }

func (ListIntegrationsMessage) Validate() error { return nil }

type HealthCheckMessage struct {
	Name string
}

func (HealthCheckMessage) Type() string { return TypeHealthCheck }

func (m HealthCheckMessage) Validate() error {
	return validateName(m.Name)
}

type HealthCheckAllMessage struct{}

func (HealthCheckAllMessage) Type() string { return TypeHealthCheckAll }

func (HealthCheckAllMessage) Validate() error { return nil }

type GetSyncOperationMessage struct {
	ID string
}

func (GetSyncOperationMessage) Type() string { return TypeGetSyncOperation }

func (m GetSyncOperationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.FieldError("query", "id", "sync operation id is required")
	}
	return nil
}

// ListSyncOperationsMessage lists tracked operations. An empty Integration
// lists all of them.
type ListSyncOperationsMessage struct {
	Integration string
}

func (ListSyncOperationsMessage) Type() string { return TypeListSyncOperations }

func (ListSyncOperationsMessage) Validate() error { return nil }

type RecentDeliveriesMessage struct {
	Webhook string
	Limit   int
}

func (RecentDeliveriesMessage) Type() string { return TypeRecentDeliveries }

func (m RecentDeliveriesMessage) Validate() error {
	if m.Limit < 0 {
		return core.FieldError("query", "limit", "limit must be >= 0")
	}
	if m.Limit > maxRecentDeliveriesLimit {
		return core.FieldError("query", "limit", "limit must be <= 500")
	}
	return nil
}

type DeliveryAttemptsMessage struct {
	DeliveryID string
}

func (DeliveryAttemptsMessage) Type() string { return TypeDeliveryAttempts }

func (m DeliveryAttemptsMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return core.FieldError("query", "delivery_id", "delivery id is required")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return core.FieldError("query", "name", "integration name is required")
	}
	return nil
}
