package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type Option = core.Option

type Registry = core.Registry

type Adapter = core.Adapter

type IntegrationConfig = core.IntegrationConfig

type IntegrationCredentials = core.IntegrationCredentials

type IntegrationStatus = core.IntegrationStatus

type WebhookPayload = core.WebhookPayload
type WebhookResult = core.WebhookResult
type WebhookHandler = core.WebhookHandler
type WebhookDeliveryConfig = core.WebhookDeliveryConfig
type DeliveryReceipt = core.DeliveryReceipt

type SyncOperation = core.SyncOperation
type SyncProgress = core.SyncProgress
type StartSyncRequest = core.StartSyncRequest

type HealthResult = core.HealthResult

type Event = core.Event

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithEventBus         = core.WithEventBus
	WithWebhookRegistrar = core.WithWebhookRegistrar
	WithSyncTracker      = core.WithSyncTracker
	WithJobEnqueuer      = core.WithJobEnqueuer
	WithClock            = core.WithClock

	APIKeyCredentials      = core.APIKeyCredentials
	BearerTokenCredentials = core.BearerTokenCredentials
	OAuth2Credentials      = core.OAuth2Credentials
	BasicAuthCredentials   = core.BasicAuthCredentials
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewRegistry builds a bare registry. Setup is the usual entry point.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	return core.NewRegistry(cfg, opts...)
}
