package zapier

import (
	"context"
	"strings"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	Name = "zapier"

	SettingAPIKey        = "api_key"
	SettingSigningSecret = "signing_secret"

	defaultImportBatchSize = 50
	defaultHookTimeout     = 30 * time.Second
	defaultHookRetries     = 3
	defaultHookRetryDelay  = time.Second
)

// Outbound is the dispatcher surface used for REST hook targets.
// *webhooks.Dispatcher satisfies it.
type Outbound interface {
	Register(name string, cfg core.WebhookDeliveryConfig, handler core.WebhookHandler) error
	Unregister(name string) error
	Deliver(ctx context.Context, name string, event string, data any) (core.DeliveryReceipt, error)
}

// SyncLifecycle tracks import_records runs. *core.Registry satisfies it.
type SyncLifecycle interface {
	StartSync(ctx context.Context, req core.StartSyncRequest) (core.SyncOperation, error)
	UpdateSyncProgress(ctx context.Context, id string, progress core.SyncProgress) (core.SyncOperation, bool)
	CompleteSyncOperation(ctx context.Context, id string, status core.SyncStatus, errMsg string) (core.SyncOperation, error)
}

type Config struct {
	Outbound        Outbound
	Syncs           SyncLifecycle
	Logger          core.Logger
	ImportBatchSize int
	// MaxConcurrentTriggers bounds TriggerEvent fan out. Zero means 4.
	MaxConcurrentTriggers int
	Now                   func() time.Time
	NewID                 func() string
}

type Adapter struct {
	mu stdsync.RWMutex

	cfg    Config
	logger core.Logger
	now    func() time.Time
	newID  func() string

	apiKey        string
	signingSecret string
	hookDefaults  core.WebhookDeliveryConfig
	initialized   bool
	subscriptions map[string]Subscription
}

func New(cfg Config) *Adapter {
	if cfg.ImportBatchSize <= 0 {
		cfg.ImportBatchSize = defaultImportBatchSize
	}
	if cfg.MaxConcurrentTriggers <= 0 {
		cfg.MaxConcurrentTriggers = 4
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Adapter{
		cfg:           cfg,
		logger:        glog.Ensure(cfg.Logger),
		now:           now,
		newID:         newID,
		subscriptions: map[string]Subscription{},
	}
}

func (a *Adapter) Initialize(_ context.Context, cfg core.IntegrationConfig) error {
	apiKey, err := apiKeyFrom(cfg)
	if err != nil {
		return err
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		secret = cfg.Setting(SettingSigningSecret)
	}
	if secret == "" {
		secret = apiKey
	}

	defaults := core.WebhookDeliveryConfig{
		Secret:          secret,
		SignatureHeader: cfg.SignatureHeader,
		SignaturePrefix: cfg.SignaturePrefix,
		Timeout:         defaultHookTimeout,
		MaxRetries:      defaultHookRetries,
		RetryDelay:      defaultHookRetryDelay,
	}
	if cfg.Timeout > 0 {
		defaults.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		defaults.MaxRetries = *cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		defaults.RetryDelay = cfg.RetryDelay
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.apiKey = apiKey
	a.signingSecret = secret
	a.hookDefaults = defaults
	a.initialized = true
	return nil
}

func (a *Adapter) Authenticate(_ context.Context, creds core.IntegrationCredentials) error {
	if creds.Kind != core.CredentialKindAPIKey {
		return core.BadInputError("zapier: credentials must be api_key", map[string]any{"kind": string(creds.Kind)})
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signingSecret == a.apiKey {
		a.signingSecret = creds.APIKey
		a.hookDefaults.Secret = creds.APIKey
	}
	a.apiKey = creds.APIKey
	return nil
}

// Disconnect drops every REST hook registration.
func (a *Adapter) Disconnect(context.Context) error {
	a.mu.Lock()
	subs := a.subscriptions
	a.subscriptions = map[string]Subscription{}
	a.initialized = false
	a.apiKey = ""
	a.mu.Unlock()

	if a.cfg.Outbound == nil {
		return nil
	}
	for _, sub := range subs {
		if err := a.cfg.Outbound.Unregister(registrationName(sub.ID)); err != nil && !core.HasErrorCode(err, core.ErrorNotFound) {
			a.logger.Warn("zapier hook unregister failed", "subscription_id", sub.ID, "error", err)
		}
	}
	return nil
}

func (a *Adapter) HealthCheck(context.Context) (core.HealthResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized || a.apiKey == "" {
		return core.HealthResult{Status: core.HealthStatusUnhealthy, Message: "zapier adapter is not initialized"}, nil
	}
	return core.HealthResult{
		Status:  core.HealthStatusHealthy,
		Message: "ok",
		Details: map[string]any{
			"subscriptions":    len(a.subscriptions),
			"outbound_enabled": a.cfg.Outbound != nil,
		},
	}, nil
}

func (a *Adapter) WebhookHandler() core.WebhookHandler {
	return core.WebhookHandlerFunc(a.HandleWebhook)
}

func apiKeyFrom(cfg core.IntegrationConfig) (string, error) {
	if cfg.Credentials != nil {
		if cfg.Credentials.Kind != core.CredentialKindAPIKey {
			return "", core.BadInputError("zapier: credentials must be api_key", map[string]any{"kind": string(cfg.Credentials.Kind)})
		}
		if err := cfg.Credentials.Validate(); err != nil {
			return "", err
		}
		return cfg.Credentials.APIKey, nil
	}
	if key := cfg.Setting(SettingAPIKey); key != "" {
		return key, nil
	}
	return "", core.BadInputError("zapier: api key is required", nil)
}

var _ core.Adapter = (*Adapter)(nil)
