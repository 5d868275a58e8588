package slack

import (
	"context"
	"strings"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-integrations/auth"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	Name = "slack"

	SettingBotToken       = "bot_token"
	SettingDefaultChannel = "default_channel"
)

type Config struct {
	// Transport replaces the REST adapter rooted at the integration BaseURL.
	Transport core.TransportAdapter
	Logger    core.Logger
	Now       func() time.Time
	// RequestTolerance bounds request timestamp skew. Zero means
	// DefaultRequestTolerance.
	RequestTolerance time.Duration

	OnMessage     func(ctx context.Context, event MessageEvent) error
	OnInteraction func(ctx context.Context, interaction Interaction) (map[string]any, error)
}

type Adapter struct {
	mu stdsync.RWMutex

	cfg            Config
	logger         core.Logger
	now            func() time.Time
	creds          *auth.Store
	transport      core.TransportAdapter
	identity       *Identity
	defaultChannel string
	initialized    bool
}

func New(cfg Config) *Adapter {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Adapter{
		cfg:    cfg,
		logger: glog.Ensure(cfg.Logger),
		now:    now,
		creds:  auth.NewStore(),
	}
}

func (a *Adapter) Initialize(ctx context.Context, cfg core.IntegrationConfig) error {
	creds, err := botCredentials(cfg)
	if err != nil {
		return err
	}
	if err := a.creds.Set(creds); err != nil {
		return err
	}

	base := a.cfg.Transport
	if base == nil {
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		base = transport.NewRESTAdapter(nil).WithBaseURL(baseURL)
	}

	a.mu.Lock()
	a.transport = auth.NewTransport(base, a.creds, auth.Options{})
	a.defaultChannel = cfg.Setting(SettingDefaultChannel)
	a.mu.Unlock()

	identity, err := a.authTest(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.identity = &identity
	a.initialized = true
	a.mu.Unlock()
	a.logger.Info("slack adapter initialized", "team", identity.Team, "user_id", identity.UserID)
	return nil
}

// Authenticate swaps the bot token. When the adapter is live the new token
// is verified first and the previous one kept on failure.
func (a *Adapter) Authenticate(ctx context.Context, creds core.IntegrationCredentials) error {
	if creds.Kind != core.CredentialKindBearerToken && creds.Kind != core.CredentialKindOAuth2 {
		return core.BadInputError("slack: bot token credentials must be bearer_token or oauth2", map[string]any{"kind": string(creds.Kind)})
	}
	previous, hadPrevious := a.creds.Get()
	if err := a.creds.Set(creds); err != nil {
		return err
	}
	if !a.ready() {
		return nil
	}
	identity, err := a.authTest(ctx)
	if err != nil {
		if hadPrevious {
			_ = a.creds.Set(previous)
		} else {
			a.creds.Clear()
		}
		return err
	}
	a.mu.Lock()
	a.identity = &identity
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds.Clear()
	a.identity = nil
	a.initialized = false
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) (core.HealthResult, error) {
	if !a.ready() {
		return core.HealthResult{Status: core.HealthStatusUnhealthy, Message: "slack adapter is not initialized"}, nil
	}
	startedAt := a.now()
	identity, err := a.authTest(ctx)
	if err != nil {
		return core.HealthResult{Status: core.HealthStatusUnhealthy, Message: "auth.test failed", Error: err.Error()}, err
	}
	return core.HealthResult{
		Status:  core.HealthStatusHealthy,
		Message: "ok",
		Latency: a.now().Sub(startedAt),
		Details: map[string]any{
			"team":    identity.Team,
			"team_id": identity.TeamID,
			"user_id": identity.UserID,
		},
	}, nil
}

func (a *Adapter) WebhookHandler() core.WebhookHandler {
	return core.WebhookHandlerFunc(a.HandleWebhook)
}

// Identity returns the bot identity resolved by the last auth.test call.
func (a *Adapter) Identity() (Identity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.identity == nil {
		return Identity{}, false
	}
	return *a.identity, true
}

func (a *Adapter) authTest(ctx context.Context) (Identity, error) {
	var res authTestResponse
	if err := a.call(ctx, "auth.test", nil, &res); err != nil {
		return Identity{}, err
	}
	return res.Identity, nil
}

func (a *Adapter) ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized
}

func (a *Adapter) client() (core.TransportAdapter, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.transport == nil {
		return nil, core.InternalError("slack: adapter is not initialized", nil)
	}
	return a.transport, nil
}

func botCredentials(cfg core.IntegrationConfig) (core.IntegrationCredentials, error) {
	if cfg.Credentials != nil {
		switch cfg.Credentials.Kind {
		case core.CredentialKindBearerToken, core.CredentialKindOAuth2:
			return *cfg.Credentials, nil
		}
		return core.IntegrationCredentials{}, core.BadInputError("slack: bot token credentials must be bearer_token or oauth2", map[string]any{
			"kind": string(cfg.Credentials.Kind),
		})
	}
	if token := cfg.Setting(SettingBotToken); token != "" {
		return core.BearerTokenCredentials(token), nil
	}
	return core.IntegrationCredentials{}, core.BadInputError("slack: bot token is required", nil)
}

var _ core.Adapter = (*Adapter)(nil)
