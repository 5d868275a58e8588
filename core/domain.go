package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type CredentialKind string

const (
	CredentialKindAPIKey      CredentialKind = "api_key"
	CredentialKindBearerToken CredentialKind = "bearer_token"
	CredentialKindOAuth2      CredentialKind = "oauth2"
	CredentialKindBasicAuth   CredentialKind = "basic_auth"
)

// IntegrationCredentials is a tagged union. Only the fields that belong to
// Kind may be set.
type IntegrationCredentials struct {
	Kind CredentialKind

	APIKey string

	BearerToken string

	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time

	Username string
	Password string
}

func APIKeyCredentials(key string) IntegrationCredentials {
	return IntegrationCredentials{Kind: CredentialKindAPIKey, APIKey: strings.TrimSpace(key)}
}

func BearerTokenCredentials(token string) IntegrationCredentials {
	return IntegrationCredentials{Kind: CredentialKindBearerToken, BearerToken: strings.TrimSpace(token)}
}

func OAuth2Credentials(accessToken string, refreshToken string, expiresAt *time.Time) IntegrationCredentials {
	creds := IntegrationCredentials{
		Kind:         CredentialKindOAuth2,
		AccessToken:  strings.TrimSpace(accessToken),
		RefreshToken: strings.TrimSpace(refreshToken),
	}
	if expiresAt != nil {
		value := expiresAt.UTC()
		creds.ExpiresAt = &value
	}
	return creds
}

// OAuth2CredentialsFromToken adopts a token minted by an oauth2.Config flow.
func OAuth2CredentialsFromToken(token *oauth2.Token) IntegrationCredentials {
	if token == nil {
		return IntegrationCredentials{Kind: CredentialKindOAuth2}
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}
	creds := OAuth2Credentials(token.AccessToken, token.RefreshToken, expiresAt)
	creds.TokenType = strings.TrimSpace(token.TokenType)
	return creds
}

func BasicAuthCredentials(username string, password string) IntegrationCredentials {
	return IntegrationCredentials{
		Kind:     CredentialKindBasicAuth,
		Username: strings.TrimSpace(username),
		Password: password,
	}
}

func (c IntegrationCredentials) Validate() error {
	switch c.Kind {
	case CredentialKindAPIKey:
		if strings.TrimSpace(c.APIKey) == "" {
			return BadInputError("core: api key is required", map[string]any{"kind": string(c.Kind)})
		}
		if c.BearerToken != "" || c.AccessToken != "" || c.Username != "" || c.Password != "" {
			return BadInputError("core: api_key credentials carry fields of another variant", nil)
		}
	case CredentialKindBearerToken:
		if strings.TrimSpace(c.BearerToken) == "" {
			return BadInputError("core: bearer token is required", map[string]any{"kind": string(c.Kind)})
		}
		if c.APIKey != "" || c.AccessToken != "" || c.Username != "" || c.Password != "" {
			return BadInputError("core: bearer_token credentials carry fields of another variant", nil)
		}
	case CredentialKindOAuth2:
		if strings.TrimSpace(c.AccessToken) == "" {
			return BadInputError("core: oauth2 access token is required", map[string]any{"kind": string(c.Kind)})
		}
		if c.APIKey != "" || c.BearerToken != "" || c.Username != "" || c.Password != "" {
			return BadInputError("core: oauth2 credentials carry fields of another variant", nil)
		}
	case CredentialKindBasicAuth:
		if strings.TrimSpace(c.Username) == "" {
			return BadInputError("core: basic auth username is required", map[string]any{"kind": string(c.Kind)})
		}
		if c.APIKey != "" || c.BearerToken != "" || c.AccessToken != "" {
			return BadInputError("core: basic_auth credentials carry fields of another variant", nil)
		}
	default:
		return BadInputError(fmt.Sprintf("core: invalid credential kind %q", c.Kind), nil)
	}
	return nil
}

// Token exposes oauth2 credentials in the x/oauth2 token model. Other
// variants return nil.
func (c IntegrationCredentials) Token() *oauth2.Token {
	if c.Kind != CredentialKindOAuth2 {
		return nil
	}
	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
	}
	if c.ExpiresAt != nil {
		token.Expiry = c.ExpiresAt.UTC()
	}
	return token
}

// Expired reports whether oauth2 credentials are past their expiry.
func (c IntegrationCredentials) Expired() bool {
	token := c.Token()
	if token == nil {
		return false
	}
	return !token.Valid()
}

// Redacted returns a loggable view of the credentials.
func (c IntegrationCredentials) Redacted() map[string]any {
	out := map[string]any{"kind": string(c.Kind)}
	switch c.Kind {
	case CredentialKindAPIKey:
		out["api_key"] = RedactedValue
	case CredentialKindBearerToken:
		out["bearer_token"] = RedactedValue
	case CredentialKindOAuth2:
		out["access_token"] = RedactedValue
		if c.ExpiresAt != nil {
			out["expires_at"] = c.ExpiresAt.UTC()
		}
	case CredentialKindBasicAuth:
		out["username"] = c.Username
		out["password"] = RedactedValue
	}
	return out
}

type IntegrationConfig struct {
	Enabled     bool
	Credentials *IntegrationCredentials
	WebhookURL  string
	BaseURL     string
	Scopes      []string
	Settings    map[string]string

	// Inbound delivery settings wired into the dispatcher when WebhookURL is set.
	WebhookSecret   string
	SignatureHeader string
	SignaturePrefix string
	// SignatureEncoding is "hex" or "base64"; empty keeps the dispatcher codec.
	SignatureEncoding string
	Timeout           time.Duration
	MaxRetries        *int
	RetryDelay        time.Duration
}

func (c IntegrationConfig) Clone() IntegrationConfig {
	out := c
	if c.Credentials != nil {
		creds := *c.Credentials
		out.Credentials = &creds
	}
	out.Scopes = append([]string(nil), c.Scopes...)
	out.Settings = copyStringMap(c.Settings)
	if c.MaxRetries != nil {
		value := *c.MaxRetries
		out.MaxRetries = &value
	}
	return out
}

func (c IntegrationConfig) Setting(key string) string {
	if len(c.Settings) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Settings[key])
}

// DeliveryConfig derives the dispatcher registration for this integration,
// falling back to defaults for unset values.
func (c IntegrationConfig) DeliveryConfig(defaults WebhookDeliveryConfig) WebhookDeliveryConfig {
	out := defaults
	out.URL = strings.TrimSpace(c.WebhookURL)
	if secret := strings.TrimSpace(c.WebhookSecret); secret != "" {
		out.Secret = secret
	}
	if header := strings.TrimSpace(c.SignatureHeader); header != "" {
		out.SignatureHeader = header
	}
	if prefix := strings.TrimSpace(c.SignaturePrefix); prefix != "" {
		out.SignaturePrefix = prefix
	}
	if encoding := strings.TrimSpace(c.SignatureEncoding); encoding != "" {
		out.SignatureEncoding = encoding
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	if c.MaxRetries != nil {
		out.MaxRetries = *c.MaxRetries
	}
	if c.RetryDelay > 0 {
		out.RetryDelay = c.RetryDelay
		if backoff, ok := out.RetryPolicy.(ExponentialBackoff); ok {
			backoff.Base = c.RetryDelay
			out.RetryPolicy = backoff
		}
	}
	return out
}

const (
	SignatureEncodingHex    = "hex"
	SignatureEncodingBase64 = "base64"

	DefaultSignatureHeader = "X-Webhook-Signature"
	DefaultSignaturePrefix = "sha256="
	DefaultWebhookEvent    = "webhook.received"
	TestWebhookEvent       = "webhook.test"
)

// WebhookPayload is built once per inbound delivery and never mutated.
type WebhookPayload struct {
	ID         string
	Event      string
	Data       json.RawMessage
	ReceivedAt time.Time
	Source     string
	Signature  string
}

func NewWebhookPayload(source string, event string, data []byte, signature string, receivedAt time.Time) WebhookPayload {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	event = strings.TrimSpace(event)
	if event == "" {
		event = DefaultWebhookEvent
	}
	return WebhookPayload{
		ID:         uuid.NewString(),
		Event:      event,
		Data:       append(json.RawMessage(nil), data...),
		ReceivedAt: receivedAt.UTC(),
		Source:     strings.TrimSpace(source),
		Signature:  strings.TrimSpace(signature),
	}
}

// Decode unmarshals the payload body into target.
func (p WebhookPayload) Decode(target any) error {
	if len(p.Data) == 0 {
		return BadInputError("core: webhook payload body is empty", map[string]any{"source": p.Source})
	}
	if err := json.Unmarshal(p.Data, target); err != nil {
		return WrapError(err, goerrors.CategoryBadInput, "core: decode webhook payload", ErrorBadInput, map[string]any{"source": p.Source})
	}
	return nil
}

// RetryPolicy yields the wait before the given retry (1-based).
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type WebhookDeliveryConfig struct {
	URL               string
	Secret            string
	SignatureHeader   string
	SignaturePrefix   string
	SignatureEncoding string
	// Verifier replaces the raw-body HMAC check for vendors that sign more
	// than the body.
	Verifier    RequestVerifier
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RetryPolicy RetryPolicy
}

func (c WebhookDeliveryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return BadInputError("core: max retries must be >= 0", map[string]any{"max_retries": c.MaxRetries})
	}
	if c.Timeout <= 0 {
		return BadInputError("core: delivery timeout must be > 0", map[string]any{"timeout": c.Timeout.String()})
	}
	if c.RetryDelay < 0 {
		return BadInputError("core: retry delay must be >= 0", map[string]any{"retry_delay": c.RetryDelay.String()})
	}
	switch strings.ToLower(strings.TrimSpace(c.SignatureEncoding)) {
	case "", SignatureEncodingHex, SignatureEncodingBase64:
	default:
		return BadInputError("core: unsupported signature encoding", map[string]any{"signature_encoding": c.SignatureEncoding})
	}
	return nil
}

func (c WebhookDeliveryConfig) Attempts() int {
	return c.MaxRetries + 1
}

// Delay resolves the wait before retry number attempt.
func (c WebhookDeliveryConfig) Delay(attempt int) time.Duration {
	if c.RetryPolicy != nil {
		return c.RetryPolicy.NextDelay(attempt)
	}
	return c.RetryDelay
}

func (c WebhookDeliveryConfig) Header() string {
	if header := strings.TrimSpace(c.SignatureHeader); header != "" {
		return header
	}
	return DefaultSignatureHeader
}

type WebhookResult struct {
	Accepted   bool
	StatusCode int
	Data       map[string]any
}

type SyncKind string

const (
	SyncKindImport        SyncKind = "import"
	SyncKindExport        SyncKind = "export"
	SyncKindBidirectional SyncKind = "bidirectional"
)

type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

func (s SyncStatus) Terminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

type SyncOperation struct {
	ID                string
	Integration       string
	Kind              SyncKind
	EntityType        string
	Status            SyncStatus
	StartedAt         time.Time
	CompletedAt       *time.Time
	RecordsProcessed  int
	RecordsTotal      *int
	Errors            []string
	ContinuationToken string
	Metadata          map[string]any
}

func (o SyncOperation) Clone() SyncOperation {
	out := o
	if o.CompletedAt != nil {
		value := *o.CompletedAt
		out.CompletedAt = &value
	}
	if o.RecordsTotal != nil {
		value := *o.RecordsTotal
		out.RecordsTotal = &value
	}
	out.Errors = append([]string(nil), o.Errors...)
	out.Metadata = copyAnyMap(o.Metadata)
	return out
}

// SyncProgress carries a partial update. Nil fields are left untouched.
type SyncProgress struct {
	RecordsProcessed  *int
	RecordsTotal      *int
	ContinuationToken *string
	Errors            []string
	Metadata          map[string]any
}

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDisabled  HealthStatus = "disabled"
	HealthStatusError     HealthStatus = "error"
)

type HealthResult struct {
	Integration string
	Status      HealthStatus
	Message     string
	Error       string
	CheckedAt   time.Time
	Latency     time.Duration
	Details     map[string]any
}

func (h HealthResult) Healthy() bool {
	return h.Status == HealthStatusHealthy
}

type IntegrationStatus struct {
	Name          string
	Enabled       bool
	Ready         bool
	HasWebhook    bool
	WebhookWired  bool
	LastError     string
	RegisteredAt  time.Time
	CredentialSet bool
}

// IntPtr is a convenience for optional counters.
func IntPtr(value int) *int {
	return &value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
