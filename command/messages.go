package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeRegisterIntegration   = "integrations.command.register"
	TypeUnregisterIntegration = "integrations.command.unregister"
	TypeEnableIntegration     = "integrations.command.enable"
	TypeDisableIntegration    = "integrations.command.disable"
	TypeAuthenticate          = "integrations.command.authenticate"
	TypeRouteWebhook          = "integrations.command.webhook.route"
	TypeDeliverWebhook        = "integrations.command.webhook.deliver"
	TypeStartSync             = "integrations.command.sync.start"
	TypeUpdateSyncProgress    = "integrations.command.sync.progress"
	TypeCompleteSync          = "integrations.command.sync.complete"
)

// RegisterIntegrationMessage registers Adapter under Name. With Replace set an
// existing entry is swapped instead of rejected.
type RegisterIntegrationMessage struct {
	Name    string
	Adapter core.Adapter
	Config  core.IntegrationConfig
	Replace bool
}

func (RegisterIntegrationMessage) Type() string { return TypeRegisterIntegration }

func (m RegisterIntegrationMessage) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	if m.Adapter == nil {
		return core.FieldError("command", "adapter", "adapter is required")
	}
	if m.Config.Credentials != nil {
		if err := m.Config.Credentials.Validate(); err != nil {
			return core.ValidationError(err, "command: invalid credentials")
		}
	}
	return nil
}

type UnregisterIntegrationMessage struct {
	Name string
}

func (UnregisterIntegrationMessage) Type() string { return TypeUnregisterIntegration }

func (m UnregisterIntegrationMessage) Validate() error {
	return validateName(m.Name)
}

type EnableIntegrationMessage struct {
	Name string
}

func (EnableIntegrationMessage) Type() string { return TypeEnableIntegration }

func (m EnableIntegrationMessage) Validate() error {
	return validateName(m.Name)
}

type DisableIntegrationMessage struct {
	Name string
}

func (DisableIntegrationMessage) Type() string { return TypeDisableIntegration }

func (m DisableIntegrationMessage) Validate() error {
	return validateName(m.Name)
}

type AuthenticateMessage struct {
	Name        string
	Credentials core.IntegrationCredentials
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	if err := m.Credentials.Validate(); err != nil {
		return core.ValidationError(err, "command: invalid credentials")
	}
	return nil
}

type RouteWebhookMessage struct {
	Name    string
	Payload core.WebhookPayload
}

func (RouteWebhookMessage) Type() string { return TypeRouteWebhook }

func (m RouteWebhookMessage) Validate() error {
	return validateName(m.Name)
}

type DeliverWebhookMessage struct {
	Name  string
	Event string
	Data  any
}

func (DeliverWebhookMessage) Type() string { return TypeDeliverWebhook }

func (m DeliverWebhookMessage) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	if strings.TrimSpace(m.Event) == "" {
		return core.FieldError("command", "event", "event is required")
	}
	return nil
}

type StartSyncMessage struct {
	Request core.StartSyncRequest
}

func (StartSyncMessage) Type() string { return TypeStartSync }

func (m StartSyncMessage) Validate() error {
	if err := m.Request.Validate(); err != nil {
		return core.ValidationError(err, "command: invalid sync request")
	}
	return nil
}

type UpdateSyncProgressMessage struct {
	ID       string
	Progress core.SyncProgress
}

func (UpdateSyncProgressMessage) Type() string { return TypeUpdateSyncProgress }

func (m UpdateSyncProgressMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.FieldError("command", "id", "sync operation id is required")
	}
	if m.Progress.RecordsProcessed != nil && *m.Progress.RecordsProcessed < 0 {
		return core.FieldError("command", "records_processed", "records processed must be >= 0")
	}
	if m.Progress.RecordsTotal != nil && *m.Progress.RecordsTotal < 0 {
		return core.FieldError("command", "records_total", "records total must be >= 0")
	}
	return nil
}

// SyncProgressResult is stored by UpdateSyncProgressCommand. Applied is false
// when the operation was unknown or already finalized.
type SyncProgressResult struct {
	Operation core.SyncOperation
	Applied   bool
}

type CompleteSyncMessage struct {
	ID     string
	Status core.SyncStatus
	Error  string
}

func (CompleteSyncMessage) Type() string { return TypeCompleteSync }

func (m CompleteSyncMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return core.FieldError("command", "id", "sync operation id is required")
	}
	if !m.Status.Terminal() {
		return core.FieldError("command", "status", "status must be completed or failed")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return core.FieldError("command", "name", "integration name is required")
	}
	return nil
}
