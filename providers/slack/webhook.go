package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

const (
	TypeURLVerification    = "url_verification"
	TypeEventCallback      = "event_callback"
	TypeBlockActions       = "block_actions"
	TypeViewSubmission     = "view_submission"
	TypeInteractiveMessage = "interactive_message"

	EventMessage    = "message"
	EventAppMention = "app_mention"
)

type MessageEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	TeamID   string `json:"-"`
	EventID  string `json:"-"`
}

// FromBot reports messages authored by a bot, including our own posts.
func (e MessageEvent) FromBot() bool {
	return e.BotID != "" || e.Subtype == "bot_message"
}

type Action struct {
	ActionID string `json:"action_id"`
	BlockID  string `json:"block_id"`
	Type     string `json:"type"`
	Value    string `json:"value"`
}

type Interaction struct {
	Type        string          `json:"type"`
	CallbackID  string          `json:"callback_id"`
	TriggerID   string          `json:"trigger_id"`
	ResponseURL string          `json:"response_url"`
	Actions     []Action        `json:"actions"`
	View        json.RawMessage `json:"view,omitempty"`
	User        struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

type callback struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	TeamID    string          `json:"team_id"`
	EventID   string          `json:"event_id"`
	Event     json.RawMessage `json:"event"`
}

// HandleWebhook routes an Events API callback or an interactivity payload.
func (a *Adapter) HandleWebhook(ctx context.Context, payload core.WebhookPayload) (core.WebhookResult, error) {
	body, err := interactionBody(payload.Data)
	if err != nil {
		return core.WebhookResult{}, err
	}
	var head callback
	if err := json.Unmarshal(body, &head); err != nil {
		return core.WebhookResult{}, core.WrapError(err, goerrors.CategoryBadInput, "slack: decode webhook payload", core.ErrorBadInput, nil)
	}

	switch head.Type {
	case TypeURLVerification:
		if strings.TrimSpace(head.Challenge) == "" {
			return core.WebhookResult{}, core.BadInputError("slack: url_verification challenge is required", nil)
		}
		return core.WebhookResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Data:       map[string]any{"challenge": head.Challenge},
		}, nil
	case TypeEventCallback:
		return a.handleEvent(ctx, head)
	case TypeBlockActions, TypeViewSubmission, TypeInteractiveMessage:
		var interaction Interaction
		if err := json.Unmarshal(body, &interaction); err != nil {
			return core.WebhookResult{}, core.WrapError(err, goerrors.CategoryBadInput, "slack: decode interaction", core.ErrorBadInput, nil)
		}
		return a.handleInteraction(ctx, interaction)
	default:
		return core.WebhookResult{
			Accepted:   false,
			StatusCode: http.StatusUnprocessableEntity,
			Data:       map[string]any{"type": head.Type, "reason": "unsupported payload type"},
		}, nil
	}
}

func (a *Adapter) handleEvent(ctx context.Context, head callback) (core.WebhookResult, error) {
	var event MessageEvent
	if len(head.Event) > 0 {
		if err := json.Unmarshal(head.Event, &event); err != nil {
			return core.WebhookResult{}, core.WrapError(err, goerrors.CategoryBadInput, "slack: decode event", core.ErrorBadInput, nil)
		}
	}
	event.TeamID = head.TeamID
	event.EventID = head.EventID
	data := map[string]any{"type": TypeEventCallback, "event_type": event.Type, "event_id": head.EventID}

	switch event.Type {
	case EventMessage, EventAppMention:
	default:
		data["ignored"] = true
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
	}
	if event.FromBot() {
		data["ignored"] = true
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
	}

	if a.cfg.OnMessage != nil {
		if err := a.cfg.OnMessage(ctx, event); err != nil {
			return core.WebhookResult{}, err
		}
	}
	data["channel"] = event.Channel
	data["user"] = event.User
	return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
}

func (a *Adapter) handleInteraction(ctx context.Context, interaction Interaction) (core.WebhookResult, error) {
	data := map[string]any{"type": interaction.Type}
	if len(interaction.Actions) > 0 {
		data["action_id"] = interaction.Actions[0].ActionID
	}
	if a.cfg.OnInteraction != nil {
		response, err := a.cfg.OnInteraction(ctx, interaction)
		if err != nil {
			return core.WebhookResult{}, err
		}
		for key, value := range response {
			data[key] = value
		}
	}
	return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
}

// interactionBody unwraps the form encoded payload field Slack uses for
// interactivity requests. JSON bodies pass through.
func interactionBody(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, core.BadInputError("slack: webhook payload is empty", nil)
	}
	if trimmed[0] == '{' {
		return trimmed, nil
	}
	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryBadInput, "slack: decode form payload", core.ErrorBadInput, nil)
	}
	payload := values.Get("payload")
	if payload == "" {
		return nil, core.BadInputError("slack: form payload field is required", nil)
	}
	return []byte(payload), nil
}
