package slack

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport"
)

const DefaultBaseURL = "https://slack.com/api/"

// envelope is the shape shared by every Web API response.
type envelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type Identity struct {
	URL    string `json:"url"`
	Team   string `json:"team"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id,omitempty"`
}

type authTestResponse struct {
	envelope
	Identity
}

// call posts payload to a Web API method and decodes the response into out.
// A response with ok=false is returned as an external failure carrying the
// Slack error string.
func (a *Adapter) call(ctx context.Context, method string, payload any, out any) error {
	req, err := transport.JSONRequest(http.MethodPost, method, payload)
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	res, err := client.Do(ctx, req)
	if err != nil {
		return err
	}

	var env envelope
	if err := transport.DecodeJSON(res, &env); err != nil {
		return err
	}
	if !env.OK {
		return apiError(method, env.Error)
	}
	if env.Warning != "" {
		a.logger.Warn("slack api warning", "method", method, "warning", env.Warning)
	}
	if out == nil {
		return nil
	}
	return transport.DecodeJSON(res, out)
}

func apiError(method string, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		code = "unknown_error"
	}
	category := goerrors.CategoryExternal
	switch code {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		category = goerrors.CategoryAuth
	case "ratelimited":
		category = goerrors.CategoryRateLimit
	case "channel_not_found", "user_not_found":
		category = goerrors.CategoryNotFound
	}
	textCode := core.ErrorExternalFailure
	if category == goerrors.CategoryNotFound {
		textCode = core.ErrorNotFound
	}
	return core.NewError("slack: "+method+" failed: "+code, category, textCode, map[string]any{
		"method":      method,
		"slack_error": code,
	})
}
