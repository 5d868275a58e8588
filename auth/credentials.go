package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

const DefaultAPIKeyHeader = "X-API-Key"

// Options control where each credential variant lands on a request.
type Options struct {
	// APIKeyHeader defaults to X-API-Key.
	APIKeyHeader string
	// APIKeyPrefix is prepended to the key, e.g. "Api-Key ".
	APIKeyPrefix string
	// APIKeyQuery moves the key into the query string instead of a header.
	APIKeyQuery string
}

func (o Options) apiKeyHeader() string {
	if header := strings.TrimSpace(o.APIKeyHeader); header != "" {
		return header
	}
	return DefaultAPIKeyHeader
}

// Apply sets the authorization material for creds on req.
func Apply(req *core.TransportRequest, creds core.IntegrationCredentials) error {
	return ApplyWith(req, creds, Options{})
}

func ApplyWith(req *core.TransportRequest, creds core.IntegrationCredentials, opts Options) error {
	if req == nil {
		return core.BadInputError("auth: transport request is required", nil)
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}

	switch creds.Kind {
	case core.CredentialKindAPIKey:
		if query := strings.TrimSpace(opts.APIKeyQuery); query != "" {
			if req.Query == nil {
				req.Query = map[string]string{}
			}
			req.Query[query] = creds.APIKey
			return nil
		}
		req.Headers[opts.apiKeyHeader()] = opts.APIKeyPrefix + creds.APIKey
	case core.CredentialKindBearerToken:
		req.Headers["Authorization"] = "Bearer " + creds.BearerToken
	case core.CredentialKindOAuth2:
		if creds.Expired() {
			return core.NewError("auth: oauth2 access token has expired", goerrors.CategoryAuth, core.ErrorBadInput, map[string]any{
				"kind": string(creds.Kind),
			})
		}
		token := creds.Token()
		req.Headers["Authorization"] = token.Type() + " " + token.AccessToken
	case core.CredentialKindBasicAuth:
		encoded := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
		req.Headers["Authorization"] = "Basic " + encoded
	default:
		return core.BadInputError(fmt.Sprintf("auth: unsupported credential kind %q", creds.Kind), nil)
	}
	return nil
}
