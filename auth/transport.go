package auth

import (
	"context"
	"strings"
	stdsync "sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
	"golang.org/x/oauth2"
)

// CredentialSource supplies the credentials to attach to outbound calls.
type CredentialSource interface {
	Credentials(ctx context.Context) (core.IntegrationCredentials, error)
}

// Store holds the credentials an adapter received through Authenticate.
type Store struct {
	mu    stdsync.RWMutex
	creds core.IntegrationCredentials
	set   bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Set(creds core.IntegrationCredentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.set = true
	return nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = core.IntegrationCredentials{}
	s.set = false
}

func (s *Store) Get() (core.IntegrationCredentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.set
}

func (s *Store) Credentials(context.Context) (core.IntegrationCredentials, error) {
	creds, ok := s.Get()
	if !ok {
		return core.IntegrationCredentials{}, core.NotFoundError("credentials", "store")
	}
	return creds, nil
}

// TokenSource adapts an oauth2.TokenSource. Refreshing is left to the
// source, so wrap it with oauth2.ReuseTokenSource for caching.
type TokenSource struct {
	Source oauth2.TokenSource
}

func (s TokenSource) Credentials(context.Context) (core.IntegrationCredentials, error) {
	if s.Source == nil {
		return core.IntegrationCredentials{}, core.BadInputError("auth: oauth2 token source is required", nil)
	}
	token, err := s.Source.Token()
	if err != nil {
		return core.IntegrationCredentials{}, core.WrapError(err, goerrors.CategoryExternal, "auth: fetch oauth2 token", core.ErrorExternalFailure, nil)
	}
	return core.OAuth2CredentialsFromToken(token), nil
}

// Transport decorates a TransportAdapter and authorizes every request.
type Transport struct {
	Next    core.TransportAdapter
	Source  CredentialSource
	Options Options
}

func NewTransport(next core.TransportAdapter, source CredentialSource, opts Options) *Transport {
	return &Transport{Next: next, Source: source, Options: opts}
}

func (t *Transport) Kind() string {
	if t == nil || t.Next == nil {
		return "authorized"
	}
	return strings.TrimSpace(t.Next.Kind())
}

func (t *Transport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if t == nil || t.Next == nil {
		return core.TransportResponse{}, core.InternalError("auth: transport is not configured", nil)
	}
	if t.Source != nil {
		creds, err := t.Source.Credentials(ctx)
		if err != nil {
			return core.TransportResponse{}, err
		}
		req.Headers = cloneStrings(req.Headers)
		req.Query = cloneStrings(req.Query)
		if err := ApplyWith(&req, creds, t.Options); err != nil {
			return core.TransportResponse{}, err
		}
	}
	return t.Next.Do(ctx, req)
}

func cloneStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*Transport)(nil)
