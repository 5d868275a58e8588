package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/oauth2"
)

func TestApply_APIKeyHeader(t *testing.T) {
	req := core.TransportRequest{URL: "https://example.test"}
	if err := Apply(&req, core.APIKeyCredentials("key_1")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Headers[DefaultAPIKeyHeader]; got != "key_1" {
		t.Fatalf("expected api key header, got %q", got)
	}
}

func TestApplyWith_APIKeyQueryAndPrefix(t *testing.T) {
	req := core.TransportRequest{}
	if err := ApplyWith(&req, core.APIKeyCredentials("key_2"), Options{APIKeyQuery: "api_key"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if req.Query["api_key"] != "key_2" {
		t.Fatalf("expected api key in query, got %#v", req.Query)
	}
	if _, ok := req.Headers[DefaultAPIKeyHeader]; ok {
		t.Fatalf("did not expect api key header when query is configured")
	}

	req = core.TransportRequest{}
	if err := ApplyWith(&req, core.APIKeyCredentials("key_3"), Options{APIKeyHeader: "Authorization", APIKeyPrefix: "Api-Key "}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if req.Headers["Authorization"] != "Api-Key key_3" {
		t.Fatalf("unexpected authorization header %q", req.Headers["Authorization"])
	}
}

func TestApply_BearerAndBasic(t *testing.T) {
	req := core.TransportRequest{}
	if err := Apply(&req, core.BearerTokenCredentials("xoxb-1")); err != nil {
		t.Fatalf("apply bearer: %v", err)
	}
	if req.Headers["Authorization"] != "Bearer xoxb-1" {
		t.Fatalf("unexpected bearer header %q", req.Headers["Authorization"])
	}

	if err := Apply(&req, core.BasicAuthCredentials("user_1", "pass_1")); err != nil {
		t.Fatalf("apply basic: %v", err)
	}
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("user_1:pass_1"))
	if req.Headers["Authorization"] != expected {
		t.Fatalf("unexpected basic header %q", req.Headers["Authorization"])
	}
}

func TestApply_OAuth2(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	req := core.TransportRequest{}
	if err := Apply(&req, core.OAuth2Credentials("access_1", "refresh_1", &expires)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if req.Headers["Authorization"] != "Bearer access_1" {
		t.Fatalf("unexpected oauth2 header %q", req.Headers["Authorization"])
	}

	past := time.Now().Add(-time.Hour)
	err := Apply(&core.TransportRequest{}, core.OAuth2Credentials("access_2", "", &past))
	if err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestApply_RejectsInvalidCredentials(t *testing.T) {
	err := Apply(&core.TransportRequest{}, core.IntegrationCredentials{Kind: core.CredentialKindAPIKey})
	if !core.HasErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
	if err := Apply(nil, core.APIKeyCredentials("k")); err == nil {
		t.Fatalf("expected nil request error")
	}
}

type recordingTransport struct {
	last core.TransportRequest
}

func (r *recordingTransport) Kind() string { return "rest" }

func (r *recordingTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	r.last = req
	return core.TransportResponse{StatusCode: 200}, nil
}

func TestTransport_AuthorizesFromStore(t *testing.T) {
	next := &recordingTransport{}
	store := NewStore()
	transport := NewTransport(next, store, Options{})

	if _, err := transport.Do(context.Background(), core.TransportRequest{URL: "https://example.test"}); !core.HasErrorCode(err, core.ErrorNotFound) {
		t.Fatalf("expected missing credentials error, got %v", err)
	}

	if err := store.Set(core.BearerTokenCredentials("tok_1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	headers := map[string]string{"Accept": "application/json"}
	if _, err := transport.Do(context.Background(), core.TransportRequest{URL: "https://example.test", Headers: headers}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if next.last.Headers["Authorization"] != "Bearer tok_1" {
		t.Fatalf("expected bearer header on forwarded request")
	}
	if _, ok := headers["Authorization"]; ok {
		t.Fatalf("caller headers must not be mutated")
	}
	if transport.Kind() != "rest" {
		t.Fatalf("expected wrapped transport kind")
	}

	store.Clear()
	if _, ok := store.Get(); ok {
		t.Fatalf("expected cleared store")
	}
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint down")
}

func TestTokenSource_Credentials(t *testing.T) {
	source := TokenSource{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "at_1", TokenType: "Bearer"})}
	creds, err := source.Credentials(context.Background())
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.Kind != core.CredentialKindOAuth2 || creds.AccessToken != "at_1" {
		t.Fatalf("unexpected credentials %#v", creds)
	}

	if _, err := (TokenSource{Source: failingTokenSource{}}).Credentials(context.Background()); !core.HasErrorCode(err, core.ErrorExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
}
