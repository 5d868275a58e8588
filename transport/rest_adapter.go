package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-integrations/core"
)

const KindREST = "rest"

const (
	defaultRESTClientTimeout           = 30 * time.Second
	defaultRESTResponseBodyLimit int64 = 10 << 20
	HeaderIdempotencyKey               = "Idempotency-Key"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter executes core.TransportRequest values over net/http. Relative
// request URLs are resolved against BaseURL.
type RESTAdapter struct {
	Client               HTTPDoer
	BaseURL              string
	DefaultHeaders       map[string]string
	UserAgent            string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		UserAgent:            "go-integrations",
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

// WithBaseURL returns a copy rooted at baseURL.
func (a *RESTAdapter) WithBaseURL(baseURL string) *RESTAdapter {
	out := *a
	out.BaseURL = strings.TrimSpace(baseURL)
	out.DefaultHeaders = make(map[string]string, len(a.DefaultHeaders))
	maps.Copy(out.DefaultHeaders, a.DefaultHeaders)
	return &out
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, core.InternalError("transport: rest adapter requires an http client", map[string]any{"adapter": KindREST})
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := a.resolveURL(req.URL)
	if err != nil {
		return core.TransportResponse{}, err
	}

	if len(req.Query) > 0 {
		query := target.Query()
		each(req.Query, query.Set)
		target.RawQuery = query.Encode()
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, core.WrapError(err, goerrors.CategoryBadInput, "transport: create http request", core.ErrorBadInput, map[string]any{
			"adapter": KindREST,
			"method":  method,
		})
	}
	if agent := strings.TrimSpace(a.UserAgent); agent != "" {
		httpReq.Header.Set("User-Agent", agent)
	}
	each(a.DefaultHeaders, httpReq.Header.Set)
	each(req.Headers, httpReq.Header.Set)
	if key := strings.TrimSpace(req.Idempotency); key != "" && httpReq.Header.Get(HeaderIdempotencyKey) == "" {
		httpReq.Header.Set(HeaderIdempotencyKey, key)
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, core.WrapError(err, goerrors.CategoryExternal, "transport: execute http request", core.ErrorExternalFailure, map[string]any{
			"adapter": KindREST,
			"method":  method,
			"host":    target.Host,
		})
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.TransportResponse{}, core.WrapError(err, goerrors.CategoryExternal, "transport: read response body", core.ErrorExternalFailure, map[string]any{
			"adapter":     KindREST,
			"status_code": httpRes.StatusCode,
		})
	}
	if int64(len(body)) > maxBodyBytes {
		return core.TransportResponse{}, core.NewError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			core.ErrorExternalFailure,
			map[string]any{
				"adapter":          KindREST,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

func (a *RESTAdapter) resolveURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	base := strings.TrimSpace(a.BaseURL)
	if raw == "" && base == "" {
		return nil, core.BadInputError("transport: request url is required", map[string]any{"adapter": KindREST})
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryBadInput, "transport: invalid request url", core.ErrorBadInput, map[string]any{"adapter": KindREST})
	}
	if target.IsAbs() || base == "" {
		return target, nil
	}
	root, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryBadInput, "transport: invalid base url", core.ErrorBadInput, map[string]any{"adapter": KindREST})
	}
	return root.ResolveReference(&url.URL{Path: strings.TrimLeft(target.Path, "/"), RawQuery: target.RawQuery}), nil
}

// JSONRequest builds a request with an encoded JSON body.
func JSONRequest(method string, target string, payload any) (core.TransportRequest, error) {
	req := core.TransportRequest{
		Method:  method,
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.TransportRequest{}, core.WrapError(err, goerrors.CategoryBadInput, "transport: encode json body", core.ErrorBadInput, nil)
	}
	req.Body = body
	req.Headers["Content-Type"] = "application/json; charset=utf-8"
	return req, nil
}

// DecodeJSON fails on non-2xx responses and otherwise decodes the body.
func DecodeJSON(res core.TransportResponse, target any) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return StatusError(res)
	}
	if target == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, target); err != nil {
		return core.WrapError(err, goerrors.CategoryExternal, "transport: decode json response", core.ErrorExternalFailure, map[string]any{
			"status_code": res.StatusCode,
		})
	}
	return nil
}

// StatusError classifies an unsuccessful response.
func StatusError(res core.TransportResponse) error {
	category := goerrors.CategoryExternal
	textCode := core.ErrorExternalFailure
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case res.StatusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		textCode = core.ErrorNotFound
	case res.StatusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}
	return core.NewError(
		fmt.Sprintf("transport: remote responded with status %d", res.StatusCode),
		category,
		textCode,
		map[string]any{"status_code": res.StatusCode, "body": truncate(string(res.Body), 256)},
	)
}

// each calls set with every trimmed, non-blank key and its trimmed value.
func each(values map[string]string, set func(key, value string)) {
	for key, value := range values {
		if key = strings.TrimSpace(key); key != "" {
			set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
