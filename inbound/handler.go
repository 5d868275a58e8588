package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/gorilla/mux"
)

const (
	DefaultMaxBodyBytes int64 = 1 << 20
	DefaultRoutePath          = "/webhooks/{integration}"

	routeVar = "integration"
)

// Deliverer is the dispatch surface the handler needs. *webhooks.Dispatcher
// satisfies it.
type Deliverer interface {
	DeliverInbound(ctx context.Context, name string, rawPayload []byte, headers map[string]string) (core.WebhookResult, error)
}

type Handler struct {
	deliverer    Deliverer
	logger       core.Logger
	maxBodyBytes int64
	routePath    string
}

type HandlerOption func(*Handler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// WithRoutePath overrides the mux template. It must contain {integration}.
func WithRoutePath(path string) HandlerOption {
	return func(h *Handler) {
		if strings.Contains(path, "{"+routeVar+"}") {
			h.routePath = path
		}
	}
}

func NewHandler(deliverer Deliverer, opts ...HandlerOption) *Handler {
	h := &Handler{
		deliverer:    deliverer,
		logger:       glog.Nop(),
		maxBodyBytes: DefaultMaxBodyBytes,
		routePath:    DefaultRoutePath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the webhook endpoint on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle(h.routePath, h).Methods(http.MethodPost)
}

// Router returns a standalone router serving only the webhook endpoint.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)[routeVar])
	if name == "" {
		h.writeError(w, r, core.BadInputError("inbound: integration name is required", nil))
		return
	}
	if h.deliverer == nil {
		h.writeError(w, r, core.InternalError("inbound: deliverer is not configured", nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rich := core.NewError("inbound: payload too large", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
				"integration": name,
				"limit":       tooLarge.Limit,
			})
			rich.Code = http.StatusRequestEntityTooLarge
			h.writeError(w, r, rich)
			return
		}
		h.writeError(w, r, core.BadInputError("inbound: read payload: "+err.Error(), map[string]any{"integration": name}))
		return
	}

	result, err := h.deliverer.DeliverInbound(r.Context(), name, body, FlattenHeaders(r.Header))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
		if !result.Accepted {
			status = http.StatusUnprocessableEntity
		}
	}
	data := result.Data
	if data == nil {
		data = map[string]any{}
	}
	writeJSON(w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rich := core.MapError(err)
	status := rich.Code
	if status == 0 {
		status = core.HTTPStatus(rich.Category)
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("inbound webhook failed",
			"path", r.URL.Path,
			"text_code", rich.TextCode,
			"error", rich.Error(),
		)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    rich.TextCode,
			"message": rich.Message,
		},
	})
}

// FlattenHeaders keeps the first value per header under its canonical name.
func FlattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(key)] = values[0]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
