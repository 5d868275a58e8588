package devkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// TransportScript is one canned reply. Err is returned alongside Response.
type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSONScript scripts a response whose body is body encoded as JSON.
func JSONScript(status int, body any) TransportScript {
	raw, err := json.Marshal(body)
	if err != nil {
		return TransportScript{Err: err}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       raw,
	}}
}

// Call pairs a captured request with the reply it received.
type Call struct {
	Request  core.TransportRequest
	Response core.TransportResponse
	Err      error
}

// FakeTransportAdapter replays scripts in order. Once the queue is drained the
// last script keeps answering; with no scripts at all every call gets a 200.
type FakeTransportAdapter struct {
	mu     sync.Mutex
	kind   string
	queue  []TransportScript
	sticky *TransportScript
	calls  []Call
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	fake := &FakeTransportAdapter{kind: strings.ToLower(strings.TrimSpace(kind))}
	fake.Push(scripts...)
	return fake
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	script := a.next()
	a.calls = append(a.calls, Call{
		Request:  copyRequest(req),
		Response: copyResponse(script.Response),
		Err:      script.Err,
	})
	return copyResponse(script.Response), script.Err
}

func (a *FakeTransportAdapter) next() TransportScript {
	if len(a.queue) > 0 {
		head := a.queue[0]
		a.queue = a.queue[1:]
		a.sticky = &head
		return head
	}
	if a.sticky != nil {
		return *a.sticky
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: http.StatusOK,
		Metadata:   map[string]any{"kind": a.kind},
	}}
}

// Push appends scripts after construction.
func (a *FakeTransportAdapter) Push(scripts ...TransportScript) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, scripts...)
}

// Reset forgets captured calls and pending scripts.
func (a *FakeTransportAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue, a.sticky, a.calls = nil, nil, nil
}

// LastRequest returns the most recent captured request.
func (a *FakeTransportAdapter) LastRequest() (core.TransportRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return core.TransportRequest{}, false
	}
	return copyRequest(a.calls[len(a.calls)-1].Request), true
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	calls := a.Calls()
	out := make([]core.TransportRequest, 0, len(calls))
	for _, call := range calls {
		out = append(out, call.Request)
	}
	return out
}

// Calls returns every captured exchange in call order.
func (a *FakeTransportAdapter) Calls() []Call {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, 0, len(a.calls))
	for _, call := range a.calls {
		out = append(out, Call{
			Request:  copyRequest(call.Request),
			Response: copyResponse(call.Response),
			Err:      call.Err,
		})
	}
	return out
}

func copyRequest(in core.TransportRequest) core.TransportRequest {
	out := in
	out.Headers = cloneOrEmpty(in.Headers)
	out.Query = cloneOrEmpty(in.Query)
	out.Metadata = cloneOrEmpty(in.Metadata)
	out.Body = bytes.Clone(in.Body)
	return out
}

func copyResponse(in core.TransportResponse) core.TransportResponse {
	out := in
	out.Headers = cloneOrEmpty(in.Headers)
	out.Metadata = cloneOrEmpty(in.Metadata)
	out.Body = bytes.Clone(in.Body)
	return out
}

func cloneOrEmpty[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	maps.Copy(out, in)
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
