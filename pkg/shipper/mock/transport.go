package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tournevent/ratebridge/pkg/shipper"
)

// Handler answers a request sent through a mock Transport.
type Handler func(ctx context.Context, req *shipper.Request) (*shipper.Response, error)

// Transport is a scriptable shipper.Transport. Requests are routed to the
// first handler whose URL suffix matches; every request is recorded.
type Transport struct {
	SimulateLatency time.Duration

	mu       sync.Mutex
	routes   []route
	requests []*shipper.Request
	calls    atomic.Int64
}

type route struct {
	suffix  string
	handler Handler
}

// NewTransport creates a mock transport with no routes.
func NewTransport() *Transport {
	return &Transport{}
}

// Handle registers h for requests whose URL path ends with suffix.
func (t *Transport) Handle(suffix string, h Handler) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, route{suffix: suffix, handler: h})
	return t
}

// Send implements shipper.Transport.
func (t *Transport) Send(ctx context.Context, req *shipper.Request) (*shipper.Response, error) {
	t.calls.Add(1)

	t.mu.Lock()
	t.requests = append(t.requests, req)
	routes := append([]route(nil), t.routes...)
	t.mu.Unlock()

	if t.SimulateLatency > 0 {
		select {
		case <-time.After(t.SimulateLatency):
		case <-ctx.Done():
			return nil, &shipper.TransportError{Kind: shipper.FailureTimeout, Method: req.Method, URL: req.URL, Err: ctx.Err()}
		}
	}

	path := req.URL
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, r := range routes {
		if strings.HasSuffix(path, r.suffix) {
			return r.handler(ctx, req)
		}
	}
	return Status(http.StatusNotFound, `{"message":"no mock route"}`)(ctx, req)
}

// Calls returns the number of requests sent.
func (t *Transport) Calls() int {
	return int(t.calls.Load())
}

// CallsTo returns the number of requests sent to URLs ending with suffix.
func (t *Transport) CallsTo(suffix string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.requests {
		if strings.HasSuffix(strings.SplitN(r.URL, "?", 2)[0], suffix) {
			n++
		}
	}
	return n
}

// Requests returns a copy of the recorded requests.
func (t *Transport) Requests() []*shipper.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*shipper.Request(nil), t.requests...)
}

// JSON returns a handler answering status with v encoded as JSON.
func JSON(status int, v any) Handler {
	return func(ctx context.Context, req *shipper.Request) (*shipper.Response, error) {
		body, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return &shipper.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       body,
		}, nil
	}
}

// Status returns a handler answering status with a raw body.
func Status(status int, body string) Handler {
	return WithHeader(status, body, nil)
}

// WithHeader returns a handler answering status with a raw body and headers.
func WithHeader(status int, body string, header http.Header) Handler {
	return func(ctx context.Context, req *shipper.Request) (*shipper.Response, error) {
		h := header.Clone()
		if h == nil {
			h = http.Header{}
		}
		return &shipper.Response{StatusCode: status, Header: h, Body: []byte(body)}, nil
	}
}

// Fail returns a handler that fails without a response.
func Fail(kind shipper.FailureKind, err error) Handler {
	return func(ctx context.Context, req *shipper.Request) (*shipper.Response, error) {
		return nil, &shipper.TransportError{Kind: kind, Method: req.Method, URL: req.URL, Err: err}
	}
}

var _ shipper.Transport = (*Transport)(nil)
