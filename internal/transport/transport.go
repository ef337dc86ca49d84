// Package transport intercepts outbound Bot API requests and answers them from the
// simulated server instead of the network.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// DefaultAPIHost is the host whose requests are intercepted.
const DefaultAPIHost = "api.telegram.org"

// Dispatcher is the call surface the transport forwards to.
type Dispatcher interface {
	HandleAPICall(ctx context.Context, method string, params botapi.Params) (any, error)
	Token() string
}

// Option customizes a Transport.
type Option func(*Transport)

// WithAPIHost changes the intercepted host.
func WithAPIHost(host string) Option {
	return func(t *Transport) {
		if host != "" {
			t.host = host
		}
	}
}

// WithNext sets the round tripper used for every other destination.
func WithNext(rt http.RoundTripper) Option {
	return func(t *Transport) {
		if rt != nil {
			t.next = rt
		}
	}
}

// WithLogger sets the transport's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transport is an http.RoundTripper that routes `https://<host>/bot<token>/<method>`
// to a Dispatcher and passes everything else through untouched.
type Transport struct {
	d      Dispatcher
	host   string
	next   http.RoundTripper
	logger *slog.Logger

	mu        sync.Mutex
	installed map[*http.Client]http.RoundTripper
}

// New creates a transport in front of d.
func New(d Dispatcher, opts ...Option) *Transport {
	t := &Transport{
		d:         d,
		host:      DefaultAPIHost,
		next:      http.DefaultTransport,
		logger:    slog.Default(),
		installed: make(map[*http.Client]http.RoundTripper),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Host returns the intercepted host.
func (t *Transport) Host() string { return t.host }

// Client returns a new client that routes through the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Install points c at the transport and returns a function restoring the previous
// round tripper. Installing twice on the same client keeps the first original, and
// the returned restore is safe to call more than once.
func (t *Transport) Install(c *http.Client) (uninstall func()) {
	t.mu.Lock()
	if _, ok := t.installed[c]; !ok {
		prev := c.Transport
		if prev == nil {
			prev = http.DefaultTransport
		}
		t.installed[c] = prev
		c.Transport = t
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.Uninstall(c) })
	}
}

// Uninstall restores c's original round tripper. It is a no-op when c was never
// installed or was already restored.
func (t *Transport) Uninstall(c *http.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.installed[c]
	if !ok {
		return
	}
	delete(t.installed, c)
	if prev == http.DefaultTransport {
		prev = nil
	}
	c.Transport = prev
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL == nil || (req.URL.Host != t.host && req.URL.Hostname() != t.host) {
		return t.next.RoundTrip(req)
	}
	if req.Body != nil {
		defer req.Body.Close()
	}
	status, body := t.serve(req)
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// serve parses one intercepted request, dispatches it and encodes the envelope.
// Failures of any kind end up in the envelope, never as a Go error.
func (t *Transport) serve(req *http.Request) (int, []byte) {
	token, method, ok := splitPath(req.URL.Path)
	if !ok {
		return encode(t.logger, botapi.NewErrorResponse(botapi.NewError(botapi.KindUnsupported, 404, "Not Found")))
	}
	if token != t.d.Token() {
		return encode(t.logger, botapi.NewErrorResponse(botapi.NewError(botapi.KindPermissionDenied, 401, "Unauthorized")))
	}
	params, err := parseRequest(req)
	if err != nil {
		t.logger.Debug("request body rejected", "method", method, "error", err)
		return encode(t.logger, botapi.NewErrorResponse(botapi.InvalidArgument(err.Error())))
	}
	result, err := t.d.HandleAPICall(req.Context(), method, params)
	if err != nil {
		return encode(t.logger, botapi.NewErrorResponse(err))
	}
	resp, err := botapi.NewOKResponse(result)
	if err != nil {
		t.logger.Error("encode result failed", "method", method, "error", err)
		return encode(t.logger, botapi.NewErrorResponse(err))
	}
	return encode(t.logger, resp)
}

func encode(logger *slog.Logger, resp *botapi.Response) (int, []byte) {
	status := http.StatusOK
	if !resp.OK {
		status = resp.ErrorCode
	}
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("encode envelope failed", "error", err)
		return http.StatusInternalServerError, []byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
	}
	return status, data
}
