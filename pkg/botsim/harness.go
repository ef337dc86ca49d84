// Package botsim drives bot code against an in-memory Bot API server. A Harness
// owns the simulated server, intercepts the bot's HTTP calls, builds realistic
// updates for synthetic users and returns one BotResponse per update.
package botsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/botsim/internal/config"
	"github.com/nextlevelbuilder/botsim/internal/cron"
	"github.com/nextlevelbuilder/botsim/internal/dispatcher"
	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/scheduler"
	"github.com/nextlevelbuilder/botsim/internal/transport"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Re-exported core types.
type (
	Config      = config.Config
	BotResponse = response.BotResponse
	Server      = dispatcher.Server
	Outcome     = scheduler.Outcome
	Update      = botapi.Update
	Params      = botapi.Params
)

// ErrNoHandler is returned when an update is delivered before a handler is set.
var ErrNoHandler = errors.New("botsim: no update handler")

// Handler is the bot's update entry point.
type Handler interface {
	HandleUpdate(ctx context.Context, update botapi.Update) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, update botapi.Update) error

// HandleUpdate calls f.
func (f HandlerFunc) HandleUpdate(ctx context.Context, update botapi.Update) error {
	return f(ctx, update)
}

// Option customizes a Harness.
type Option func(*options)

type options struct {
	cfg     *config.Config
	handler Handler
	logger  *slog.Logger
	tracer  trace.TracerProvider
}

// WithConfig uses cfg instead of config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithHandler sets the bot's update handler.
func WithHandler(h Handler) Option {
	return func(o *options) { o.handler = h }
}

// WithLogger sets the logger shared by the server, transport and queue.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sends dispatch spans to tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// Harness is one simulated Bot API world.
type Harness struct {
	cfg       *config.Config
	server    *dispatcher.Server
	transport *transport.Transport
	queue     *scheduler.Scheduler
	timers    *cron.Service
	logger    *slog.Logger

	nextUpdateID atomic.Int64
	nextUserID   atomic.Int64
	nextChatID   atomic.Int64

	mu      sync.Mutex
	handler Handler
	bot     *telego.Bot
}

// New creates a harness. Without WithConfig the defaults are used.
func New(opts ...Option) (*Harness, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("botsim: %w", err)
	}

	server, err := dispatcher.New(cfg.Dispatcher(),
		dispatcher.WithLogger(o.logger),
		dispatcher.WithTracerProvider(o.tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("botsim: %w", err)
	}
	h := &Harness{
		cfg:     cfg,
		server:  server,
		logger:  o.logger,
		handler: o.handler,
	}
	h.transport = transport.New(server, transport.WithAPIHost(cfg.APIHost), transport.WithLogger(o.logger))
	h.queue = scheduler.New(cfg.Scheduler(), h.dispatch, o.logger)
	h.timers = cron.NewService(o.logger)
	h.resetCounters()
	return h, nil
}

func (h *Harness) resetCounters() {
	h.nextUpdateID.Store(0)
	h.nextUserID.Store(1000)
	h.nextChatID.Store(0)
}

// Config returns the harness configuration.
func (h *Harness) Config() *config.Config { return h.cfg }

// Server returns the simulated server. Its stores may be read and seeded directly.
func (h *Harness) Server() *dispatcher.Server { return h.server }

// Bot returns the simulated bot's user.
func (h *Harness) Bot() botapi.User { return h.server.Bot() }

// Token returns the bot token.
func (h *Harness) Token() string { return h.cfg.Bot.Token }

// Transport returns the interception round tripper.
func (h *Harness) Transport() *transport.Transport { return h.transport }

// HTTPClient returns a client whose API calls reach the simulator.
func (h *Harness) HTTPClient() *http.Client { return h.transport.Client() }

// Install redirects c's API calls to the simulator until the returned function runs.
func (h *Harness) Install(c *http.Client) (uninstall func()) { return h.transport.Install(c) }

// SetHandler replaces the update handler.
func (h *Harness) SetHandler(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Now returns the simulated time.
func (h *Harness) Now() time.Time { return h.server.Clock().Now() }

// Advance moves simulated time forward, firing due timers on the way. Use
// AdvanceTimers to inspect what the timers did.
func (h *Harness) Advance(d time.Duration) time.Time {
	if _, err := h.AdvanceTimers(context.Background(), d); err != nil {
		h.logger.Warn("advance stopped early", "error", err)
	}
	return h.Now()
}

// Call dispatches one API call directly. params may be Params, a map or a struct
// with json tags. The call is attributed to the response in ctx, if any.
func (h *Harness) Call(ctx context.Context, method string, params any) (any, error) {
	p, err := botapi.ParamsOf(params)
	if err != nil {
		return nil, botapi.InvalidArgument(err.Error())
	}
	return h.server.HandleAPICall(ctx, method, p)
}

// stamp assigns the next update id when update has none.
func (h *Harness) stamp(update botapi.Update) botapi.Update {
	if update.UpdateID == 0 {
		update.UpdateID = int(h.nextUpdateID.Add(1))
	}
	return update
}

func (h *Harness) dispatch(ctx context.Context, update botapi.Update) error {
	h.mu.Lock()
	handler := h.handler
	h.mu.Unlock()
	if handler == nil {
		return ErrNoHandler
	}
	return handler.HandleUpdate(ctx, update)
}

// Deliver runs the handler for update under a fresh BotResponse and returns it
// along with the handler's error.
func (h *Harness) Deliver(ctx context.Context, update botapi.Update) (*BotResponse, error) {
	update = h.stamp(update)
	resp := response.New(fmt.Sprintf("update %d", update.UpdateID))
	err := h.dispatch(response.WithResponse(ctx, resp), update)
	return resp, err
}

// deliverAll runs several updates that share one cause.
func (h *Harness) deliverAll(ctx context.Context, cause string, updates ...botapi.Update) (*BotResponse, error) {
	resp := response.New(cause)
	ctx = response.WithResponse(ctx, resp)
	for _, u := range updates {
		if err := h.dispatch(ctx, h.stamp(u)); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// Schedule queues update for concurrent processing. Each update still gets its
// own BotResponse, delivered on the returned channel.
func (h *Harness) Schedule(ctx context.Context, update botapi.Update) <-chan Outcome {
	return h.queue.Schedule(ctx, h.stamp(update))
}

// WaitForIdle blocks until every scheduled update has finished. Without a
// deadline on ctx the configured queue.wait_timeout applies.
func (h *Harness) WaitForIdle(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.WaitTimeout())
		defer cancel()
	}
	return h.queue.WaitForIdle(ctx)
}

// RunWithResponse runs fn, typically a worker or timer of the bot, with every API
// call it makes attributed to a fresh response named cause.
func (h *Harness) RunWithResponse(ctx context.Context, cause string, fn func(ctx context.Context) error) (*BotResponse, error) {
	resp := response.New(cause)
	err := fn(response.WithResponse(ctx, resp))
	return resp, err
}

// Unattributed returns the response collecting calls made outside any cause.
func (h *Harness) Unattributed() *BotResponse { return h.server.Unattributed() }

// Reset restores a pristine world: stores, clock, files, queue and id counters.
// The handler, timers and any telego bot stay attached; timers restart from
// the reset clock.
func (h *Harness) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WaitTimeout())
	defer cancel()
	if err := h.queue.WaitForIdle(ctx); err != nil {
		return fmt.Errorf("botsim: reset: %w", err)
	}
	h.server.Reset()
	h.queue.Reset()
	h.timers.Reschedule(h.Now())
	h.resetCounters()
	return nil
}

// Close waits for scheduled updates and stops the queue.
func (h *Harness) Close(ctx context.Context) error {
	return h.queue.Close(ctx)
}
