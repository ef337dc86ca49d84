// Package dispatcher is the simulated Bot API server: it interprets a method call
// against the entity stores, enforces the platform's rules, mutates state and
// records every side effect on the active BotResponse.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Config describes the simulated bot and server.
type Config struct {
	Bot          botapi.User
	Token        string
	StartTime    int64
	RateLimits   store.RateLimits
	FileCapacity int
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider sets where dispatch spans are sent. The global provider is
// used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// openQuery is a callback or inline query delivered to the bot and not yet answered.
type openQuery struct {
	userID   int64
	answered bool
}

// webhook is the registered webhook, if any.
type webhook struct {
	info   botapi.WebhookInfo
	secret string
}

// Server owns the entity stores and dispatches API calls against them. Calls are
// serialized: each one runs to completion before the next starts, so two causes
// can only interleave between calls, never inside one.
type Server struct {
	mu sync.Mutex

	cfg    Config
	clock  *clock.Sim
	router *MethodRouter
	logger *slog.Logger
	tracer trace.Tracer
	stats  *metrics

	Chats    *store.ChatState
	Members  *store.MemberState
	Polls    *store.PollState
	Payments *store.PaymentState
	Passport *store.PassportState
	Files    *store.FileState

	stateMu      sync.Mutex
	unattributed *response.BotResponse
	commands     map[string][]botapi.BotCommand
	webhook      webhook
	blocked      map[int64]bool
	callbacks    map[string]*openQuery
	inline       map[string]*openQuery
}

// New creates a server for the bot described by cfg.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Bot.ID == 0 {
		return nil, fmt.Errorf("dispatcher: bot id is required")
	}
	cfg.Bot.IsBot = true
	if cfg.StartTime == 0 {
		cfg.StartTime = clock.DefaultStart
	}
	clk := clock.NewSim(cfg.StartTime)
	files, err := store.NewFileState(cfg.FileCapacity)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		clock:    clk,
		logger:   slog.Default(),
		tracer:   defaultTracer(),
		stats:    newMetrics(),
		Chats:    store.NewChatState(clk, cfg.RateLimits),
		Members:  store.NewMemberState(clk),
		Polls:    store.NewPollState(clk),
		Payments: store.NewPaymentState(clk),
		Passport: store.NewPassportState(),
		Files:    files,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = NewMethodRouter(s.logger)
	s.registerMethods()
	s.resetState()
	return s, nil
}

func (s *Server) resetState() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.unattributed = response.New("unattributed")
	s.commands = make(map[string][]botapi.BotCommand)
	s.webhook = webhook{}
	s.blocked = make(map[int64]bool)
	s.callbacks = make(map[string]*openQuery)
	s.inline = make(map[string]*openQuery)
	s.Members.PutUser(s.cfg.Bot)
}

// Bot returns the simulated bot's user.
func (s *Server) Bot() botapi.User { return s.cfg.Bot }

// Token returns the bot token the server answers to.
func (s *Server) Token() string { return s.cfg.Token }

// Clock returns the simulated clock shared by every store.
func (s *Server) Clock() *clock.Sim { return s.clock }

// Metrics returns the server's private metrics registry.
func (s *Server) Metrics() *prometheus.Registry { return s.stats.registry }

// Methods lists every supported method.
func (s *Server) Methods() []string { return s.router.Methods() }

// Supports reports whether method is implemented.
func (s *Server) Supports(method string) bool { return s.router.Supports(method) }

// Unattributed returns the response that collects calls made outside any cause.
func (s *Server) Unattributed() *response.BotResponse {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.unattributed
}

// Reset drops all state: stores, clock, files, commands, webhook and open queries.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Reset()
	s.Chats.Reset()
	s.Members.Reset()
	s.Polls.Reset()
	s.Payments.Reset()
	s.Passport.Reset()
	s.Files.Reset()
	s.resetState()
	s.logger.Debug("server reset")
}

// HandleAPICall dispatches one method call. The result is a platform-shaped value
// ready for JSON encoding; failures are *botapi.Error. The call is recorded on the
// response found in ctx, or on the unattributed response when there is none.
func (s *Server) HandleAPICall(ctx context.Context, method string, params botapi.Params) (any, error) {
	if params == nil {
		params = botapi.Params{}
	}
	resp := response.FromContext(ctx)
	if resp == nil {
		resp = s.Unattributed()
	}
	ctx, span := s.startSpan(ctx, method)
	call := &Call{Method: method, Params: params, Response: resp}

	s.mu.Lock()
	result, err := s.router.Handle(ctx, call)
	at := s.clock.Now()
	s.mu.Unlock()

	resp.RecordCall(response.APICall{Method: method, Params: params, Result: result, Err: err, At: at})
	label := method
	if !s.router.Supports(method) {
		label = "unsupported"
	}
	s.stats.observe(label, err)
	endSpan(span, err)
	if err != nil {
		s.logger.Debug("api call failed", "method", method, "error", err)
		return nil, err
	}
	s.logger.Debug("api call", "method", method)
	return result, nil
}

// Advance moves simulated time forward.
func (s *Server) Advance(d time.Duration) time.Time {
	return s.clock.Advance(d)
}

// --- Out-of-band state used by the harness ---

// OpenCallbackQuery registers a callback query id the bot may answer once.
func (s *Server) OpenCallbackQuery(id string, userID int64) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.callbacks[id] = &openQuery{userID: userID}
}

// OpenInlineQuery registers an inline query id the bot may answer once.
func (s *Server) OpenInlineQuery(id string, userID int64) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.inline[id] = &openQuery{userID: userID}
}

// SetBlocked marks whether userID has blocked the bot.
func (s *Server) SetBlocked(userID int64, blocked bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if blocked {
		s.blocked[userID] = true
		return
	}
	delete(s.blocked, userID)
}

func (s *Server) isBlocked(userID int64) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.blocked[userID]
}

// WebhookInfo returns the registered webhook and its secret token.
func (s *Server) WebhookInfo() (botapi.WebhookInfo, string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.webhook.info, s.webhook.secret
}

// Commands returns the command list registered for the default scope.
func (s *Server) Commands() []botapi.BotCommand {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return append([]botapi.BotCommand(nil), s.commands[defaultScopeKey]...)
}
