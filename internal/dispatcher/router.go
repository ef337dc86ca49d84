package dispatcher

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Call is one API call being dispatched.
type Call struct {
	Method   string
	Params   botapi.Params
	Response *response.BotResponse
}

// MethodHandler processes a single Bot API method call.
type MethodHandler func(ctx context.Context, call *Call) (any, error)

// MethodRouter maps method names to handlers. Names match case-insensitively,
// as on the platform.
type MethodRouter struct {
	handlers map[string]MethodHandler
	names    map[string]string
	logger   *slog.Logger
}

func NewMethodRouter(logger *slog.Logger) *MethodRouter {
	return &MethodRouter{
		handlers: make(map[string]MethodHandler),
		names:    make(map[string]string),
		logger:   logger,
	}
}

// Register adds a method handler.
func (r *MethodRouter) Register(method string, handler MethodHandler) {
	key := strings.ToLower(method)
	r.handlers[key] = handler
	r.names[key] = method
}

// Supports reports whether a handler is registered for method.
func (r *MethodRouter) Supports(method string) bool {
	_, ok := r.handlers[strings.ToLower(method)]
	return ok
}

// Handle dispatches a call to the appropriate handler.
func (r *MethodRouter) Handle(ctx context.Context, call *Call) (any, error) {
	handler, ok := r.handlers[strings.ToLower(call.Method)]
	if !ok {
		r.logger.Warn("unknown method", "method", call.Method)
		return nil, botapi.Unsupported()
	}
	r.logger.Debug("handling method", "method", call.Method, "response", call.Response.ID())
	return handler(ctx, call)
}

// Methods lists the registered method names in alphabetical order.
func (r *MethodRouter) Methods() []string {
	out := make([]string, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
