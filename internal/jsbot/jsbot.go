// Package jsbot runs a bot written in JavaScript inside the simulator. The
// script defines handle(update) and may define functions run by timers; it talks
// to the Bot API through a global api(method, params) function.
package jsbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// HandlerName is the function every script must define.
const HandlerName = "handle"

// Caller performs Bot API calls on behalf of the script.
type Caller interface {
	Call(ctx context.Context, method string, params any) (any, error)
}

// Bot is a compiled script. A goja runtime is single-threaded, so updates and
// timer functions run one at a time.
type Bot struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	handle goja.Callable
	caller Caller
	logger *slog.Logger
	ctx    context.Context // of the running update, guarded by mu
}

// New compiles script. name is used in stack traces.
func New(name, script string, caller Caller, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		vm:     goja.New(),
		caller: caller,
		logger: logger.With("script", name),
		ctx:    context.Background(),
	}
	b.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := b.vm.Set("api", b.api); err != nil {
		return nil, err
	}
	if err := b.vm.Set("log", b.log); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(name, script, true)
	if err != nil {
		return nil, fmt.Errorf("jsbot: compile %s: %w", name, err)
	}
	if _, err := b.vm.RunProgram(prog); err != nil {
		return nil, fmt.Errorf("jsbot: load %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(b.vm.Get(HandlerName))
	if !ok {
		return nil, fmt.Errorf("jsbot: %s does not define %s(update)", name, HandlerName)
	}
	b.handle = fn
	return b, nil
}

// HandleUpdate passes update to the script's handle function.
func (b *Bot) HandleUpdate(ctx context.Context, update botapi.Update) error {
	arg, err := plain(update)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.run(ctx, b.handle, b.vm.ToValue(arg))
}

// Invoke runs the global function name with no arguments, typically from a timer.
func (b *Bot) Invoke(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn, ok := goja.AssertFunction(b.vm.Get(name))
	if !ok {
		return fmt.Errorf("jsbot: %s is not a function", name)
	}
	return b.run(ctx, fn)
}

// HasFunction reports whether the script defines a global function name.
func (b *Bot) HasFunction(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := goja.AssertFunction(b.vm.Get(name))
	return ok
}

// run calls fn with mu held. A cancelled ctx interrupts the script.
func (b *Bot) run(ctx context.Context, fn goja.Callable, args ...goja.Value) error {
	b.ctx = ctx
	stop := context.AfterFunc(ctx, func() { b.vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		b.vm.ClearInterrupt()
		b.ctx = context.Background()
	}()

	_, err := fn(goja.Undefined(), args...)
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("jsbot: interrupted: %w", ctx.Err())
	}
	return fmt.Errorf("jsbot: %w", err)
}

// api is the script's view of the Bot API. Results come back as plain JSON
// values; failures are thrown as errors carrying kind, code and description.
func (b *Bot) api(call goja.FunctionCall) goja.Value {
	method := call.Argument(0).String()
	var params any
	if p := call.Argument(1); !goja.IsUndefined(p) && !goja.IsNull(p) {
		params = p.Export()
	}
	res, err := b.caller.Call(b.ctx, method, params)
	if err != nil {
		obj := b.vm.NewGoError(err)
		if apiErr, ok := botapi.AsError(err); ok {
			obj.Set("kind", string(apiErr.Kind))
			obj.Set("code", apiErr.Code)
			obj.Set("description", apiErr.Description)
			if apiErr.RetryAfter > 0 {
				obj.Set("retry_after", apiErr.RetryAfter)
			}
		}
		panic(obj)
	}
	v, err := plain(res)
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return b.vm.ToValue(v)
}

func (b *Bot) log(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}
	b.logger.Info(strings.Join(parts, " "))
	return goja.Undefined()
}

// plain converts v to the maps, slices and numbers JSON decoding produces, so
// the script sees wire field names.
func plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsbot: encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("jsbot: decode: %w", err)
	}
	return out, nil
}
