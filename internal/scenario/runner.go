package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/botsim/internal/config"
	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
	"github.com/nextlevelbuilder/botsim/pkg/botsim"
)

// Report is the outcome of one scenario.
type Report struct {
	Scenario string       `json:"scenario"`
	Passed   bool         `json:"passed"`
	Steps    []StepReport `json:"steps"`
	Skipped  int          `json:"skipped,omitempty"`
	Error    string       `json:"error,omitempty"` // setup failure
	Duration string       `json:"duration"`
}

// StepReport is the outcome of one step.
type StepReport struct {
	Step      string             `json:"step"`
	Call      string             `json:"call,omitempty"`
	Action    string             `json:"action,omitempty"`
	OK        bool               `json:"ok"`
	Passed    bool               `json:"passed"`
	Result    any                `json:"result,omitempty"`
	Response  *response.Summary  `json:"response,omitempty"`
	Responses []response.Summary `json:"responses,omitempty"`
	Error     *ErrorInfo         `json:"error,omitempty"`
	Failure   string             `json:"failure,omitempty"`
}

// ErrorInfo is the API error of a failed call.
type ErrorInfo struct {
	Kind            string `json:"kind"`
	Code            int    `json:"code"`
	Description     string `json:"description"`
	RetryAfter      int    `json:"retry_after,omitempty"`
	MigrateToChatID int64  `json:"migrate_to_chat_id,omitempty"`
}

func (e *ErrorInfo) vars() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	return map[string]any{
		"kind":               e.Kind,
		"code":               int64(e.Code),
		"description":        e.Description,
		"retry_after":        int64(e.RetryAfter),
		"migrate_to_chat_id": e.MigrateToChatID,
	}
}

// Runner executes scenarios, each in its own harness built from the base config.
type Runner struct {
	base        *config.Config
	logger      *slog.Logger
	tracer      trace.TracerProvider
	concurrency int
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger passed to every harness.
func WithLogger(l *slog.Logger) RunnerOption { return func(r *Runner) { r.logger = l } }

// WithTracerProvider sends every harness's dispatch spans to tp.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(r *Runner) { r.tracer = tp }
}

// WithConcurrency bounds how many scenarios RunAll runs at once.
func WithConcurrency(n int) RunnerOption { return func(r *Runner) { r.concurrency = n } }

// NewRunner creates a runner. A nil base uses config.Default().
func NewRunner(base *config.Config, opts ...RunnerOption) *Runner {
	if base == nil {
		base = config.Default()
	}
	r := &Runner{base: base, logger: slog.Default(), concurrency: 4}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll runs scenarios concurrently and returns their reports in order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Report, error) {
	reports := make([]*Report, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.concurrency, 1))
	for i, sc := range scenarios {
		g.Go(func() error {
			rep, err := r.Run(ctx, sc)
			if err != nil {
				return fmt.Errorf("%s: %w", sc.Name, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// run is the state of one scenario execution.
type run struct {
	h     *botsim.Harness
	eval  *evaluator
	users map[string]any
	chats map[string]any
	steps map[string]any
	saved map[string]botapi.Message // step results that are messages, by save name
	last  *botapi.Message
}

// Run executes sc in a fresh world. Failed expectations are reported, not
// returned; the error is reserved for problems running the scenario at all.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	start := time.Now()
	rep := &Report{Scenario: sc.Name}
	defer func() { rep.Duration = time.Since(start).String() }()

	cfg, err := r.configFor(sc)
	if err != nil {
		return nil, err
	}
	eval, err := newEvaluator()
	if err != nil {
		return nil, err
	}
	for i, st := range sc.Steps {
		if st.Expect == "" {
			continue
		}
		if _, err := eval.program(st.Expect); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	h, err := botsim.New(botsim.WithConfig(cfg), botsim.WithLogger(r.logger), botsim.WithTracerProvider(r.tracer))
	if err != nil {
		return nil, err
	}
	defer h.Close(context.WithoutCancel(ctx))

	st := &run{
		h:     h,
		eval:  eval,
		users: map[string]any{},
		chats: map[string]any{},
		steps: map[string]any{},
		saved: map[string]botapi.Message{},
	}
	if err := st.setup(sc, r.logger); err != nil {
		rep.Error = err.Error()
		rep.Skipped = len(sc.Steps)
		return rep, nil
	}

	rep.Passed = true
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := st.step(ctx, i, step)
		rep.Steps = append(rep.Steps, sr)
		if !sr.Passed {
			rep.Passed = false
			rep.Skipped = len(sc.Steps) - i - 1
			r.logger.Info("scenario step failed", "scenario", sc.Name, "step", sr.Step, "failure", sr.Failure)
			break
		}
	}
	return rep, nil
}

// configFor applies the scenario's config overrides to a copy of the base.
func (r *Runner) configFor(sc *Scenario) (*config.Config, error) {
	cfg := *r.base
	if sc.Config.Kind != 0 {
		if err := sc.Config.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config overrides: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config overrides: %w", err)
	}
	return &cfg, nil
}

func (st *run) vars() map[string]any {
	bot, _ := toJSONValue(st.h.Bot())
	last := map[string]any{}
	if st.last != nil {
		if v, err := toJSONValue(*st.last); err == nil {
			last = v.(map[string]any)
		}
	}
	return map[string]any{
		"ok":        true,
		"result":    nil,
		"error":     map[string]any{},
		"steps":     st.steps,
		"users":     st.users,
		"chats":     st.chats,
		"bot":       bot,
		"now":       st.h.Now().Unix(),
		"response":  map[string]any{},
		"responses": []any{},
		"last":      last,
	}
}

func (st *run) step(ctx context.Context, i int, step Step) StepReport {
	sr := StepReport{Step: step.Label(i), Call: step.Call, Action: step.Action}
	vars := st.vars()
	var err error
	switch {
	case step.Advance != "":
		err = st.advance(ctx, step, &sr, vars)
	case step.Action != "":
		err = st.action(ctx, step, &sr, vars)
	default:
		err = st.call(ctx, step, &sr, vars)
	}
	if err != nil {
		sr.Passed = false
		sr.Failure = err.Error()
		return sr
	}
	if err := st.verify(step, &sr, vars); err != nil {
		sr.Passed = false
		sr.Failure = err.Error()
		return sr
	}
	sr.Passed = true
	return sr
}

func (st *run) advance(ctx context.Context, step Step, sr *StepReport, vars map[string]any) error {
	d, _ := time.ParseDuration(step.Advance)
	fired, err := st.h.AdvanceTimers(ctx, d)
	if err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	list := make([]any, 0, len(fired))
	for _, f := range fired {
		sum := f.Response.Summary()
		if f.Err != nil && sum.Error == "" {
			sum.Error = f.Err.Error()
		}
		sr.Responses = append(sr.Responses, sum)
		list = append(list, summaryVars(sum))
		st.noteResponse(f.Response)
	}
	sr.OK = true
	vars["responses"] = list
	return nil
}

func (st *run) call(ctx context.Context, step Step, sr *StepReport, vars map[string]any) error {
	params, err := st.eval.expand(step.Params, vars)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	res, callErr := st.h.Call(ctx, step.Call, params)
	result, err := toJSONValue(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	sr.Result = result
	sr.OK = callErr == nil
	sr.Error = errorInfo(callErr)
	if sr.OK {
		if msg, ok := asMessage(res); ok {
			st.last = &msg
			if step.Save != "" {
				st.saved[step.Save] = msg
			}
		}
		if step.Save != "" {
			st.steps[step.Save] = result
		}
	}
	vars["result"] = result
	return nil
}

// verify applies expect_error and expect to a finished step.
func (st *run) verify(step Step, sr *StepReport, vars map[string]any) error {
	switch {
	case step.ExpectError != "" && sr.OK:
		return fmt.Errorf("expected %s error, step succeeded", step.ExpectError)
	case step.ExpectError != "" && sr.Error.Kind != step.ExpectError:
		return fmt.Errorf("expected %s error, got %s: %s", step.ExpectError, sr.Error.Kind, sr.Error.Description)
	case step.ExpectError == "" && step.Expect == "" && !sr.OK:
		return fmt.Errorf("%s failed: %s", stepKind(step), sr.Error.Description)
	}
	if step.Expect == "" {
		return nil
	}
	vars["ok"] = sr.OK
	vars["error"] = sr.Error.vars()
	passed, err := st.eval.check(step.Expect, vars)
	if err != nil {
		return err
	}
	if !passed {
		return fmt.Errorf("expectation not met: %s", step.Expect)
	}
	return nil
}

func stepKind(step Step) string {
	if step.Action != "" {
		return step.Action
	}
	return "call"
}

// errorInfo describes a failed call or action; nil for success. Errors that
// are not API errors are classified by what the harness refused.
func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	e, ok := botapi.AsError(err)
	if !ok {
		e = botapi.NewError(harnessKind(err), 0, err.Error())
	}
	return &ErrorInfo{
		Kind:            string(e.Kind),
		Code:            e.Code,
		Description:     e.Description,
		RetryAfter:      e.RetryAfter,
		MigrateToChatID: e.MigrateToChatID,
	}
}

func asMessage(v any) (botapi.Message, bool) {
	switch m := v.(type) {
	case botapi.Message:
		return m, m.MessageID != 0
	case *botapi.Message:
		if m != nil && m.MessageID != 0 {
			return *m, true
		}
	}
	return botapi.Message{}, false
}

// seed creates the scenario's users and chats.
func (st *run) seed(sc *Scenario) error {
	h := st.h
	for _, u := range sc.Users {
		created := h.CreateUser(botapi.User{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Username:     u.Username,
			LanguageCode: u.LanguageCode,
			IsPremium:    u.IsPremium,
		})
		if u.Key != "" {
			v, _ := toJSONValue(created)
			st.users[u.Key] = v
		}
	}
	for i, c := range sc.Chats {
		chat, err := st.seedChat(c)
		if err != nil {
			return fmt.Errorf("chats[%d]: %w", i, err)
		}
		if c.Key != "" {
			v, _ := toJSONValue(chat)
			st.chats[c.Key] = v
		}
	}
	return nil
}

func (st *run) seedChat(c Chat) (botapi.Chat, error) {
	h := st.h
	if c.Type == botapi.ChatTypePrivate {
		chat, err := h.CreatePrivateChat(c.User)
		return chat.Chat, err
	}

	var opts []botsim.GroupOption
	if c.ID != 0 {
		opts = append(opts, botsim.WithChatID(c.ID))
	}
	if c.Username != "" {
		opts = append(opts, botsim.WithUsername(c.Username))
	}
	if c.Forum {
		opts = append(opts, botsim.AsForum())
	}
	chat, err := h.CreateGroup(c.Type, c.Title, c.Owner, opts...)
	if err != nil {
		return botapi.Chat{}, err
	}
	if c.Forum {
		if chat, err = h.EnableForum(chat.ID); err != nil {
			return botapi.Chat{}, err
		}
	}
	if c.SlowMode > 0 {
		if _, err := h.SetSlowMode(chat.ID, c.SlowMode); err != nil {
			return botapi.Chat{}, err
		}
	}
	if c.Permissions != nil {
		var perms botapi.ChatPermissions
		if err := convert(c.Permissions, &perms); err != nil {
			return botapi.Chat{}, fmt.Errorf("permissions: %w", err)
		}
		if _, err := h.Server().Chats.SetPermissions(chat.ID, perms); err != nil {
			return botapi.Chat{}, err
		}
	}
	for j, m := range c.Members {
		if err := st.seedMember(chat.ID, m); err != nil {
			return botapi.Chat{}, fmt.Errorf("members[%d]: %w", j, err)
		}
	}
	return chat.Chat, nil
}

func (st *run) seedMember(chatID int64, m Member) error {
	h := st.h
	members := h.Server().Members
	userID := m.User
	if m.Bot {
		userID = h.Bot().ID
	} else if err := h.AddMember(chatID, userID); err != nil {
		return err
	}
	switch m.Status {
	case "", botapi.StatusMember:
		members.SetMember(chatID, userID)
	case botapi.StatusCreator:
		members.SetOwner(chatID, userID)
	case botapi.StatusAdministrator:
		var rights botapi.ChatAdministratorRights
		if err := convert(m.Rights, &rights); err != nil {
			return fmt.Errorf("rights: %w", err)
		}
		return h.PromoteUser(chatID, userID, rights)
	case botapi.StatusRestricted:
		var perms botapi.ChatPermissions
		if err := convert(m.Permissions, &perms); err != nil {
			return fmt.Errorf("permissions: %w", err)
		}
		return h.RestrictUser(chatID, userID, perms, m.Until)
	case botapi.StatusLeft:
		_, err := members.Leave(chatID, userID)
		return err
	case botapi.StatusKicked:
		_, err := members.Ban(chatID, userID, m.Until)
		return err
	}
	return nil
}

// convert maps YAML flags onto an API struct through its JSON field names.
func convert(flags map[string]bool, out any) error {
	if flags == nil {
		return nil
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
