package scenario

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newRunner() *Runner {
	return NewRunner(nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return sc
}

func TestRunModerationScenario(t *testing.T) {
	sc, err := Load("testdata/moderation.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		for _, s := range rep.Steps {
			if !s.Passed {
				t.Errorf("step %q failed: %s", s.Step, s.Failure)
			}
		}
		t.Fatalf("scenario failed: %s", rep.Error)
	}
	if got := len(rep.Steps); got != len(sc.Steps) {
		t.Errorf("steps run = %d, want %d", got, len(sc.Steps))
	}
	if rep.Steps[4].Error == nil || rep.Steps[4].Error.Code != 400 {
		t.Errorf("unknown chat error = %+v, want code 400", rep.Steps[4].Error)
	}
}

func TestFailedExpectationStopsScenario(t *testing.T) {
	sc := mustParse(t, `
users:
  - id: 42
steps:
  - call: sendMessage
    params: {chat_id: 42, text: hi}
    expect: result.text == "bye"
  - call: getMe
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed {
		t.Fatal("scenario passed, want failure")
	}
	if len(rep.Steps) != 1 || rep.Skipped != 1 {
		t.Errorf("steps = %d, skipped = %d, want 1 and 1", len(rep.Steps), rep.Skipped)
	}
	if !strings.Contains(rep.Steps[0].Failure, "expectation not met") {
		t.Errorf("failure = %q", rep.Steps[0].Failure)
	}
}

func TestSlowModeScenario(t *testing.T) {
	sc := mustParse(t, `
users:
  - id: 42
chats:
  - key: g
    type: supergroup
    title: Slow
    owner: 42
    slow_mode: 30
steps:
  - call: sendMessage
    params: {chat_id: "${chats.g.id}", text: one}
  - call: sendMessage
    params: {chat_id: "${chats.g.id}", text: two}
    expect_error: rate_limited
    expect: error.code == 429 && error.retry_after == 30
  - advance: 31s
  - call: sendMessage
    params: {chat_id: "${chats.g.id}", text: three}
    expect: ok
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Fatalf("report = %+v", rep.Steps)
	}
}

func TestMemberActionsRespectChatRules(t *testing.T) {
	sc := mustParse(t, `
bot:
  script: "function handle(u) {}"
users:
  - id: 42
  - id: 7
    key: dave
chats:
  - key: g
    type: supergroup
    title: Slow
    owner: 42
    slow_mode: 30
    members:
      - user: 7
steps:
  - action: send
    as: dave
    chat: g
    text: one
  - action: send
    as: dave
    chat: g
    text: two
    expect_error: rate_limited
    expect: error.retry_after == 30
  - advance: 30s
  - action: send
    as: dave
    chat: g
    text: three
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Fatalf("report = %s %+v", rep.Error, rep.Steps)
	}
}

func TestExpectErrorMismatch(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		failure string
	}{
		{"call succeeded", "call: getMe\n    expect_error: not_found", "step succeeded"},
		{"other kind", "call: sendMessage\n    params: {chat_id: 1}\n    expect_error: rate_limited", "got"},
		{"unexpected error", "call: noSuchMethod", "call failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustParse(t, "steps:\n  - "+tt.step+"\n")
			rep, err := newRunner().Run(context.Background(), sc)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if rep.Passed || !strings.Contains(rep.Steps[0].Failure, tt.failure) {
				t.Errorf("failure = %q, want mention of %q", rep.Steps[0].Failure, tt.failure)
			}
		})
	}
}

func TestConfigOverrides(t *testing.T) {
	sc := mustParse(t, `
config:
  bot:
    username: override_bot
steps:
  - call: getMe
    expect: result.username == "override_bot"
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Errorf("report = %+v", rep.Steps)
	}

	bad := mustParse(t, "config:\n  bot:\n    username: nope\nsteps:\n  - call: getMe\n")
	if _, err := newRunner().Run(context.Background(), bad); err == nil {
		t.Error("invalid override accepted")
	}
}

func TestSeedFailureIsReported(t *testing.T) {
	sc := mustParse(t, `
chats:
  - type: supergroup
    owner: 77
steps:
  - call: getMe
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed || rep.Error == "" || rep.Skipped != 1 {
		t.Errorf("report = %+v, want a setup error", rep)
	}
}

func TestBadExpressionIsAnError(t *testing.T) {
	sc := mustParse(t, "steps:\n  - call: getMe\n    expect: result.id ==\n")
	if _, err := newRunner().Run(context.Background(), sc); err == nil {
		t.Error("malformed expectation accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no action", "steps:\n  - name: empty\n", "needs call, advance or action"},
		{"both actions", "steps:\n  - call: getMe\n    advance: 1s\n", "exclusive"},
		{"unknown action", "steps:\n  - action: dance\n    as: \"1\"\n", "unknown action"},
		{"action without user", "steps:\n  - action: send\n    text: hi\n", "needs as"},
		{"send without text", "steps:\n  - action: send\n    as: \"1\"\n", "send needs text"},
		{"bot without source", "bot: {}\n", "exactly one of script or file"},
		{"timer without schedule", "bot:\n  script: x\n  timers:\n    - function: f\n", "exactly one of every, at or cron"},
		{"timer bad duration", "bot:\n  script: x\n  timers:\n    - function: f\n      every: -1m\n", "positive duration"},
		{"bad duration", "steps:\n  - advance: soon\n", "non-negative duration"},
		{"bad kind", "steps:\n  - call: getMe\n    expect_error: oops\n", "unknown error kind"},
		{"group without owner", "chats:\n  - type: group\n", "needs owner"},
		{"private without user", "chats:\n  - type: private\n", "needs user"},
		{"bad chat type", "chats:\n  - type: forum\n    owner: 1\n", "unknown type"},
		{"bad status", "chats:\n  - type: group\n    owner: 1\n    members:\n      - user: 2\n        status: vip\n", "unknown status"},
		{"duplicate key", "users:\n  - key: a\n  - key: a\n", "duplicate key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestRunAllKeepsOrder(t *testing.T) {
	var scs []*Scenario
	for _, name := range []string{"a", "b", "c"} {
		sc := mustParse(t, "name: "+name+"\nsteps:\n  - call: getMe\n")
		scs = append(scs, sc)
	}
	reps, err := NewRunner(nil, WithConcurrency(2), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).RunAll(context.Background(), scs)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	for i, rep := range reps {
		if rep.Scenario != scs[i].Name || !rep.Passed {
			t.Errorf("report %d = %s passed=%v, want %s passed", i, rep.Scenario, rep.Passed, scs[i].Name)
		}
	}
}

func TestExpandPlaceholders(t *testing.T) {
	e, err := newEvaluator()
	if err != nil {
		t.Fatalf("newEvaluator: %v", err)
	}
	vars := map[string]any{
		"ok": true, "result": nil, "error": map[string]any{}, "bot": map[string]any{},
		"users": map[string]any{"a": map[string]any{"id": int64(7), "first_name": "Ann"}},
		"chats": map[string]any{},
		"steps": map[string]any{},
		"now":   int64(100),
	}
	got, err := e.expand(map[string]any{
		"user_id": "${users.a.id}",
		"text":    "hi ${users.a.first_name} at ${now}",
		"list":    []any{"${now + 1}", 3},
		"plain":   "no placeholders",
	}, vars)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	m := got.(map[string]any)
	if m["user_id"] != int64(7) {
		t.Errorf("user_id = %#v, want int64 7", m["user_id"])
	}
	if m["text"] != "hi Ann at 100" {
		t.Errorf("text = %q", m["text"])
	}
	if l := m["list"].([]any); l[0] != int64(101) || l[1] != 3 {
		t.Errorf("list = %#v", l)
	}
	if m["plain"] != "no placeholders" {
		t.Errorf("plain = %q", m["plain"])
	}
}

func TestJavaScriptBotScenario(t *testing.T) {
	sc, err := Load("testdata/quiz.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Error != "" {
		t.Fatalf("setup: %s", rep.Error)
	}
	for _, s := range rep.Steps {
		if !s.Passed {
			t.Errorf("step %q failed: %s", s.Step, s.Failure)
		}
	}
	if !rep.Passed {
		t.FailNow()
	}
	first := rep.Steps[0]
	if first.Action != ActionCommand || first.Response == nil || first.Response.Cause == "" {
		t.Errorf("first step report = %+v", first)
	}
	last := rep.Steps[len(rep.Steps)-1]
	if len(last.Responses) != 1 || last.Responses[0].Cause != "timer daily digest" {
		t.Errorf("advance responses = %+v", last.Responses)
	}
}

func TestInlineScriptActions(t *testing.T) {
	sc := mustParse(t, `
bot:
  script: |
    function handle(u) {
      if (u.message && u.message.text === "/poll") {
        api("sendPoll", {chat_id: u.message.chat.id, question: "Tea?", options: ["yes", "no"], is_anonymous: false});
      } else if (u.poll_answer) {
        api("sendMessage", {chat_id: u.poll_answer.user.id, text: "voted " + u.poll_answer.option_ids[0]});
      } else if (u.inline_query) {
        api("answerInlineQuery", {inline_query_id: u.inline_query.id, results: [
          {type: "article", id: "1", title: u.inline_query.query, input_message_content: {message_text: "hi"}}
        ]});
      }
    }
users:
  - key: bob
steps:
  - action: command
    as: bob
    command: poll
    expect: response.calls == ["sendPoll"]
  - action: vote
    as: bob
    options: [1]
    expect: response.texts == ["voted 1"]
  - action: inline
    as: "${users.bob.id}"
    text: weather
    expect: response.calls == ["answerInlineQuery"]
  - action: send
    as: bob
    chat: "999"
    text: hi
    expect_error: not_found
`)
	rep, err := newRunner().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Fatalf("report = %s %+v", rep.Error, rep.Steps)
	}
}

func TestBotSetupFailures(t *testing.T) {
	tests := []struct {
		name, doc, errSub string
	}{
		{"script without handle", "bot:\n  script: \"function other() {}\"\n", "does not define handle"},
		{"missing timer function", "bot:\n  script: \"function handle(u) {}\"\n  timers:\n    - function: nope\n      every: 1m\n", "no function nope"},
		{"missing file", "bot:\n  file: /nonexistent/bot.js\n", "bot:"},
		{"bad cron", "bot:\n  script: \"function handle(u) {}\\nfunction f() {}\"\n  timers:\n    - function: f\n      cron: \"never\"\n", "invalid cron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := newRunner().Run(context.Background(), mustParse(t, tt.doc+"steps:\n  - call: getMe\n"))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if rep.Passed || !strings.Contains(rep.Error, tt.errSub) {
				t.Errorf("report error = %q, want it to mention %q", rep.Error, tt.errSub)
			}
			if rep.Skipped != 1 {
				t.Errorf("skipped = %d, want 1", rep.Skipped)
			}
		})
	}
}
