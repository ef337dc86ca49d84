package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestMetricsCountCalls(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mustCall(t, s, ctx, botapi.MethodGetMe, nil)
	mustCall(t, s, ctx, botapi.MethodGetMe, nil)
	_, _ = s.HandleAPICall(ctx, botapi.MethodSendMessage, botapi.Params{"chat_id": 999, "text": "x"})
	_, _ = s.HandleAPICall(ctx, "noSuchMethod", nil)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"getMe ok", testutil.ToFloat64(s.stats.calls.WithLabelValues(botapi.MethodGetMe, outcomeOK)), 2},
		{"sendMessage error", testutil.ToFloat64(s.stats.calls.WithLabelValues(botapi.MethodSendMessage, outcomeError)), 1},
		{"unsupported folded", testutil.ToFloat64(s.stats.calls.WithLabelValues("unsupported", outcomeError)), 1},
		{"not found kind", testutil.ToFloat64(s.stats.errors.WithLabelValues(string(botapi.KindNotFound))), 1},
		{"unsupported kind", testutil.ToFloat64(s.stats.errors.WithLabelValues(string(botapi.KindUnsupported))), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n, err := testutil.GatherAndCount(s.Metrics(), "botsim_api_calls_total"); err != nil || n != 3 {
		t.Errorf("series = %d, %v; want 3", n, err)
	}
}

func TestTracingSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := New(Config{Bot: botapi.User{ID: testBotID, FirstName: "Test"}},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTracerProvider(tp),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	mustCall(t, s, ctx, botapi.MethodGetMe, nil)
	_, _ = s.HandleAPICall(ctx, botapi.MethodGetChat, botapi.Params{"chat_id": 999})

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if got := spans[0].Name(); got != "botsim.getMe" {
		t.Errorf("span name = %q, want botsim.getMe", got)
	}
	if got := spans[0].Status().Code; got != codes.Ok {
		t.Errorf("getMe status = %v, want Ok", got)
	}
	failed := spans[1]
	if got := failed.Status().Code; got != codes.Error {
		t.Errorf("getChat status = %v, want Error", got)
	}
	var code int64
	for _, kv := range failed.Attributes() {
		if kv.Key == attribute.Key("botsim.error_code") {
			code = kv.Value.AsInt64()
		}
	}
	if code != 400 {
		t.Errorf("botsim.error_code = %d, want 400", code)
	}
	if len(failed.Events()) == 0 {
		t.Error("error was not recorded on the span")
	}
}
