package cron

import (
	"strings"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		if got := cfg.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestTruncateOutput_Short(t *testing.T) {
	s := "hello world"
	if TruncateOutput(s) != s {
		t.Errorf("short string should not be truncated")
	}
}

func TestTruncateOutput_ExactLimit(t *testing.T) {
	s := strings.Repeat("a", maxErrorBytes)
	if TruncateOutput(s) != s {
		t.Error("string at exact limit should not be truncated")
	}
}

func TestTruncateOutput_OverLimit(t *testing.T) {
	result := TruncateOutput(strings.Repeat("x", maxErrorBytes+100))
	if len(result) > maxErrorBytes+20 {
		t.Errorf("expected truncated output, got len %d", len(result))
	}
	if !strings.HasSuffix(result, "...[truncated]") {
		t.Error("expected ...[truncated] suffix")
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 2*time.Second {
		t.Errorf("expected 2s base, got %v", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("expected 30s max, got %v", cfg.MaxDelay)
	}
}
