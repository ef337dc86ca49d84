package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Bot.ID != 1000000001 {
		t.Errorf("bot id = %d, want 1000000001 derived from the token", cfg.Bot.ID)
	}
	if got := cfg.Dispatcher().Bot; !got.IsBot || got.Username != "botsim_bot" {
		t.Errorf("dispatcher bot = %+v", got)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := writeFile(t, "botsim.json5", `{
  // comments and trailing commas are fine
  bot: {
    token: "12345:`+strings.Repeat("x", 35)+`",
    username: "@shop_bot",
  },
  rate_limit: { enabled: false },
  queue: { concurrency: 2, serialize_per_chat: true, wait_timeout: "250ms" },
  log_level: "debug",
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.ID != 12345 {
		t.Errorf("bot id = %d, want 12345", cfg.Bot.ID)
	}
	if cfg.Bot.Username != "shop_bot" {
		t.Errorf("username = %q, want shop_bot", cfg.Bot.Username)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limit still enabled")
	}
	if cfg.RateLimit.PerSecond != 30 {
		t.Errorf("per_second = %d, want default 30 kept", cfg.RateLimit.PerSecond)
	}
	if cfg.Files.Capacity != 1000 {
		t.Errorf("files.capacity = %d, want default 1000", cfg.Files.Capacity)
	}
	if got := cfg.WaitTimeout(); got != 250*time.Millisecond {
		t.Errorf("wait timeout = %v, want 250ms", got)
	}
	if s := cfg.Scheduler(); s.Concurrency != 2 || !s.SerializePerChat {
		t.Errorf("scheduler = %+v", s)
	}
	if l, _ := ParseLevel(cfg.LogLevel); l != slog.LevelDebug {
		t.Errorf("level = %v, want debug", l)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json5")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := Load(writeFile(t, "bad.json5", "{bot:")); err == nil {
		t.Error("malformed file accepted")
	}
}

func TestValidate(t *testing.T) {
	token := "77:" + strings.Repeat("a", 35)
	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{"short token", func(c *Config) { c.Bot.Token = "77:short" }, "bot.token"},
		{"id mismatch", func(c *Config) { c.Bot.Token = token; c.Bot.ID = 78 }, "does not match"},
		{"username without bot suffix", func(c *Config) { c.Bot.Username = "helper" }, "bot.username"},
		{"zero capacity", func(c *Config) { c.Files.Capacity = 0 }, "files.capacity"},
		{"zero concurrency", func(c *Config) { c.Queue.Concurrency = 0 }, "queue.concurrency"},
		{"bad timeout", func(c *Config) { c.Queue.WaitTimeout = "soon" }, "wait_timeout"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad telemetry protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, "telemetry.endpoint"},
		{"valid", func(c *Config) { c.Bot.Token = token; c.Bot.ID = 77 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.errSub)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/botsim.json5")
	if got := ResolvePath("local.json5"); got != "local.json5" {
		t.Errorf("flag path = %q, want local.json5", got)
	}
	if got := ResolvePath(""); got != "/etc/botsim.json5" {
		t.Errorf("env path = %q, want /etc/botsim.json5", got)
	}
}

func TestBotUsernames(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"@Shop_Bot", true},
		{"  tester_bot ", true},
		{"abot", false},
		{"1stbot", false},
		{"helper", false},
		{"my-bot", false},
	}
	for _, tt := range tests {
		name := NormalizeUsername(tt.in)
		if got := ValidBotUsername(name); got != tt.valid {
			t.Errorf("ValidBotUsername(%q) = %v, want %v", name, got, tt.valid)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeFile(t, "botsim.json5", `{log_level: "info"}`)
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.SetDebounce(10 * time.Millisecond)
	changed := make(chan *Config, 4)
	w.OnChange(func(cfg *Config) { changed <- cfg })
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{log_level: "warn"}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case cfg := <-changed:
		if cfg.LogLevel != "warn" {
			t.Errorf("reloaded level = %q, want warn", cfg.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after the file changed")
	}
}
