// Package config holds the simulator configuration: the simulated bot, the
// intercepted API host, rate ceilings, the file registry and the update queue.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/internal/dispatcher"
	"github.com/nextlevelbuilder/botsim/internal/scheduler"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/internal/transport"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "BOTSIM_CONFIG"

// DefaultToken is the token of the default simulated bot.
const DefaultToken = "1000000001:AAbotsimDefaultTokenForTestsOnly000"

var tokenRe = regexp.MustCompile(`^\d+:[\w-]{35}$`)

// Config is the root configuration.
type Config struct {
	Bot       BotConfig       `json:"bot" yaml:"bot"`
	APIHost   string          `json:"api_host,omitempty" yaml:"api_host,omitempty"`
	StartTime int64           `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Files     FilesConfig     `json:"files" yaml:"files"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	LogLevel  string          `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// BotConfig describes the simulated bot account.
type BotConfig struct {
	Token                   string `json:"token" yaml:"token"`
	ID                      int64  `json:"id,omitempty" yaml:"id,omitempty"` // derived from the token when 0
	Username                string `json:"username,omitempty" yaml:"username,omitempty"`
	FirstName               string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	CanJoinGroups           bool   `json:"can_join_groups" yaml:"can_join_groups"`
	CanReadAllGroupMessages bool   `json:"can_read_all_group_messages" yaml:"can_read_all_group_messages"`
	SupportsInlineQueries   bool   `json:"supports_inline_queries" yaml:"supports_inline_queries"`
}

// RateLimitConfig mirrors the platform's flood ceilings.
type RateLimitConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	PerSecond      int  `json:"per_second" yaml:"per_second"`
	GroupPerMinute int  `json:"group_per_minute" yaml:"group_per_minute"`
}

// TelemetryConfig configures OTLP export of dispatch spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// FilesConfig sizes the file registry behind getFile.
type FilesConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// QueueConfig configures concurrent update processing.
type QueueConfig struct {
	Concurrency      int    `json:"concurrency" yaml:"concurrency"`
	SerializePerChat bool   `json:"serialize_per_chat" yaml:"serialize_per_chat"`
	WaitTimeout      string `json:"wait_timeout,omitempty" yaml:"wait_timeout,omitempty"` // Go duration, e.g. "5s"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Token:         DefaultToken,
			Username:      "botsim_bot",
			FirstName:     "Botsim",
			CanJoinGroups: true,
		},
		APIHost:   transport.DefaultAPIHost,
		StartTime: clock.DefaultStart,
		RateLimit: RateLimitConfig{Enabled: true, PerSecond: 30, GroupPerMinute: 20},
		Files:     FilesConfig{Capacity: store.DefaultFileCapacity},
		Queue:     QueueConfig{Concurrency: 8, WaitTimeout: "5s"},
		LogLevel:  "info",
	}
}

// Load reads a JSON5 config file over the defaults and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePath returns the config path from the flag value or BOTSIM_CONFIG.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// Validate checks the configuration and fills derived fields.
func (c *Config) Validate() error {
	var errs []error
	c.Bot.Token = strings.TrimSpace(c.Bot.Token)
	if !tokenRe.MatchString(c.Bot.Token) {
		errs = append(errs, fmt.Errorf("bot.token must look like <digits>:<35 characters>"))
	} else if id := tokenBotID(c.Bot.Token); c.Bot.ID == 0 {
		c.Bot.ID = id
	} else if c.Bot.ID != id {
		errs = append(errs, fmt.Errorf("bot.id %d does not match token id %d", c.Bot.ID, id))
	}
	c.Bot.Username = NormalizeUsername(c.Bot.Username)
	if c.Bot.Username != "" && !ValidBotUsername(c.Bot.Username) {
		errs = append(errs, fmt.Errorf("bot.username %q must be 5-32 characters and end in \"bot\"", c.Bot.Username))
	}
	if c.Bot.FirstName == "" {
		c.Bot.FirstName = "Bot"
	}
	if c.APIHost == "" {
		c.APIHost = transport.DefaultAPIHost
	}
	if c.StartTime < 0 {
		errs = append(errs, fmt.Errorf("start_time must not be negative"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.GroupPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit values must not be negative"))
	}
	if c.Files.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("files.capacity must be positive"))
	}
	if c.Queue.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("queue.concurrency must be positive"))
	}
	if _, err := c.waitTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol %q must be grpc or http", c.Telemetry.Protocol))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, fmt.Errorf("telemetry.endpoint is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

func tokenBotID(token string) int64 {
	head, _, _ := strings.Cut(token, ":")
	id, _ := strconv.ParseInt(head, 10, 64)
	return id
}

func (c *Config) waitTimeout() (time.Duration, error) {
	if c.Queue.WaitTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Queue.WaitTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("queue.wait_timeout %q is not a positive duration", c.Queue.WaitTimeout)
	}
	return d, nil
}

// WaitTimeout is how long WaitForIdle may block by default.
func (c *Config) WaitTimeout() time.Duration {
	d, err := c.waitTimeout()
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// BotUser is the getMe view of the configured bot.
func (c *Config) BotUser() botapi.User {
	return botapi.User{
		ID:                      c.Bot.ID,
		IsBot:                   true,
		FirstName:               c.Bot.FirstName,
		Username:                c.Bot.Username,
		CanJoinGroups:           c.Bot.CanJoinGroups,
		CanReadAllGroupMessages: c.Bot.CanReadAllGroupMessages,
		SupportsInlineQueries:   c.Bot.SupportsInlineQueries,
	}
}

// Dispatcher returns the server configuration.
func (c *Config) Dispatcher() dispatcher.Config {
	return dispatcher.Config{
		Bot:       c.BotUser(),
		Token:     c.Bot.Token,
		StartTime: c.StartTime,
		RateLimits: store.RateLimits{
			Enabled:        c.RateLimit.Enabled,
			PerSecond:      c.RateLimit.PerSecond,
			GroupPerMinute: c.RateLimit.GroupPerMinute,
		},
		FileCapacity: c.Files.Capacity,
	}
}

// Scheduler returns the update queue configuration.
func (c *Config) Scheduler() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Concurrency = c.Queue.Concurrency
	cfg.SerializePerChat = c.Queue.SerializePerChat
	return cfg
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
