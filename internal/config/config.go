// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and SCOREBOT_* environment variables on top.
// - Errors returned from this package wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"time"

	"github.com/okian/scorebot/internal/domain/roster"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// AppName is reported by /healthz.
	AppName string `koanf:"app_name" validate:"required"`

	// BotToken authenticates Bot API calls and forms the webhook path.
	BotToken string `koanf:"bot_token" validate:"required"`

	// PublicURL and RenderExternalURL are candidate base URLs for /set_webhook,
	// tried in that order before request headers.
	PublicURL         string `koanf:"public_url" validate:"omitempty,url"`
	RenderExternalURL string `koanf:"render_external_url" validate:"omitempty,url"`

	// TelegramAPIURL is the Bot API host.
	TelegramAPIURL string `koanf:"telegram_api_url" validate:"required,url"`

	// RequestTimeoutMS bounds each Bot API call.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gt=0"`

	// QueueSize bounds the outbound reply queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of reply delivery workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// SendAttempts and SendBackoffMS control reply retries.
	SendAttempts  int `koanf:"send_attempts" validate:"gte=1"`
	SendBackoffMS int `koanf:"send_backoff_ms" validate:"gte=0"`

	// DedupeSize sets how many update ids are remembered; 0 means unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// ShardCount configures the number of shards in the score store.
	ShardCount int `koanf:"shard_count" validate:"gt=0"`

	// Players overrides the built-in roster. Only settable from the file.
	Players []roster.Player `koanf:"players" validate:"omitempty,dive"`

	// OTelEndpoint enables OTLP/gRPC trace export when set.
	OTelEndpoint   string `koanf:"otel_endpoint"`
	ServiceVersion string `koanf:"service_version"`
}

// New creates a Config with defaults. BotToken has no default.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8080",
		AppName:          "ScoreBot",
		TelegramAPIURL:   "https://api.telegram.org",
		RequestTimeoutMS: 15_000,
		QueueSize:        1024,
		WorkerCount:      4,
		SendAttempts:     3,
		SendBackoffMS:    500,
		DedupeSize:       10_000,
		ShardCount:       16,
		ServiceVersion:   "dev",
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// SendBackoff returns SendBackoffMS as a duration.
func (c *Config) SendBackoff() time.Duration {
	return time.Duration(c.SendBackoffMS) * time.Millisecond
}

// Roster builds the configured roster, falling back to the built-in players.
func (c *Config) Roster() (*roster.Roster, error) {
	players := c.Players
	if len(players) == 0 {
		players = roster.DefaultPlayers()
	}
	return roster.New(players...)
}
