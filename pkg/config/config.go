package config

import "time"

// Config holds runtime configuration for the signal funnel bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot     BotConfig     `mapstructure:"bot" validate:"required"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
	Store   StoreConfig   `mapstructure:"store"`
	Partner PartnerConfig `mapstructure:"partner" validate:"required"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Session SessionConfig `mapstructure:"session"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// AdminIDs receive operator alerts and may open the admin panel.
	AdminIDs []int64 `mapstructure:"admin_ids" validate:"min=1"`
	// ChannelUsername is the public channel users must be subscribed to
	// before receiving signals, e.g. "@mychannel". Empty disables the check.
	ChannelUsername string        `mapstructure:"channel_username"`
	LongPollTimeout time.Duration `mapstructure:"long_poll_timeout"`
}

// ServerConfig configures the auxiliary HTTP server (health, metrics).
type ServerConfig struct {
	HTTPPort string `mapstructure:"http_port"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

// StoreConfig configures the persisted document.
type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// PartnerConfig configures the broker partner API.
type PartnerConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// BypassUIDs pass verification without calling the broker.
	BypassUIDs []string `mapstructure:"bypass_uids"`
}

// MonitorConfig configures the session freshness monitor.
type MonitorConfig struct {
	StartupDelay      time.Duration `mapstructure:"startup_delay"`
	Interval          time.Duration `mapstructure:"interval"`
	ExpiryWarningDays int           `mapstructure:"expiry_warning_days" validate:"omitempty,min=1"`
}

// SessionConfig configures funnel session retention.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}
