// Package config loads eventsync settings from a YAML file and EVENTSYNC_
// environment variables through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chitechevents/eventsync/internal/scraper"
)

// EnvPrefix prefixes every environment variable, e.g. EVENTSYNC_CACHE_TTL.
const EnvPrefix = "EVENTSYNC"

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config stores all configuration for the application.
type Config struct {
	Timezone       string        `mapstructure:"timezone"`
	Workers        int           `mapstructure:"workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SourceDelay    time.Duration `mapstructure:"source_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	LogLevel       string        `mapstructure:"log_level"`

	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Publish PublishConfig `mapstructure:"publish"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`

	// RenderSources are fetched through headless Chrome.
	RenderSources []string          `mapstructure:"render_sources"`
	Overrides     scraper.Overrides `mapstructure:"overrides"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // memory, redis or none
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"` // file or postgres
	DataDir     string `mapstructure:"data_dir"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type PublishConfig struct {
	ICSDir         string        `mapstructure:"ics_dir"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	ProbeImages    bool          `mapstructure:"probe_images"`
}

type NotifyConfig struct {
	WebhookURL       string `mapstructure:"webhook_url"`
	Heading          string `mapstructure:"heading"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "America/Chicago")
	v.SetDefault("workers", 4)
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("source_delay", "1500ms")
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("log_level", "info")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "72h")
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.data_dir", "~/.local/share/eventsync")
	v.SetDefault("store.postgres_url", "")

	v.SetDefault("publish.ics_dir", "")
	v.SetDefault("publish.webhook_url", "")
	v.SetDefault("publish.max_retries", 5)
	v.SetDefault("publish.initial_backoff", "1s")
	v.SetDefault("publish.max_backoff", "60s")
	v.SetDefault("publish.probe_images", false)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.heading", "Chicago Tech Events")
	v.SetDefault("notify.telegram_bot_token", "")
	v.SetDefault("notify.telegram_chat_id", "")

	v.SetDefault("server.port", 8080)

	v.SetDefault("render_sources", []string{})
	v.SetDefault("overrides", map[string]interface{}{})
}

// Load reads configuration from path, or from .eventsync.yaml in the home
// or working directory when path is empty, then applies environment
// variables. A missing default file is not an error; a missing explicit
// one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".eventsync")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend %q (want memory, redis or none)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case "file":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want file or postgres)", c.Store.Backend)
	}
	if (c.Notify.TelegramBotToken == "") != (c.Notify.TelegramChatID == "") {
		return fmt.Errorf("notify.telegram_bot_token and notify.telegram_chat_id must be set together")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
