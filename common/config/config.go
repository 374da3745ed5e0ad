// Package config loads the alarm console configuration document.
//
// The document is JSON (esconfig.json) and carries at minimum the store connection URL
// ("elasticsearch", optionally embedding basic-auth credentials) and the dashboard base URL
// ("kibana"). Environment variables prefixed with CONSOLE_ override any key, with dots
// replaced by underscores (CONSOLE_POLLER_INTERVAL=5s).
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultFileName is the well-known name of the configuration document.
	DefaultFileName = "esconfig.json"
	// DefaultConfigDir is used when ALARM_CONSOLE_CONFIG_DIR is unset.
	DefaultConfigDir = "/etc/alarm-console"
	// DefaultRetryInterval is how long LoadWithRetry waits between attempts.
	DefaultRetryInterval = 10 * time.Second

	envPrefix = "CONSOLE"
)

// Config is the full console configuration.
type Config struct {
	Elasticsearch string `mapstructure:"elasticsearch"`
	Kibana        string `mapstructure:"kibana"`

	// Statuses and Tags are the values an operator may assign. Empty disables the change.
	Statuses []string `mapstructure:"statuses"`
	Tags     []string `mapstructure:"tags"`

	Indices    IndicesConfig    `mapstructure:"indices"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Detail     DetailConfig     `mapstructure:"detail"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`

	ConfigRetryInterval time.Duration `mapstructure:"config_retry_interval"`
}

// IndicesConfig names the store indices. The event index for a given alarm-event
// index is derived by the store from these two patterns.
type IndicesConfig struct {
	Alarms      string `mapstructure:"alarms"`
	AlarmEvents string `mapstructure:"alarm_events"`
	Events      string `mapstructure:"events"`
}

// OpenSearchConfig holds transport settings for the store client.
type OpenSearchConfig struct {
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PollerConfig drives the alarm list synchronizer.
type PollerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	PageSize        int           `mapstructure:"page_size"`
	MaxVisiblePages int           `mapstructure:"max_visible_pages"`
}

// DetailConfig drives the alarm detail loader.
type DetailConfig struct {
	// SettleDelay is the pause after a status/tag write before re-reading the alarm.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// AlertsConfig drives the alert surface.
type AlertsConfig struct {
	TransientTTL time.Duration `mapstructure:"transient_ttl"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NATSConfig configures alarm change notifications.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig configures the correlated-event count cache.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	Enabled  bool          `mapstructure:"enabled"`
	CountTTL time.Duration `mapstructure:"count_ttl"`
}

// DatabaseConfig configures the operator audit trail.
type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// ConfigLoadError reports a missing, unreadable or invalid configuration document.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// ErrMissingElasticsearch is wrapped by ConfigLoadError when the store URL is absent.
var ErrMissingElasticsearch = errors.New("elasticsearch URL is required")

// ErrMissingKibana is wrapped by ConfigLoadError when the dashboard URL is absent.
var ErrMissingKibana = errors.New("kibana URL is required")

// Path resolves the configuration file location. An explicit path wins, then
// $ALARM_CONSOLE_CONFIG_DIR/esconfig.json, then DefaultConfigDir.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir := os.Getenv("ALARM_CONSOLE_CONFIG_DIR")
	if dir == "" {
		dir = DefaultConfigDir
	}
	return filepath.Join(dir, DefaultFileName)
}

// Load reads and validates the configuration document at path.
// Every failure is returned as *ConfigLoadError.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to read config: %w", err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	return &cfg, nil
}

// LoadWithRetry keeps calling Load every interval until it succeeds or ctx ends.
// onRetry, when set, is told about each failure before the wait starts.
func LoadWithRetry(ctx context.Context, path string, interval time.Duration, onRetry func(err error, wait time.Duration)) (*Config, error) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	for {
		cfg, err := Load(path)
		if err == nil {
			return cfg, nil
		}
		if onRetry != nil {
			onRetry(err, interval)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("gave up loading config: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// Validate checks the fields the console cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Elasticsearch) == "" {
		return ErrMissingElasticsearch
	}
	u, err := url.Parse(c.Elasticsearch)
	if err != nil {
		return fmt.Errorf("invalid elasticsearch URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid elasticsearch URL %q: scheme must be http or https", u.Redacted())
	}
	if strings.TrimSpace(c.Kibana) == "" {
		return ErrMissingKibana
	}
	if c.Poller.PageSize <= 0 {
		return fmt.Errorf("poller.page_size must be positive, got %d", c.Poller.PageSize)
	}
	return nil
}

// ReadTimeoutDuration returns the read timeout, defaulting to 15s when unset.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	if s.ReadTimeout == 0 {
		return 15 * time.Second
	}
	return s.ReadTimeout
}

func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	if s.WriteTimeout == 0 {
		return 15 * time.Second
	}
	return s.WriteTimeout
}

func (s ServerConfig) IdleTimeoutDuration() time.Duration {
	if s.IdleTimeout == 0 {
		return 60 * time.Second
	}
	return s.IdleTimeout
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("elasticsearch", "")
	v.SetDefault("kibana", "")
	v.SetDefault("statuses", []string{})
	v.SetDefault("tags", []string{})

	v.SetDefault("indices.alarms", "siem_alarms")
	v.SetDefault("indices.alarm_events", "siem_alarm_events-*")
	v.SetDefault("indices.events", "siem_events-*")

	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.timeout", "30s")

	v.SetDefault("poller.interval", "10s")
	v.SetDefault("poller.page_size", 20)
	v.SetDefault("poller.max_visible_pages", 5)

	v.SetDefault("detail.settle_delay", "1s")
	v.SetDefault("alerts.transient_ttl", "5s")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.count_ttl", "5s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.enabled", false)

	v.SetDefault("config_retry_interval", "10s")
}
