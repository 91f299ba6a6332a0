package config

import (
	"time"

	"github.com/aeromon/aeromon/internal/thresholds"
)

// Config represents the complete aeromon configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Store    StoreConfig    `yaml:"store"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Location LocationConfig `yaml:"location"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// SourceConfig selects and configures the reading source
type SourceConfig struct {
	Type    string        `yaml:"type"` // "weather", "simulator", or "mqtt"
	Weather WeatherConfig `yaml:"weather,omitempty"`
	MQTT    MQTTConfig    `yaml:"mqtt,omitempty"`
}

// WeatherConfig configures the upstream weather API poller
type WeatherConfig struct {
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKeyEnv string        `yaml:"api_key_env"`
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`
}

// MQTTConfig configures the MQTT sensor feed
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id,omitempty"`
	Topic       string `yaml:"topic"`
	Username    string `yaml:"username,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// StoreConfig contains durable storage settings
type StoreConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention,omitempty"`
}

// MonitorConfig contains the polling loop settings
type MonitorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	HistorySize  int           `yaml:"history_size,omitempty"`
}

// AlertConfig defines alert behavior and notification routing
type AlertConfig struct {
	DeduplicationWindow time.Duration            `yaml:"deduplication_window,omitempty"`
	MaxActive           int                      `yaml:"max_active,omitempty"`
	Thresholds          thresholds.Table         `yaml:"thresholds,omitempty"`
	Channels            map[string]ChannelConfig `yaml:"channels,omitempty"`
}

// ChannelConfig defines a webhook notification channel
type ChannelConfig struct {
	URLEnv         string   `yaml:"url_env"`
	SeverityFilter []string `yaml:"severity_filter,omitempty"`
}

// LocationConfig identifies the monitored site
type LocationConfig struct {
	City string  `yaml:"city,omitempty"`
	Lat  float64 `yaml:"lat,omitempty"`
	Lon  float64 `yaml:"lon,omitempty"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // trace, debug, info, warn, error
	Pretty bool   `yaml:"pretty,omitempty"` // console writer instead of JSON
}
