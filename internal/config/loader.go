package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aeromon/aeromon/internal/thresholds"
	"github.com/aeromon/aeromon/internal/types"
)

// LoadConfig loads and validates configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with working defaults
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = "simulator"
	}
	if cfg.Source.Weather.BaseURL == "" {
		cfg.Source.Weather.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if cfg.Source.Weather.CacheTTL == 0 {
		cfg.Source.Weather.CacheTTL = time.Minute
	}
	if cfg.Source.MQTT.ClientID == "" {
		cfg.Source.MQTT.ClientID = "aeromon"
	}
	if cfg.Store.Retention == 0 {
		cfg.Store.Retention = 7 * 24 * time.Hour
	}
	if cfg.Monitor.PollInterval == 0 {
		cfg.Monitor.PollInterval = 5 * time.Second
	}
	if cfg.Monitor.HistorySize == 0 {
		cfg.Monitor.HistorySize = 20
	}
	if cfg.Alerts.DeduplicationWindow == 0 {
		cfg.Alerts.DeduplicationWindow = 5 * time.Minute
	}
	if cfg.Alerts.MaxActive == 0 {
		cfg.Alerts.MaxActive = 100
	}
	if cfg.Location.City == "" {
		cfg.Location.City = "Unknown"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Merge custom thresholds over the defaults so partial overrides
	// keep the built-in table for every other metric.
	merged := thresholds.Defaults()
	for name, spec := range cfg.Alerts.Thresholds {
		merged[name] = spec
	}
	cfg.Alerts.Thresholds = merged
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	switch cfg.Source.Type {
	case "weather":
		if cfg.Source.Weather.APIKeyEnv == "" {
			return fmt.Errorf("source weather: api_key_env is required")
		}
	case "mqtt":
		if cfg.Source.MQTT.Broker == "" {
			return fmt.Errorf("source mqtt: broker is required")
		}
		if cfg.Source.MQTT.Topic == "" {
			return fmt.Errorf("source mqtt: topic is required")
		}
	case "simulator":
	default:
		return fmt.Errorf("source type must be 'weather', 'simulator', or 'mqtt', got %q", cfg.Source.Type)
	}

	if cfg.Monitor.PollInterval < time.Second {
		return fmt.Errorf("monitor poll_interval must be at least 1s")
	}
	if cfg.Monitor.HistorySize < 1 {
		return fmt.Errorf("monitor history_size must be positive")
	}
	if cfg.Store.Retention < time.Hour {
		return fmt.Errorf("store retention must be at least 1h")
	}

	for name, spec := range cfg.Alerts.Thresholds {
		if spec.Min != nil && spec.Max != nil && *spec.Min >= *spec.Max {
			return fmt.Errorf("threshold %s: min must be below max", name)
		}
	}

	for name, channel := range cfg.Alerts.Channels {
		if channel.URLEnv == "" {
			return fmt.Errorf("channel %s: url_env is required", name)
		}
		for _, sev := range channel.SeverityFilter {
			if !types.Severity(sev).Valid() {
				return fmt.Errorf("channel %s: unknown severity %q in filter", name, sev)
			}
		}
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be one of trace, debug, info, warn, error")
	}

	return nil
}

// AlertLocation converts the configured site into the alert location type.
func (c *Config) AlertLocation() *types.Location {
	return &types.Location{City: c.Location.City, Lat: c.Location.Lat, Lon: c.Location.Lon}
}
