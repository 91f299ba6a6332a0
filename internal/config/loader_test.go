package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aeromon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  type: simulator\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("listen: got %q, want :8080", cfg.Server.Listen)
	}
	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("poll interval: got %v, want 5s", cfg.Monitor.PollInterval)
	}
	if cfg.Alerts.DeduplicationWindow != 5*time.Minute {
		t.Errorf("dedup window: got %v, want 5m", cfg.Alerts.DeduplicationWindow)
	}
	if cfg.Alerts.MaxActive != 100 {
		t.Errorf("max active: got %d, want 100", cfg.Alerts.MaxActive)
	}
	if cfg.Store.Retention != 7*24*time.Hour {
		t.Errorf("retention: got %v, want 168h", cfg.Store.Retention)
	}
	if _, ok := cfg.Alerts.Thresholds["temperature"]; !ok {
		t.Error("default thresholds not merged in")
	}
}

func TestLoadConfigThresholdOverrideKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  type: simulator
alerts:
  thresholds:
    temperature:
      min: 15
      max: 30
      unit: "°C"
      name: Temperature
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	temp := cfg.Alerts.Thresholds["temperature"]
	if temp.Max == nil || *temp.Max != 30 {
		t.Errorf("override not applied: %+v", temp)
	}
	if _, ok := cfg.Alerts.Thresholds["co2"]; !ok {
		t.Error("partial override dropped the co2 default")
	}
}

func TestLoadConfigWeatherRequiresAPIKeyEnv(t *testing.T) {
	path := writeConfig(t, "source:\n  type: weather\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for weather source without api_key_env")
	}
}

func TestLoadConfigRejectsUnknownSource(t *testing.T) {
	path := writeConfig(t, "source:\n  type: carrier-pigeon\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestLoadConfigRejectsBadChannelSeverity(t *testing.T) {
	path := writeConfig(t, `
source:
  type: simulator
alerts:
  channels:
    ops:
      url_env: OPS_WEBHOOK_URL
      severity_filter: [critical, bogus]
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown severity in filter")
	}
}

func TestLoadConfigRejectsInvertedThreshold(t *testing.T) {
	path := writeConfig(t, `
source:
  type: simulator
alerts:
  thresholds:
    humidity:
      min: 80
      max: 40
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for min >= max")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
