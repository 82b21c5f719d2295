package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8190 {
		t.Errorf("Expected default port 8190, got %d", config.Server.Port)
	}
	if config.Environment != "development" {
		t.Errorf("Expected development environment, got %s", config.Environment)
	}
	if len(config.Devices.Slots) == 0 {
		t.Error("Expected default slot inventory")
	}
	if !config.Devices.Simulator.Enabled {
		t.Error("Expected simulator enabled by default")
	}
	if config.IsProduction() {
		t.Error("Default config must not be production")
	}
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galvana.toml")
	content := `
environment = "production"

[server]
port = 9000

[devices.simulator]
enabled = true
time_scale = 0.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if config.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", config.Server.Port)
	}
	if !config.IsProduction() {
		t.Error("Expected production environment")
	}
	if config.Devices.Simulator.TimeScale != 0.5 {
		t.Errorf("Expected time_scale 0.5, got %v", config.Devices.Simulator.TimeScale)
	}
	// Untouched sections keep their defaults
	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host, got %s", config.Server.Host)
	}
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.toml")
	second := filepath.Join(dir, "second.toml")

	if err := os.WriteFile(first, []byte("[server]\nport = 9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.WriteFile(second, []byte("[server]\nport = 9100\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadFromFiles(first, second)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if config.Server.Port != 9100 {
		t.Errorf("Expected later file to win with 9100, got %d", config.Server.Port)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles("/nonexistent/galvana.toml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GALVANA_SERVER_PORT", "9999")
	t.Setenv("GALVANA_LOG_LEVEL", "debug")
	t.Setenv("GALVANA_SIM_TIME_SCALE", "0.01")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if config.Server.Port != 9999 {
		t.Errorf("Expected env port 9999, got %d", config.Server.Port)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", config.Logging.Level)
	}
	if config.Devices.Simulator.TimeScale != 0.01 {
		t.Errorf("Expected time_scale 0.01, got %v", config.Devices.Simulator.TimeScale)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9200, "0.0.0.0")
	if config.Server.Port != 9200 || config.Server.Host != "0.0.0.0" {
		t.Errorf("Expected flag overrides applied, got %s:%d", config.Server.Host, config.Server.Port)
	}

	// Zero values leave the config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 9200 || config.Server.Host != "0.0.0.0" {
		t.Errorf("Zero flags must not override, got %s:%d", config.Server.Host, config.Server.Port)
	}
}

func TestProgressThrottleInterval(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"1s", time.Second},
		{"250ms", 250 * time.Millisecond},
		{"", 0},
		{"not-a-duration", 0},
	}

	for _, tt := range tests {
		ws := WebSocketConfig{ProgressThrottle: tt.value}
		if got := ws.ProgressThrottleInterval(); got != tt.expected {
			t.Errorf("ProgressThrottleInterval(%q) = %v, expected %v", tt.value, got, tt.expected)
		}
	}
}
