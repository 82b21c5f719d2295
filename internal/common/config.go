package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
	Devices     DevicesConfig     `toml:"devices"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for the run history store
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// DevicesConfig describes the slot pool. Slots may be declared inline or
// loaded from per-device TOML files in Dir (files override inline entries).
type DevicesConfig struct {
	Dir       string       `toml:"dir"`       // Directory containing device inventory files (TOML)
	Slots     []SlotConfig `toml:"slots"`     // Inline slot inventory
	Simulator SimConfig    `toml:"simulator"` // Simulated device executor settings
}

// SlotConfig is one hardware measurement channel in the static inventory
type SlotConfig struct {
	ID           string `toml:"id"`            // Stable caller-visible label, e.g. "slot01"
	Port         string `toml:"port"`          // Opaque hardware locator, e.g. "/dev/ttyUSB0"
	SerialNumber string `toml:"serial_number"` // Optional device serial
}

// SimConfig configures the simulated device executor used in development
type SimConfig struct {
	Enabled   bool    `toml:"enabled"`    // Use the simulator instead of real hardware
	TimeScale float64 `toml:"time_scale"` // Wall-clock multiplier for planned durations (1.0 = real time)
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel string `toml:"min_level"` // Minimum log level to broadcast
	// Throttle interval for high-frequency run_progress events (duration string, e.g. "1s").
	// Empty disables throttling.
	ProgressThrottle string `toml:"progress_throttle"`
}

// MaintenanceConfig drives the background maintenance scheduler
type MaintenanceConfig struct {
	Enabled         bool   `toml:"enabled"`
	GCSchedule      string `toml:"gc_schedule"`      // Cron schedule for Badger value-log GC (default: "@every 10m")
	StatusSchedule  string `toml:"status_schedule"`  // Cron schedule for engine status log line (default: "@every 1m")
	HistoryRetained int    `toml:"history_retained"` // Max run history records kept; 0 = unlimited
}

// NewDefaultConfig returns configuration defaults suitable for local development
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/galvana",
				ResetOnStartup: false,
			},
		},
		Devices: DevicesConfig{
			Dir: "",
			Slots: []SlotConfig{
				{ID: "slot01", Port: "sim://0"},
				{ID: "slot02", Port: "sim://1"},
			},
			Simulator: SimConfig{
				Enabled:   true,
				TimeScale: 1.0,
			},
		},
		WebSocket: WebSocketConfig{
			MinLevel:         "info",
			ProgressThrottle: "1s",
		},
		Maintenance: MaintenanceConfig{
			Enabled:        true,
			GCSchedule:     "@every 10m",
			StatusSchedule: "@every 1m",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GALVANA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("GALVANA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("GALVANA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("GALVANA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("GALVANA_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("GALVANA_BADGER_RESET"); reset != "" {
		if b, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = b
		}
	}

	if dir := os.Getenv("GALVANA_DEVICES_DIR"); dir != "" {
		config.Devices.Dir = dir
	}
	if scale := os.Getenv("GALVANA_SIM_TIME_SCALE"); scale != "" {
		if f, err := strconv.ParseFloat(scale, 64); err == nil && f > 0 {
			config.Devices.Simulator.TimeScale = f
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ProgressThrottleInterval parses the configured progress throttle duration.
// Returns zero when throttling is disabled or the value is malformed.
func (c *WebSocketConfig) ProgressThrottleInterval() time.Duration {
	if c.ProgressThrottle == "" {
		return 0
	}
	d, err := time.ParseDuration(c.ProgressThrottle)
	if err != nil {
		return 0
	}
	return d
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
