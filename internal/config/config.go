// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Lift LiftConfig `yaml:"lift"`
}

// ---- LIFT ----

type LiftConfig struct {
	Endpoint  string          `yaml:"endpoint"`
	ControlHz int             `yaml:"control_hz"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Travel    TravelConfig    `yaml:"travel"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ---- TIMEOUTS ----

type TimeoutConfig struct {
	DialMs  int `yaml:"dial_ms"`
	WriteMs int `yaml:"write_ms"`
	StaleMs int `yaml:"stale_ms"`
}

// ---- RECONNECT ----

type ReconnectConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// ---- TRAVEL ----

type TravelConfig struct {
	MinPosM       float64 `yaml:"min_pos_m"`
	MaxPosM       float64 `yaml:"max_pos_m"`
	PulsePerMeter int64   `yaml:"pulse_per_meter"`
}

// ---- METRICS ----

type MetricsConfig struct {
	// Listen is the Prometheus listen address (e.g. ":9090").
	// Empty disables the metrics endpoint.
	Listen string `yaml:"listen"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
