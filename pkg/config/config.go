// Package config provides explicit configuration for the
// automation system. A single Config is constructed at startup
// and passed into the registry and orchestrator; there is no
// global mutable configuration state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the challenge system.
type Config struct {
	// AutomationSpeed scales delays inside automation steps,
	// 0.1 (slow) to 3.0 (fast).
	AutomationSpeed float64 `yaml:"automation_speed"`

	// StepDelay is the pause inserted between automation
	// actions inside a step.
	StepDelay time.Duration `yaml:"step_delay"`

	// InterChallengeDelay is the pause between consecutive
	// challenges in sequence mode.
	InterChallengeDelay time.Duration `yaml:"inter_challenge_delay"`

	// StopJoinTimeout bounds how long Stop waits for the
	// worker to exit before transitioning Idle optimistically.
	StopJoinTimeout time.Duration `yaml:"stop_join_timeout"`

	// MaxRetries is the retry budget automation collaborators
	// may use inside a step.
	MaxRetries int `yaml:"max_retries"`

	// EventRetention is the event bus replay buffer size.
	EventRetention int `yaml:"event_retention"`

	// LogCapacity is the execution log capacity.
	LogCapacity int `yaml:"log_capacity"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// LogPath is the JSON log file path. Empty disables file
	// logging.
	LogPath string `yaml:"log_path"`

	// MonitorAddr is the listen address of the monitoring
	// server (empty disables it).
	MonitorAddr string `yaml:"monitor_addr"`
}

// Default returns the configuration used when no file or
// environment overrides are present.
func Default() *Config {
	return &Config{
		AutomationSpeed:     1.0,
		StepDelay:           500 * time.Millisecond,
		InterChallengeDelay: 2 * time.Second,
		StopJoinTimeout:     10 * time.Second,
		MaxRetries:          3,
		EventRetention:      100,
		LogCapacity:         1000,
		MonitorAddr:         "127.0.0.1:8750",
	}
}

// Load reads a YAML config file, falling back to defaults for
// unset fields, then applies environment overrides. A missing
// file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf(
					"read config %s: %w", path, err,
				)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf(
				"parse config %s: %w", path, err,
			)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenv loads a .env file into the process environment so
// subsequent Load calls pick the values up. A missing file is
// ignored.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from AUTOMATION_* environment
// variables. Malformed values are ignored in favour of the
// existing setting.
func (c *Config) applyEnv() {
	if v := os.Getenv("AUTOMATION_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AutomationSpeed = f
		}
	}
	if v := os.Getenv("AUTOMATION_STEP_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.StepDelay = d
		}
	}
	if v := os.Getenv("AUTOMATION_CHALLENGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InterChallengeDelay = d
		}
	}
	if v := os.Getenv("AUTOMATION_STOP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.StopJoinTimeout = d
		}
	}
	if v := os.Getenv("AUTOMATION_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("AUTOMATION_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Verbose = b
		}
	}
	if v := os.Getenv("AUTOMATION_LOG_PATH"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("AUTOMATION_MONITOR_ADDR"); v != "" {
		c.MonitorAddr = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AutomationSpeed < 0.1 || c.AutomationSpeed > 3.0 {
		return fmt.Errorf(
			"automation_speed must be in [0.1, 3.0], got %g",
			c.AutomationSpeed,
		)
	}
	if c.StopJoinTimeout <= 0 {
		return fmt.Errorf(
			"stop_join_timeout must be positive, got %s",
			c.StopJoinTimeout,
		)
	}
	if c.EventRetention <= 0 {
		return fmt.Errorf(
			"event_retention must be positive, got %d",
			c.EventRetention,
		)
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf(
			"log_capacity must be positive, got %d",
			c.LogCapacity,
		)
	}
	return nil
}
