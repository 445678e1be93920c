// Package config holds runtime settings for the admin server and its
// analytics engine. Settings come from defaults, an optional YAML file,
// and MSTY_ADMIN_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by FromEnv.
const (
	EnvHost          = "MSTY_ADMIN_HOST"
	EnvInferencePort = "MSTY_ADMIN_INFERENCE_PORT"
	EnvProxyPort     = "MSTY_ADMIN_PROXY_PORT"
	EnvTimeoutSec    = "MSTY_ADMIN_TIMEOUT_SECONDS"
	EnvDataDir       = "MSTY_ADMIN_DATA_DIR"
)

// Settings controls the admin server, the sidecar client, and the
// analytics thresholds. All fields have working defaults; nothing here is
// required for the server to start.
type Settings struct {
	// Sidecar connection. InferencePort and ProxyPort are distinct ports on
	// the same host: inference serves the Ollama-compatible API, the proxy
	// fronts remote providers.
	Host          string        `yaml:"host"`
	InferencePort int           `yaml:"inference_port"`
	ProxyPort     int           `yaml:"proxy_port"`
	Timeout       time.Duration `yaml:"-"`
	TimeoutSec    int           `yaml:"timeout_seconds"`

	// DataDir is where the metrics database lives. It is deliberately
	// separate from the administered application's own data directory.
	DataDir string `yaml:"data_dir"`

	// Quality evaluation.
	PassThreshold    float64 `yaml:"pass_threshold"`
	MaxResponseBytes int     `yaml:"max_response_bytes"`

	// Handoff trigger detection.
	HandoffFailureRate float64 `yaml:"handoff_failure_rate"`
	HandoffWindow      int     `yaml:"handoff_window"`
	HandoffMinSamples  int     `yaml:"handoff_min_samples"`

	// Trend analysis.
	TrendMinSamples int `yaml:"trend_min_samples"`
}

// Default returns the baseline settings documented in the README.
func Default() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		Host:               "127.0.0.1",
		InferencePort:      11434,
		ProxyPort:          11437,
		Timeout:            10 * time.Second,
		TimeoutSec:         10,
		DataDir:            filepath.Join(home, ".msty-admin"),
		PassThreshold:      0.6,
		MaxResponseBytes:   16384,
		HandoffFailureRate: 0.4,
		HandoffWindow:      20,
		HandoffMinSamples:  5,
		TrendMinSamples:    5,
	}
}

// Load builds settings from defaults, then the YAML file at path (if path is
// non-empty), then the environment.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config: %w", err)
		}
		if s.TimeoutSec > 0 {
			s.Timeout = time.Duration(s.TimeoutSec) * time.Second
		}
	}
	s.FromEnv()
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// FromEnv overlays MSTY_ADMIN_* environment variables onto s. Unset or
// malformed values leave the current value in place.
func (s *Settings) FromEnv() {
	if v := os.Getenv(EnvHost); v != "" {
		s.Host = v
	}
	if n, ok := envInt(EnvInferencePort); ok {
		s.InferencePort = n
	}
	if n, ok := envInt(EnvProxyPort); ok {
		s.ProxyPort = n
	}
	if n, ok := envInt(EnvTimeoutSec); ok {
		s.TimeoutSec = n
		s.Timeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		s.DataDir = v
	}
}

// Validate checks ranges that would otherwise fail in confusing places later.
func (s *Settings) Validate() error {
	if s.InferencePort == s.ProxyPort {
		return fmt.Errorf("inference_port and proxy_port must be distinct, both are %d", s.InferencePort)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %v", s.Timeout)
	}
	if s.PassThreshold < 0 || s.PassThreshold > 1 {
		return fmt.Errorf("pass_threshold must be in [0,1], got %v", s.PassThreshold)
	}
	if s.HandoffFailureRate < 0 || s.HandoffFailureRate > 1 {
		return fmt.Errorf("handoff_failure_rate must be in [0,1], got %v", s.HandoffFailureRate)
	}
	if s.HandoffWindow < 1 {
		return fmt.Errorf("handoff_window must be at least 1, got %d", s.HandoffWindow)
	}
	return nil
}

// InferenceURL returns the base URL of the local inference service.
func (s *Settings) InferenceURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.InferencePort)
}

// MetricsPath returns the path of the metrics database file.
func (s *Settings) MetricsPath() string {
	return filepath.Join(s.DataDir, "metrics.db")
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
