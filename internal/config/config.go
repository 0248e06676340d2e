// Package config loads server settings from an optional YAML file with
// environment overrides. Defaults preserve the wire contract constants.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/p-arndt/werkbank/protocol"
)

type Config struct {
	MaxOutputBytes        int    `yaml:"max_output_bytes"`
	DefaultTimeoutSeconds int    `yaml:"default_timeout_seconds"`
	MaxTimeoutSeconds     int    `yaml:"max_timeout_seconds"`
	GracePeriodMs         int    `yaml:"grace_period_ms"`
	SocketMode            string `yaml:"socket_mode"` // octal, e.g. "0600"
	LogLevel              string `yaml:"log_level"`
}

// Load reads yamlPath (a missing file silently yields defaults) and then
// applies WERKBANK_* environment overrides.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		MaxOutputBytes:        protocol.MaxOutputBytes,
		DefaultTimeoutSeconds: int(protocol.DefaultExecTimeout / time.Second),
		MaxTimeoutSeconds:     600,
		GracePeriodMs:         int(protocol.GracePeriod / time.Millisecond),
		SocketMode:            "0600",
		LogLevel:              "info",
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if _, err := cfg.SocketFileMode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WERKBANK_MAX_OUTPUT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxOutputBytes = n
		}
	}
	if v := os.Getenv("WERKBANK_DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultTimeoutSeconds = n
		}
	}
	if v := os.Getenv("WERKBANK_MAX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTimeoutSeconds = n
		}
	}
	if v := os.Getenv("WERKBANK_GRACE_PERIOD_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GracePeriodMs = n
		}
	}
	if v := os.Getenv("WERKBANK_SOCKET_MODE"); v != "" {
		cfg.SocketMode = v
	}
	if v := os.Getenv("WERKBANK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutSeconds) * time.Second
}

func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMs) * time.Millisecond
}

// SocketFileMode parses the octal socket_mode string.
func (c *Config) SocketFileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(c.SocketMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid socket_mode %q: %w", c.SocketMode, err)
	}
	return os.FileMode(mode), nil
}

// Level maps log_level onto slog levels; unknown values mean info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
