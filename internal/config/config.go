// Package config resolves bridge settings from defaults, an optional YAML
// file and SPEECHBRIDGE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultModel                = "small"
	DefaultTimeout              = 60 * time.Second
	DefaultPartialInterval      = 2 * time.Second
	DefaultLogLevel             = "info"
	DefaultSilenceThresholdDBFS = -65.0
)

type Config struct {
	// WhisperPath overrides discovery of the whisper-cli executable.
	WhisperPath string `yaml:"whisper_path"`
	// Model is a registry name such as "small" or a path to a ggml file.
	Model    string `yaml:"model"`
	ModelDir string `yaml:"model_dir"`
	// Locale is used when a caller passes no locale. Empty means auto-detect.
	Locale string `yaml:"locale"`
	// Timeout bounds one-shot transcription when the caller passes none.
	Timeout time.Duration `yaml:"timeout"`
	// PartialInterval of zero disables partial results.
	PartialInterval      time.Duration `yaml:"partial_interval"`
	LogLevel             string        `yaml:"log_level"`
	LogJSON              bool          `yaml:"log_json"`
	LogFile              string        `yaml:"log_file"`
	SilenceGate          bool          `yaml:"silence_gate"`
	SilenceThresholdDBFS float64       `yaml:"silence_threshold_dbfs"`
}

func Default() Config {
	return Config{
		Model:                DefaultModel,
		Timeout:              DefaultTimeout,
		PartialInterval:      DefaultPartialInterval,
		LogLevel:             DefaultLogLevel,
		SilenceThresholdDBFS: DefaultSilenceThresholdDBFS,
	}
}

// Validate applies defaults to empty fields and rejects out-of-range values.
func (c *Config) Validate() error {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PartialInterval < 0 {
		return fmt.Errorf("config: partial_interval must be >= 0, got %s", c.PartialInterval)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.SilenceThresholdDBFS > 0 {
		return fmt.Errorf("config: silence_threshold_dbfs must be <= 0, got %g", c.SilenceThresholdDBFS)
	}
	return nil
}
