package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/speechbridge/internal/platform"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfig          = "SPEECHBRIDGE_CONFIG"
	EnvWhisperPath     = "SPEECHBRIDGE_WHISPER_PATH"
	EnvModel           = "SPEECHBRIDGE_MODEL"
	EnvModelDir        = "SPEECHBRIDGE_MODEL_DIR"
	EnvLocale          = "SPEECHBRIDGE_LOCALE"
	EnvTimeout         = "SPEECHBRIDGE_TIMEOUT"
	EnvPartialInterval = "SPEECHBRIDGE_PARTIAL_INTERVAL"
	EnvLogLevel        = "SPEECHBRIDGE_LOG_LEVEL"
	EnvLogJSON         = "SPEECHBRIDGE_LOG_JSON"
	EnvLogFile         = "SPEECHBRIDGE_LOG_FILE"
	EnvSilenceGate     = "SPEECHBRIDGE_SILENCE_GATE"
)

// Loader loads configuration. Tests override Lookup and DefaultFile to
// stay independent of the host environment.
type Loader struct {
	Lookup func(string) (string, bool)
	// File is an explicit config file path; it wins over SPEECHBRIDGE_CONFIG.
	File string
	// DefaultFile names the config file read when none is given. A missing
	// default file is not an error.
	DefaultFile func() (string, error)
}

func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.DefaultFile == nil {
		l.DefaultFile = platform.ResolveConfigFile
	}

	cfg := Default()

	path, explicit := l.configPath()
	if path != "" {
		if err := applyFile(path, explicit, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(l.Lookup, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) configPath() (string, bool) {
	if path := strings.TrimSpace(l.File); path != "" {
		return path, true
	}
	if value, ok := l.Lookup(EnvConfig); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	path, err := l.DefaultFile()
	if err != nil {
		return "", false
	}
	return path, false
}

func applyFile(path string, explicit bool, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func applyEnv(lookup func(string) (string, bool), cfg *Config) error {
	overrideString(lookup, EnvWhisperPath, &cfg.WhisperPath)
	overrideString(lookup, EnvModel, &cfg.Model)
	overrideString(lookup, EnvModelDir, &cfg.ModelDir)
	overrideString(lookup, EnvLocale, &cfg.Locale)
	overrideString(lookup, EnvLogLevel, &cfg.LogLevel)
	overrideString(lookup, EnvLogFile, &cfg.LogFile)

	if err := overrideDuration(lookup, EnvTimeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := overrideDuration(lookup, EnvPartialInterval, &cfg.PartialInterval); err != nil {
		return err
	}
	if err := overrideBool(lookup, EnvLogJSON, &cfg.LogJSON); err != nil {
		return err
	}
	return overrideBool(lookup, EnvSilenceGate, &cfg.SilenceGate)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

// overrideDuration accepts Go durations ("90s") and bare seconds ("90").
func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		*target = time.Duration(seconds * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = b
	return nil
}
