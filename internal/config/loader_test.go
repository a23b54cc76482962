package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func noDefaultFile() (string, error) {
	return "", os.ErrNotExist
}

func TestLoaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Loader{Lookup: envLookup(nil), DefaultFile: noDefaultFile}.Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, DefaultModel, cfg.Model)
	require.Equal(t, 60*time.Second, cfg.Timeout)
	require.Equal(t, 2*time.Second, cfg.PartialInterval)
	require.Empty(t, cfg.Locale)
	require.False(t, cfg.SilenceGate)
}

func TestLoaderReadsYAMLFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: tiny
model_dir: /srv/models
locale: de-DE
timeout: 15s
partial_interval: 0s
log_level: debug
log_file: /var/log/speechbridge.log
silence_gate: true
silence_threshold_dbfs: -50
`), 0o644))

	cfg, err := Loader{Lookup: envLookup(nil), File: path, DefaultFile: noDefaultFile}.Load()
	require.NoError(t, err)
	require.Equal(t, "tiny", cfg.Model)
	require.Equal(t, "/srv/models", cfg.ModelDir)
	require.Equal(t, "de-DE", cfg.Locale)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Zero(t, cfg.PartialInterval)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/var/log/speechbridge.log", cfg.LogFile)
	require.True(t, cfg.SilenceGate)
	require.Equal(t, -50.0, cfg.SilenceThresholdDBFS)
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: tiny\nlocale: de-DE\n"), 0o644))

	env := map[string]string{
		EnvConfig:          path,
		EnvWhisperPath:     " /opt/whisper/whisper-cli ",
		EnvModel:           "base",
		EnvLocale:          "en-US",
		EnvTimeout:         "30",
		EnvPartialInterval: "500ms",
		EnvLogLevel:        "warn",
		EnvLogJSON:         "true",
		EnvSilenceGate:     "1",
	}

	cfg, err := Loader{Lookup: envLookup(env), DefaultFile: noDefaultFile}.Load()
	require.NoError(t, err)
	require.Equal(t, "/opt/whisper/whisper-cli", cfg.WhisperPath)
	require.Equal(t, "base", cfg.Model)
	require.Equal(t, "en-US", cfg.Locale)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 500*time.Millisecond, cfg.PartialInterval)
	require.Equal(t, "warn", cfg.LogLevel)
	require.True(t, cfg.LogJSON)
	require.True(t, cfg.SilenceGate)
}

func TestLoaderMissingDefaultFileIsIgnored(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Loader{
		Lookup:      envLookup(nil),
		DefaultFile: func() (string, error) { return missing, nil },
	}.Load()
	require.NoError(t, err)
}

func TestLoaderMissingExplicitFileFails(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Loader{Lookup: envLookup(map[string]string{EnvConfig: missing}), DefaultFile: noDefaultFile}.Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoaderRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"bad timeout":          {EnvTimeout: "soon"},
		"bad bool":             {EnvSilenceGate: "maybe"},
		"negative interval":    {EnvPartialInterval: "-1s"},
		"unknown log level":    {EnvLogLevel: "chatty"},
		"bad json logs toggle": {EnvLogJSON: "yes please"},
	}
	for name, env := range tests {
		env := env
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Loader{Lookup: envLookup(env), DefaultFile: noDefaultFile}.Load()
			require.Error(t, err)
		})
	}
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [not, a, duration]\n"), 0o644))

	_, err := Loader{Lookup: envLookup(nil), File: path, DefaultFile: noDefaultFile}.Load()
	require.ErrorContains(t, err, "decode")
}

func TestValidateAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Timeout: -time.Second}
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultModel, cfg.Model)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)

	cfg = Config{SilenceThresholdDBFS: 3}
	require.Error(t, cfg.Validate())
}
