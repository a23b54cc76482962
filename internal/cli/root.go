package cli

import (
	"fmt"
	"os"

	"github.com/fmueller/speechbridge/internal/bridge"
	"github.com/fmueller/speechbridge/internal/config"
	"github.com/fmueller/speechbridge/internal/logging"
	"github.com/fmueller/speechbridge/internal/platform"
	"github.com/fmueller/speechbridge/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	configFile string
	model      string
	modelDir   string
	whisper    string

	loader config.Loader
	cfg    config.Config
	logger *zap.Logger

	openFn func(cfg config.Config, logger *zap.Logger) *bridge.Bridge
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{
		openFn: bridge.Open,
	})
}

func newRootCmd(app *appState) *cobra.Command {
	if app.openFn == nil {
		app.openFn = bridge.Open
	}

	cmd := &cobra.Command{
		Use:           "speechbridge",
		Short:         "Streaming and one-shot speech recognition on a local whisper engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json-logs", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	flags.StringVar(&app.configFile, "config", "", "Config file (default: $"+config.EnvConfig+" or the platform config dir)")
	flags.StringVar(&app.model, "model", "", "Model name or model file path (default \""+config.DefaultModel+"\")")
	flags.StringVar(&app.modelDir, "model-dir", "", "Directory where models are stored")
	flags.StringVar(&app.whisper, "whisper-path", "", "Path to the whisper-cli executable")

	cmd.AddCommand(newAvailableCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newStreamCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newLanguagesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// prepare resolves configuration with flags layered over file and env
// settings, then builds the logger.
func (a *appState) prepare(cmd *cobra.Command) error {
	loader := a.loader
	loader.File = a.configFile

	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = a.model
	}
	if flags.Changed("model-dir") {
		cfg.ModelDir = a.modelDir
	}
	if flags.Changed("whisper-path") {
		cfg.WhisperPath = a.whisper
	}
	if flags.Changed("json-logs") {
		cfg.LogJSON = a.jsonLogs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: a.verbose, JSON: cfg.LogJSON, Output: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// open builds the bridge for one command run. The returned release func
// disposes every session the command left behind.
func (a *appState) open() (*bridge.Bridge, func()) {
	b := a.openFn(a.cfg, a.log())
	return b, func() {
		if err := b.Shutdown(); err != nil {
			a.log().Warn("bridge shutdown", zap.Error(err))
		}
	}
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
