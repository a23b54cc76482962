package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fmueller/speechbridge/internal/download"
	"github.com/fmueller/speechbridge/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	var (
		force bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				for _, name := range whisper.ModelNames() {
					model, _ := whisper.LookupModel(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s ~%d MB\n", model.Name, model.SizeMB)
				}
				return nil
			}

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.cfg.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			installed, err := app.ensureModel(cmd.Context(), resolved, force)
			if err != nil {
				return err
			}
			if installed {
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", resolved.Name, resolved.Path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", resolved.Name, resolved.Path)
			}

			if _, err := whisper.NewBundledEngine(app.cfg.WhisperPath, app.log()); err != nil {
				app.log().Warn("whisper engine not found; streaming and transcription stay unavailable", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Download the model even when a verified copy exists")
	cmd.Flags().BoolVar(&list, "list", false, "List downloadable models and exit")
	return cmd
}

// ensureModel downloads resolved unless a copy with a matching checksum is
// already on disk. It reports whether a download happened.
func (a *appState) ensureModel(ctx context.Context, resolved whisper.ResolvedModel, force bool) (bool, error) {
	expected, err := modelChecksum(ctx, resolved)
	if err != nil {
		return false, err
	}

	log := a.log().With(zap.String("model", resolved.Name), zap.String("path", resolved.Path))
	if !force && !a.staleModel(log, resolved, expected) {
		log.Info("model already present")
		return false, nil
	}

	log.Info("downloading model")
	err = download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: expected,
		NoProgress:     a.noProgress,
		Description:    "downloading " + resolved.Name,
		Logger:         a.log(),
	})
	if err != nil {
		return false, fmt.Errorf("download model %s: %w", resolved.Name, err)
	}
	return true, nil
}

// staleModel reports whether the installed copy is missing or fails its
// checksum.
func (a *appState) staleModel(log *zap.Logger, resolved whisper.ResolvedModel, expected string) bool {
	if resolved.NeedsDownload {
		return true
	}
	if err := download.VerifyFileChecksum(resolved.Path, expected); err != nil {
		log.Warn("model checksum verification failed; downloading fresh copy", zap.Error(err))
		return true
	}
	return false
}

// modelChecksum returns the pinned checksum, fetching the published listing
// when the registry carries none.
func modelChecksum(ctx context.Context, resolved whisper.ResolvedModel) (string, error) {
	if resolved.SHA256 != "" || resolved.SHA256URL == "" {
		return resolved.SHA256, nil
	}
	sum, err := download.ResolveExpectedChecksum(ctx, resolved.SHA256URL, filepath.Base(resolved.Path), nil)
	if err != nil {
		return "", fmt.Errorf("resolve checksum for model %s: %w", resolved.Name, err)
	}
	return sum, nil
}
