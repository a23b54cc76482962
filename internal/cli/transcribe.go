package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/speechbridge/internal/transcribe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errTranscriptionFailed = errors.New("transcription failed")

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		locale  string
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a 16 kHz mono PCM16 WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, release := app.open()
			defer release()

			path := args[0]
			locale = sanitizeLocale(locale)
			app.log().Info("transcribing...", zap.String("audio", path), zap.String("locale", locale), zap.Duration("timeout", timeout))

			stopSpinner := startSpinner(app.progressEnabled(), "Transcribing")
			started := time.Now()
			envelope := b.TranscribeFileContext(cmd.Context(), path, locale, timeout.Seconds())
			stopSpinner()

			res, err := transcribe.ParseResult(envelope)
			if err != nil {
				return err
			}
			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), envelope)
			}
			if !res.Success {
				app.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.String("error", res.Error))
				return fmt.Errorf("%w: %s", errTranscriptionFailed, res.Error)
			}
			app.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

			if isBlankTranscript(res.Text) {
				app.log().Warn(noSpeechHint(path))
			}
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "BCP-47 locale such as en-US; empty uses the configured default")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long; 0 uses the configured timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result envelope")
	return cmd
}
