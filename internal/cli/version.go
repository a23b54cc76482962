package cli

import (
	"fmt"

	"github.com/fmueller/speechbridge/internal/version"
	"github.com/fmueller/speechbridge/internal/whisper"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line := "speechbridge v" + version.Resolve()
			if version.Date != "" {
				line += " (built " + version.Date + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages the whisper engine recognizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, lang := range whisper.Languages() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s\n", lang.Code, lang.Name)
			}
			return nil
		},
	}
}

func newAvailableCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "Report whether speech recognition can run on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, release := app.open()
			defer release()

			ok := b.IsAvailable()
			if !ok {
				app.log().Warn(errRecognizerUnavailable.Error())
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}
