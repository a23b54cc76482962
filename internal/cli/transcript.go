package cli

import (
	"fmt"
	"io"
	"strings"
)

func isBlankTranscript(transcript string) bool {
	return strings.TrimSpace(transcript) == ""
}

func noSpeechHint(path string) string {
	return fmt.Sprintf("No speech detected in %s. Check the recording level and the --locale flag.", path)
}

// writePartial renders an interim hypothesis on one line so a terminal shows
// it being refined in place.
func writePartial(w io.Writer, text string, tty bool) {
	if tty {
		fmt.Fprintf(w, "\r\033[K… %s", text)
		return
	}
	fmt.Fprintf(w, "… %s\n", text)
}

func clearPartial(w io.Writer, tty bool) {
	if tty {
		fmt.Fprint(w, "\r\033[K")
	}
}

func sanitizeLocale(input string) string {
	return strings.TrimSpace(input)
}
