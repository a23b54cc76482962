// Package whisper provides an offline speech recognizer built on the
// whisper.cpp command line tool.
package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	// Language is a whisper language code or "auto".
	Language string
}

// Engine runs a single whole-file inference.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
