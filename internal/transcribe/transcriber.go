// Package transcribe implements blocking whole-file transcription with a
// hard deadline.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fmueller/speechbridge/internal/audio"
	"github.com/fmueller/speechbridge/internal/engine"
	"go.uber.org/zap"
)

const DefaultTimeout = 60 * time.Second

const (
	msgNilPath     = "File path is nil"
	msgUnavailable = "Speech recognizer is not available"
	msgTimedOut    = "Transcription timed out"
)

type Transcriber struct {
	Recognizer engine.Recognizer
	Logger     *zap.Logger
	// DefaultTimeout applies when a call passes a non-positive timeout.
	DefaultTimeout time.Duration
	// DefaultLocale applies when a call passes an empty locale.
	DefaultLocale string
	// SilenceGate skips recognition for WAVs quieter than SilenceThresholdDBFS.
	SilenceGate          bool
	SilenceThresholdDBFS float64
}

// Transcribe recognises a PCM16 mono 16 kHz WAV file. It blocks until the
// recognizer delivers a final result or an error, the timeout elapses, or
// ctx is done. The recognition task is always cancelled and released before
// Transcribe returns.
func (t *Transcriber) Transcribe(ctx context.Context, path, locale string, timeout time.Duration) Result {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("transcribe").With(zap.String("path", path))

	if path == "" {
		return failure(msgNilPath)
	}
	if _, err := os.Stat(path); err != nil {
		logger.Debug("audio file missing", zap.Error(err))
		return failure("File not found: " + path)
	}

	if t.Recognizer == nil || !t.Recognizer.Available() {
		logger.Warn("speech recognizer unavailable")
		return failure(msgUnavailable)
	}

	wav, err := audio.ReadWAV(path)
	if err != nil {
		return failure(fmt.Sprintf("Unsupported audio format: %v", err))
	}
	if !wav.IsPCM16Mono16K() {
		return failure("Unsupported audio format: " + wav.Describe() + " (expected PCM16 mono 16000 Hz)")
	}

	if t.SilenceGate {
		silent, metrics, err := audio.IsSilent(wav, t.SilenceThresholdDBFS)
		if err != nil {
			logger.Warn("silence analysis failed", zap.Error(err))
		} else if silent {
			logger.Debug("skipping recognition for silent audio",
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
			)
			return success("")
		}
	}

	if locale == "" {
		locale = t.DefaultLocale
	}
	if timeout <= 0 {
		timeout = t.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return t.recognize(ctx, logger, wav, locale, timeout)
}

func (t *Transcriber) recognize(ctx context.Context, logger *zap.Logger, wav *audio.WAV, locale string, timeout time.Duration) Result {
	task, err := t.Recognizer.NewTask(locale)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			return failure(msgUnavailable)
		}
		logger.Warn("create recognition task failed", zap.String("locale", locale), zap.Error(err))
		return failure("Failed to create speech recognizer for locale: " + locale)
	}
	defer func() {
		if err := task.Close(); err != nil {
			logger.Warn("release recognition task failed", zap.Error(err))
		}
	}()

	terminal := make(chan engine.Event, 1)
	handler := func(ev engine.Event) {
		if !ev.Terminal() {
			return
		}
		select {
		case terminal <- ev:
		default:
		}
	}
	if err := task.Start(handler); err != nil {
		return failure(err.Error())
	}

	frames, err := audio.ConvertPCM16(wav.Data)
	if err == nil {
		err = task.Submit(frames)
	} else if errors.Is(err, audio.ErrNoFrames) {
		err = nil
	}
	if err == nil {
		err = task.Finish()
	}
	if err != nil {
		task.Cancel()
		return failure(err.Error())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-terminal:
		if ev.Err != nil {
			return failure(ev.Err.Error())
		}
		return success(ev.Text)
	case <-timer.C:
		task.Cancel()
		logger.Warn("transcription timed out", zap.Duration("timeout", timeout))
		return failure(msgTimedOut)
	case <-ctx.Done():
		task.Cancel()
		return failure(ctx.Err().Error())
	}
}
