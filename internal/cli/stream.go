package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fmueller/speechbridge/internal/audio"
	"github.com/fmueller/speechbridge/internal/bridge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var errRecognizerUnavailable = errors.New("speech recognizer is not available (run `speechbridge setup`)")

type streamOptions struct {
	locale   string
	chunk    time.Duration
	realtime bool
}

// outcome is the terminal event of a streamed session.
type outcome struct {
	text string
	err  error
}

func newStreamCmd(app *appState) *cobra.Command {
	opts := streamOptions{chunk: 100 * time.Millisecond}

	cmd := &cobra.Command{
		Use:   "stream <audio-file>",
		Short: "Feed a WAV file through a streaming session chunk by chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.chunk <= 0 {
				return fmt.Errorf("--chunk must be positive, got %s", opts.chunk)
			}

			wav, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}
			if !wav.IsPCM16Mono16K() {
				return fmt.Errorf("unsupported audio format: %s (need PCM16 mono 16 kHz)", wav.Describe())
			}

			b, release := app.open()
			defer release()

			text, err := app.stream(cmd, b, wav.Data, opts)
			if err != nil {
				return err
			}
			if isBlankTranscript(text) {
				app.log().Warn(noSpeechHint(args[0]))
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.locale, "locale", "", "BCP-47 locale such as en-US; empty uses the configured default")
	cmd.Flags().DurationVar(&opts.chunk, "chunk", opts.chunk, "Audio per appended chunk")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "Pace chunks at playback speed")
	return cmd
}

// stream runs one session over pcm: a feeder appends chunks then ends the
// session while a waiter blocks on the terminal result.
func (a *appState) stream(cmd *cobra.Command, b *bridge.Bridge, pcm []byte, opts streamOptions) (string, error) {
	if !b.IsAvailable() {
		return "", errRecognizerUnavailable
	}

	errOut := cmd.ErrOrStderr()
	tty := errOut == os.Stderr && term.IsTerminal(int(os.Stderr.Fd()))
	terminal := make(chan outcome, 1)

	locale := sanitizeLocale(opts.locale)
	id := b.CreateSession(locale,
		func(_ int64, text string, final bool) {
			if !final {
				writePartial(errOut, text, tty)
				return
			}
			clearPartial(errOut, tty)
			terminal <- outcome{text: text}
		},
		func(_ int64, message string) {
			clearPartial(errOut, tty)
			terminal <- outcome{err: fmt.Errorf("%w: %s", errTranscriptionFailed, message)}
		},
	)
	if id == bridge.InvalidSession {
		return "", fmt.Errorf("failed to create speech recognizer for locale %q", locale)
	}
	defer b.DisposeSession(id)

	logger := a.log().With(zap.Int64("session", id))
	if frames, err := audio.ConvertPCM16(pcm); err == nil {
		level := audio.MeasureFrames(frames)
		logger.Debug("streaming audio",
			zap.Duration("duration", audio.Duration(len(frames))),
			zap.Float64("rms_dbfs", level.RMSdBFS),
			zap.Float64("peak_dbfs", level.PeakdBFS),
		)
	}
	chunkBytes := 2 * audio.FramesIn(opts.chunk)
	if chunkBytes < 2 {
		chunkBytes = 2
	}
	pcm = pcm[:len(pcm)&^1]

	stopProgress := func() {}
	if opts.realtime {
		stopProgress = startDurationProgress(a.progressEnabled(), "Streaming", audio.Duration(len(pcm)/2))
	}
	defer stopProgress()

	var text string
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		for off := 0; off < len(pcm); off += chunkBytes {
			end := min(off+chunkBytes, len(pcm))
			if !b.AppendAudio(id, pcm[off:end]) {
				// the session already delivered its terminal event
				logger.Debug("append rejected", zap.Int("offset", off))
				return nil
			}
			if opts.realtime {
				if err := sleepContext(ctx, audio.Duration((end-off)/2)); err != nil {
					return err
				}
			}
		}
		logger.Debug("audio fed", zap.Int("bytes", len(pcm)))
		b.EndSession(id)
		return nil
	})
	g.Go(func() error {
		select {
		case out := <-terminal:
			text = out.text
			return out.err
		case <-ctx.Done():
			b.CancelSession(id)
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
