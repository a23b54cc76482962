package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fmueller/speechbridge/internal/audio"
	"github.com/fmueller/speechbridge/internal/engine"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPartialInterval is the amount of new audio that triggers a partial
// inference while a task is still receiving input.
const DefaultPartialInterval = 2 * time.Second

type RecognizerOptions struct {
	Engine    Engine
	ModelPath string
	// PartialInterval of zero or less disables partial results.
	PartialInterval time.Duration
	TempDir         string
	Logger          *zap.Logger
}

// Recognizer adapts a whole-file whisper Engine to the streaming
// engine.Recognizer contract. Each task buffers its audio and re-runs
// inference over everything received so far.
type Recognizer struct {
	engine          Engine
	modelPath       string
	partialInterval time.Duration
	tempDir         string
	logger          *zap.Logger
}

func NewRecognizer(opts RecognizerOptions) *Recognizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Recognizer{
		engine:          opts.Engine,
		modelPath:       opts.ModelPath,
		partialInterval: opts.PartialInterval,
		tempDir:         tempDir,
		logger:          logger.Named("whisper"),
	}
}

// Available reports whether both the engine and the model are present.
func (r *Recognizer) Available() bool {
	if r == nil || r.engine == nil || r.modelPath == "" {
		return false
	}
	if checker, ok := r.engine.(interface{ Available() bool }); ok && !checker.Available() {
		return false
	}
	info, err := os.Stat(r.modelPath)
	return err == nil && !info.IsDir()
}

func (r *Recognizer) NewTask(locale string) (engine.Task, error) {
	if !r.Available() {
		r.logger.Warn("whisper recognizer unavailable", zap.String("model", r.modelPath))
		return nil, engine.ErrUnavailable
	}

	lang, err := ResolveLanguage(locale)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &task{
		recognizer: r,
		language:   lang,
		logger:     r.logger.With(zap.String("language", lang)),
		ctx:        ctx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

type task struct {
	recognizer *Recognizer
	language   string
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	handler   engine.Handler
	samples   []int16
	pending   int
	started   bool
	finished  bool
	cancelled bool
	closed    bool
}

func (t *task) Start(h engine.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return engine.ErrTaskClosed
	}
	if t.started {
		return errors.New("whisper task already started")
	}
	t.started = true
	t.handler = h
	go t.run()
	return nil
}

func (t *task) Submit(frames []int16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.closed:
		return engine.ErrTaskClosed
	case t.finished || t.cancelled:
		return engine.ErrTaskFinished
	}

	t.samples = append(t.samples, frames...)
	t.pending += len(frames)
	if interval := t.recognizer.partialInterval; interval > 0 && t.pending >= audio.FramesIn(interval) {
		t.notify()
	}
	return nil
}

func (t *task) Finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return engine.ErrTaskClosed
	}
	if t.finished || t.cancelled {
		return nil
	}
	t.finished = true
	t.notify()
	return nil
}

func (t *task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

func (t *task) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.cancelled = true
	started := t.started
	t.mu.Unlock()

	t.cancel()
	if started {
		<-t.done
	}
	return nil
}

func (t *task) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *task) run() {
	defer close(t.done)

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.wake:
		}

		t.mu.Lock()
		finished := t.finished
		runPartial := !finished && t.pending > 0
		samples := append([]int16(nil), t.samples...)
		t.pending = 0
		t.mu.Unlock()

		switch {
		case finished:
			t.final(samples)
			return
		case runPartial:
			t.partial(samples)
		}
	}
}

func (t *task) partial(samples []int16) {
	text, err := t.infer(samples)
	if err != nil {
		// a failed partial is not terminal; the final pass reports errors
		t.logger.Debug("partial inference failed", zap.Error(err))
		return
	}
	if text == "" {
		return
	}
	t.emit(engine.Event{Text: text})
}

func (t *task) final(samples []int16) {
	if len(samples) == 0 {
		t.emit(engine.Event{Final: true})
		return
	}

	text, err := t.infer(samples)
	if err != nil {
		if t.ctx.Err() != nil {
			return
		}
		t.logger.Warn("final inference failed", zap.Error(err))
		t.emit(engine.Event{Err: err})
		return
	}
	t.emit(engine.Event{Text: text, Final: true})
}

func (t *task) infer(samples []int16) (string, error) {
	wavPath := filepath.Join(t.recognizer.tempDir, "speechbridge-"+uuid.NewString()+".wav")
	f, err := os.Create(wavPath)
	if err != nil {
		return "", fmt.Errorf("create inference input: %w", err)
	}
	defer os.Remove(wavPath)

	writeErr := audio.WritePCM16WAV(f, samples, audio.SampleRate)
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return "", fmt.Errorf("write inference input: %w", writeErr)
	}

	started := time.Now()
	text, err := t.recognizer.engine.Transcribe(t.ctx, TranscriptionRequest{
		AudioPath: wavPath,
		ModelPath: t.recognizer.modelPath,
		Language:  t.language,
	})
	t.logger.Debug("inference finished",
		zap.Duration("audio", audio.Duration(len(samples))),
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(err),
	)
	return NormalizeTranscript(text), err
}

// emit runs the handler without holding t.mu; handlers take caller locks
// that are also held around Submit and Finish.
func (t *task) emit(ev engine.Event) {
	t.mu.Lock()
	cancelled, h := t.cancelled, t.handler
	t.mu.Unlock()

	if cancelled || h == nil {
		return
	}
	h(ev)
}
