// Package bridge is the primitive-typed surface behind the C ABI. Every
// method reports failure through its return value; none panics.
//
// Ownership: byte buffers passed to AppendAudio are copied before it
// returns. Strings handed to sinks are only valid for the duration of the
// call on the C side; the C layer frees them once the sink returns.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/fmueller/speechbridge/internal/engine"
	"github.com/fmueller/speechbridge/internal/session"
	"github.com/fmueller/speechbridge/internal/transcribe"
	"go.uber.org/zap"
)

// InvalidSession is returned by CreateSession on failure.
const InvalidSession int64 = -1

type Bridge struct {
	registry    *session.Registry
	transcriber *transcribe.Transcriber
	logger      *zap.Logger
	// defaultLocale replaces an empty locale in CreateSession.
	defaultLocale string
}

// New wires a bridge around recognizer. transcriber may be nil, in which case
// one-shot transcription uses recognizer with default settings.
func New(recognizer engine.Recognizer, transcriber *transcribe.Transcriber, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transcriber == nil {
		transcriber = &transcribe.Transcriber{Recognizer: recognizer, Logger: logger}
	}
	return &Bridge{
		registry:    session.NewRegistry(recognizer, logger),
		transcriber: transcriber,
		logger:      logger.Named("bridge"),
	}
}

func (b *Bridge) IsAvailable() (ok bool) {
	defer b.guard("IsAvailable", func() { ok = false })
	return b.registry.Available()
}

// CreateSession starts a streaming session and returns its id, or
// InvalidSession when the recognizer cannot serve locale.
func (b *Bridge) CreateSession(locale string, onResult session.ResultFunc, onError session.ErrorFunc) (id int64) {
	defer b.guard("CreateSession", func() { id = InvalidSession })

	if locale == "" {
		locale = b.defaultLocale
	}

	s, err := b.registry.Create(locale, session.Sinks{OnResult: onResult, OnError: onError})
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, engine.ErrUnsupportedLocale) {
			level = zap.InfoLevel
		}
		b.logger.Check(level, "create session failed").Write(zap.String("locale", locale), zap.Error(err))
		return InvalidSession
	}
	return s.ID()
}

// AppendAudio submits a PCM16 chunk. It reports false for unknown ids,
// sessions that are not listening and chunks shorter than one frame.
func (b *Bridge) AppendAudio(id int64, data []byte) (ok bool) {
	defer b.guard("AppendAudio", func() { ok = false })

	s, found := b.registry.Get(id)
	if !found {
		return false
	}
	if err := s.AppendAudio(data); err != nil {
		b.logger.Debug("append audio rejected", zap.Int64("session", id), zap.Int("bytes", len(data)), zap.Error(err))
		return false
	}
	return true
}

func (b *Bridge) EndSession(id int64) {
	defer b.guard("EndSession", nil)

	if s, found := b.registry.Get(id); found {
		if err := s.End(); err != nil {
			b.logger.Debug("end session ignored", zap.Int64("session", id), zap.Error(err))
		}
	}
}

func (b *Bridge) CancelSession(id int64) {
	defer b.guard("CancelSession", nil)

	if s, found := b.registry.Get(id); found {
		s.Cancel()
	}
}

// DisposeSession is idempotent and ignores unknown ids. It may be called
// from the session's own callbacks.
func (b *Bridge) DisposeSession(id int64) {
	defer b.guard("DisposeSession", nil)

	if err := b.registry.Dispose(id); err != nil {
		b.logger.Warn("dispose session", zap.Int64("session", id), zap.Error(err))
	}
}

// TranscribeFile runs blocking one-shot recognition and returns the JSON
// envelope {success, text, error?}. A non-positive timeout selects the
// configured default.
func (b *Bridge) TranscribeFile(path, locale string, timeoutSeconds float64) string {
	return b.TranscribeFileContext(context.Background(), path, locale, timeoutSeconds)
}

// TranscribeFileContext is TranscribeFile with caller cancellation.
func (b *Bridge) TranscribeFileContext(ctx context.Context, path, locale string, timeoutSeconds float64) (envelope string) {
	defer b.guard("TranscribeFile", func() {
		envelope = transcribe.Encode(transcribe.Result{Error: "internal error during transcription"})
	})

	timeout := time.Duration(timeoutSeconds * float64(time.Second))
	return transcribe.Encode(b.transcriber.Transcribe(ctx, path, locale, timeout))
}

// Shutdown disposes every live session.
func (b *Bridge) Shutdown() (err error) {
	defer b.guard("Shutdown", nil)
	return b.registry.Close()
}

// Sessions reports how many sessions are live.
func (b *Bridge) Sessions() int {
	return b.registry.Len()
}

func (b *Bridge) guard(op string, onPanic func()) {
	if r := recover(); r != nil {
		b.logger.Error("recovered panic at bridge boundary", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
		if onPanic != nil {
			onPanic()
		}
	}
}
