package bridge

import (
	"github.com/fmueller/speechbridge/internal/config"
	"github.com/fmueller/speechbridge/internal/platform"
	"github.com/fmueller/speechbridge/internal/transcribe"
	"github.com/fmueller/speechbridge/internal/whisper"
	"go.uber.org/zap"
)

// Open builds a whisper-backed bridge from cfg. A missing engine or model
// does not fail Open: the bridge reports IsAvailable() == false and every
// create or transcribe call fails cleanly.
func Open(cfg config.Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}

	recognizer := whisper.NewRecognizer(whisper.RecognizerOptions{
		Engine:          resolveEngine(cfg, logger),
		ModelPath:       resolveModelPath(cfg, logger),
		PartialInterval: cfg.PartialInterval,
		Logger:          logger,
	})

	transcriber := &transcribe.Transcriber{
		Recognizer:           recognizer,
		Logger:               logger,
		DefaultTimeout:       cfg.Timeout,
		DefaultLocale:        cfg.Locale,
		SilenceGate:          cfg.SilenceGate,
		SilenceThresholdDBFS: cfg.SilenceThresholdDBFS,
	}

	b := New(recognizer, transcriber, logger)
	b.defaultLocale = cfg.Locale
	return b
}

// resolveEngine returns a nil interface, never a typed nil, when no
// whisper-cli can be found.
func resolveEngine(cfg config.Config, logger *zap.Logger) whisper.Engine {
	eng, err := whisper.NewBundledEngine(cfg.WhisperPath, logger)
	if err != nil {
		logger.Warn("whisper engine unavailable", zap.Error(err))
		return nil
	}
	return eng
}

func resolveModelPath(cfg config.Config, logger *zap.Logger) string {
	modelDir, err := platform.ResolveModelDir(cfg.ModelDir)
	if err != nil {
		logger.Warn("resolve model directory", zap.Error(err))
		return ""
	}

	path, err := whisper.InstalledModelPath(cfg.Model, modelDir)
	if err != nil {
		logger.Warn("whisper model unavailable", zap.String("model", cfg.Model), zap.Error(err))
		return ""
	}
	return path
}
