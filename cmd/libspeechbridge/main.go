// Command libspeechbridge builds the C ABI of speechbridge:
//
//	go build -buildmode=c-shared -o libspeechbridge.so ./cmd/libspeechbridge
//
// Strings returned by SpeechBridgeTranscribeFile and SpeechBridgeVersion are
// heap allocated and must be released with SpeechBridgeFreeString. Audio
// buffers passed to SpeechBridgeAppendAudio are consumed before the call
// returns. Result and error callbacks run on library-owned threads and may
// end, cancel or dispose their own session.
package main

/*
#include <stdlib.h>
#include "speechbridge.h"
*/
import "C"

import (
	"math"
	"sync"
	"unsafe"

	"github.com/fmueller/speechbridge/internal/bridge"
	"github.com/fmueller/speechbridge/internal/config"
	"github.com/fmueller/speechbridge/internal/logging"
	"github.com/fmueller/speechbridge/internal/version"
	"go.uber.org/zap"
)

var (
	instanceOnce sync.Once
	instance     *bridge.Bridge
)

// current builds the bridge on first use from SPEECHBRIDGE_* settings.
func current() *bridge.Bridge {
	instanceOnce.Do(func() {
		cfg, cfgErr := config.Loader{}.Load()
		if cfgErr != nil {
			cfg = config.Default()
			_ = cfg.Validate()
		}

		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Output: cfg.LogFile})
		if err != nil {
			logger = zap.NewNop()
		}
		logger = logger.Named("libspeechbridge")
		if cfgErr != nil {
			logger.Warn("invalid configuration, using defaults", zap.Error(cfgErr))
		}

		instance = bridge.Open(cfg, logger)
	})
	return instance
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

//export SpeechBridgeIsAvailable
func SpeechBridgeIsAvailable() C.bool {
	return C.bool(current().IsAvailable())
}

//export SpeechBridgeCreateSession
func SpeechBridgeCreateSession(locale *C.char, onResult C.speechbridge_result_fn, onError C.speechbridge_error_fn, userData unsafe.Pointer) C.int64_t {
	id := current().CreateSession(goString(locale), resultSink(onResult, userData), errorSink(onError, userData))
	return C.int64_t(id)
}

//export SpeechBridgeAppendAudio
func SpeechBridgeAppendAudio(sessionID C.int64_t, data *C.uint8_t, length C.size_t) C.bool {
	n, ok := bufferLen(uint64(length))
	if data == nil || !ok {
		return C.bool(false)
	}
	// the session converts the view into its own frame buffer before returning
	buf := unsafe.Slice((*byte)(unsafe.Pointer(data)), n)
	return C.bool(current().AppendAudio(int64(sessionID), buf))
}

// bufferLen converts a C buffer length to a slice length. Zero and lengths
// beyond math.MaxInt are rejected.
func bufferLen(length uint64) (int, bool) {
	if length == 0 || length > math.MaxInt {
		return 0, false
	}
	return int(length), true
}

//export SpeechBridgeEndSession
func SpeechBridgeEndSession(sessionID C.int64_t) {
	current().EndSession(int64(sessionID))
}

//export SpeechBridgeCancelSession
func SpeechBridgeCancelSession(sessionID C.int64_t) {
	current().CancelSession(int64(sessionID))
}

//export SpeechBridgeDisposeSession
func SpeechBridgeDisposeSession(sessionID C.int64_t) {
	current().DisposeSession(int64(sessionID))
}

//export SpeechBridgeTranscribeFile
func SpeechBridgeTranscribeFile(path *C.char, locale *C.char, timeoutSeconds C.double) *C.char {
	return C.CString(current().TranscribeFile(goString(path), goString(locale), float64(timeoutSeconds)))
}

//export SpeechBridgeFreeString
func SpeechBridgeFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export SpeechBridgeShutdown
func SpeechBridgeShutdown() {
	_ = current().Shutdown()
}

//export SpeechBridgeVersion
func SpeechBridgeVersion() *C.char {
	return C.CString(version.Resolve())
}

func main() {}
