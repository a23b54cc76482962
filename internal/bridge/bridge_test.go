package bridge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/speechbridge/internal/audio"
	"github.com/fmueller/speechbridge/internal/config"
	"github.com/fmueller/speechbridge/internal/engine"
	"github.com/fmueller/speechbridge/internal/engine/enginetest"
	"github.com/fmueller/speechbridge/internal/transcribe"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type sink struct {
	mu      sync.Mutex
	results []string
	finals  int
	errs    []string
}

func (s *sink) onResult(_ int64, text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, text)
	if final {
		s.finals++
	}
}

func (s *sink) onError(_ int64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, message)
}

func (s *sink) terminals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finals + len(s.errs)
}

func TestBridgeStreamingRoundTrip(t *testing.T) {
	t.Parallel()

	rec := enginetest.New(enginetest.FinalOnFinish("guten tag", "guten"))
	b := New(rec, nil, nil)
	require.True(t, b.IsAvailable())

	s := &sink{}
	id := b.CreateSession("de-DE", s.onResult, s.onError)
	require.EqualValues(t, 1, id)

	chunk := make([]byte, 3200)
	require.True(t, b.AppendAudio(id, chunk))
	require.Equal(t, 1600, rec.Last().FramesSubmitted())

	b.EndSession(id)
	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, b.AppendAudio(id, chunk))

	b.DisposeSession(id)
	b.DisposeSession(id)
	require.Zero(t, b.Sessions())
	require.False(t, b.AppendAudio(id, chunk))

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, []string{"guten", "guten tag"}, s.results)
}

func TestBridgeCreateSessionFailures(t *testing.T) {
	t.Parallel()

	rec := enginetest.New(enginetest.Script{})
	rec.RejectLocale("xx-XX")
	b := New(rec, nil, nil)

	require.Equal(t, InvalidSession, b.CreateSession("xx-XX", nil, nil))

	rec.SetAvailable(false)
	require.False(t, b.IsAvailable())
	require.Equal(t, InvalidSession, b.CreateSession("en-US", nil, nil))
	require.Zero(t, b.Sessions())

	require.False(t, New(nil, nil, nil).IsAvailable())
	require.Equal(t, InvalidSession, New(nil, nil, nil).CreateSession("", nil, nil))
}

func TestBridgeAppendAudioRejectsShortChunks(t *testing.T) {
	t.Parallel()

	b := New(enginetest.New(enginetest.Script{}), nil, nil)
	id := b.CreateSession("", nil, nil)
	t.Cleanup(func() { b.DisposeSession(id) })

	require.False(t, b.AppendAudio(id, nil))
	require.False(t, b.AppendAudio(id, []byte{7}))
	require.True(t, b.AppendAudio(id, []byte{7, 0, 9}))
}

func TestBridgeUnknownSessionIsNoOp(t *testing.T) {
	t.Parallel()

	b := New(enginetest.New(enginetest.Script{}), nil, nil)
	require.False(t, b.AppendAudio(42, []byte{0, 0}))
	b.EndSession(42)
	b.CancelSession(42)
	b.DisposeSession(42)
	b.DisposeSession(-1)
}

func TestBridgeCancelSuppressesResults(t *testing.T) {
	t.Parallel()

	rec := enginetest.New(enginetest.Script{})
	b := New(rec, nil, nil)
	s := &sink{}
	id := b.CreateSession("en", s.onResult, s.onError)

	b.CancelSession(id)
	rec.Last().Emit(engine.Event{Text: "late", Final: true})
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, s.terminals())

	b.DisposeSession(id)
}

func TestBridgeErrorCallback(t *testing.T) {
	t.Parallel()

	b := New(enginetest.New(enginetest.ErrorOnFinish(errors.New("audio engine failed"))), nil, nil)
	s := &sink{}
	id := b.CreateSession("", s.onResult, s.onError)
	t.Cleanup(func() { b.DisposeSession(id) })

	require.True(t, b.AppendAudio(id, make([]byte, 64)))
	b.EndSession(id)
	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, []string{"audio engine failed"}, s.errs)
}

func TestBridgeDisposeFromTerminalSink(t *testing.T) {
	t.Parallel()

	tests := map[string]enginetest.Script{
		"final": enginetest.FinalOnFinish("done", "do"),
		"error": enginetest.ErrorOnFinish(errors.New("engine gave up")),
	}
	for name, script := range tests {
		script := script
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := enginetest.New(script)
			b := New(rec, nil, nil)

			returned := make(chan int64, 1)
			disposeOwn := func(id int64) {
				b.DisposeSession(id)
				returned <- id
			}
			id := b.CreateSession("en-US",
				func(id int64, _ string, final bool) {
					if final {
						disposeOwn(id)
					}
				},
				func(id int64, _ string) { disposeOwn(id) },
			)
			require.NotEqual(t, InvalidSession, id)

			b.EndSession(id)
			select {
			case got := <-returned:
				require.Equal(t, id, got)
			case <-time.After(2 * time.Second):
				t.Fatal("DisposeSession from a terminal sink did not return")
			}

			require.Zero(t, b.Sessions())
			require.Eventually(t, func() bool { return rec.Last().CloseCount() == 1 }, time.Second, 5*time.Millisecond)
			require.False(t, b.AppendAudio(id, make([]byte, 320)))

			b.DisposeSession(id)
			require.NoError(t, b.Shutdown())
		})
	}
}

func TestBridgeRecoversSinkPanics(t *testing.T) {
	t.Parallel()

	b := New(enginetest.New(enginetest.FinalOnFinish("x")), nil, nil)
	done := make(chan struct{})
	id := b.CreateSession("", func(int64, string, bool) {
		defer close(done)
		panic("sink exploded")
	}, nil)

	b.EndSession(id)
	<-done
	b.DisposeSession(id)
	require.Zero(t, b.Sessions())
}

func TestBridgeConcurrentSessions(t *testing.T) {
	t.Parallel()

	b := New(enginetest.New(enginetest.FinalOnFinish("ok")), nil, nil)

	var (
		mu  sync.Mutex
		ids = map[int64]bool{}
		g   errgroup.Group
	)
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			s := &sink{}
			id := b.CreateSession("en-US", s.onResult, s.onError)
			if id == InvalidSession {
				return errors.New("create failed")
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()

			for j := 0; j < 10; j++ {
				if !b.AppendAudio(id, make([]byte, 320)) {
					return errors.New("append failed")
				}
			}
			b.EndSession(id)
			b.DisposeSession(id)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, ids, 32)
	require.Zero(t, b.Sessions())
}

func TestBridgeShutdownDisposesSessions(t *testing.T) {
	t.Parallel()

	rec := enginetest.New(enginetest.Script{})
	b := New(rec, nil, nil)
	for i := 0; i < 3; i++ {
		require.NotEqual(t, InvalidSession, b.CreateSession("", nil, nil))
	}

	require.NoError(t, b.Shutdown())
	require.Zero(t, b.Sessions())
	for _, task := range rec.Tasks() {
		require.True(t, task.Closed())
	}

	id := b.CreateSession("", nil, nil)
	require.EqualValues(t, 4, id)
	b.DisposeSession(id)
}

func TestBridgeTranscribeFileEnvelope(t *testing.T) {
	t.Parallel()

	var wav bytes.Buffer
	require.NoError(t, audio.WritePCM16WAV(&wav, make([]int16, 1600), audio.SampleRate))
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, wav.Bytes(), 0o644))

	b := New(enginetest.New(enginetest.FinalOnFinish("transcribed")), nil, nil)

	require.JSONEq(t, `{"success":true,"text":"transcribed"}`, b.TranscribeFile(path, "en-US", 5))
	require.JSONEq(t, `{"success":false,"text":"","error":"File not found: missing.wav"}`, b.TranscribeFile("missing.wav", "en-US", 5))
	require.JSONEq(t, `{"success":false,"text":"","error":"File path is nil"}`, b.TranscribeFile("", "", 0))

	res, err := transcribe.ParseResult(b.TranscribeFile(path, "", -1))
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestBridgeTranscribeFileTimeout(t *testing.T) {
	t.Parallel()

	var wav bytes.Buffer
	require.NoError(t, audio.WritePCM16WAV(&wav, make([]int16, 160), audio.SampleRate))
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, wav.Bytes(), 0o644))

	rec := enginetest.New(enginetest.Script{})
	b := New(rec, nil, nil)

	require.JSONEq(t, `{"success":false,"text":"","error":"Transcription timed out"}`, b.TranscribeFile(path, "en-US", 0.1))
	require.True(t, rec.Last().Closed())
}

func TestBridgeTranscribeFileContextCancelled(t *testing.T) {
	t.Parallel()

	var wav bytes.Buffer
	require.NoError(t, audio.WritePCM16WAV(&wav, make([]int16, 160), audio.SampleRate))
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, wav.Bytes(), 0o644))

	rec := enginetest.New(enginetest.Script{})
	b := New(rec, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.JSONEq(t, `{"success":false,"text":"","error":"context canceled"}`, b.TranscribeFileContext(ctx, path, "en-US", 5))
	require.True(t, rec.Last().Closed())
}

func TestOpenWithoutEngineIsUnavailable(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.WhisperPath = filepath.Join(t.TempDir(), "missing-whisper-cli")
	cfg.ModelDir = t.TempDir()

	b := Open(cfg, nil)
	require.False(t, b.IsAvailable())
	require.Equal(t, InvalidSession, b.CreateSession("en-US", nil, nil))
	require.JSONEq(t, `{"success":false,"text":"","error":"Speech recognizer is not available"}`, b.TranscribeFile(os.Args[0], "en-US", 1))
}

func TestOpenWithStubEngineIsAvailable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stub := filepath.Join(dir, "whisper-cli")
	require.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	modelDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ggml-tiny.bin"), []byte("model"), 0o644))

	cfg := config.Default()
	cfg.WhisperPath = stub
	cfg.ModelDir = modelDir
	cfg.Model = "tiny"

	b := Open(cfg, nil)
	require.True(t, b.IsAvailable())
}
