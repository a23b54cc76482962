package cli

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/speechbridge/internal/bridge"
	"github.com/fmueller/speechbridge/internal/config"
	"github.com/fmueller/speechbridge/internal/engine/enginetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestApp returns an app whose configuration ignores the host environment
// and whose bridge runs on rec.
func newTestApp(rec *enginetest.Recognizer) *appState {
	return &appState{
		noProgress: true,
		loader: config.Loader{
			Lookup:      func(string) (string, bool) { return "", false },
			DefaultFile: func() (string, error) { return "", os.ErrNotExist },
		},
		openFn: func(_ config.Config, logger *zap.Logger) *bridge.Bridge {
			return bridge.New(rec, nil, logger)
		},
	}
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, newTestApp(enginetest.New(enginetest.FinalOnFinish("hello"))), args)
}

func runApp(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeWAVForTest(t *testing.T, samples []int16, sampleRate int, channels int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAVForTest(samples, sampleRate, channels), 0o644))
	return path
}

// makePCM16WAVForTest builds a canonical 44-byte-header WAV around samples.
func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	dataSize := uint32(2 * len(samples))
	blockAlign := uint16(2 * channels)

	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	put(36 + dataSize)
	buf.WriteString("WAVEfmt ")
	put(uint32(16))
	put(uint16(1))
	put(uint16(channels))
	put(uint32(sampleRate))
	put(uint32(sampleRate) * uint32(blockAlign))
	put(blockAlign)
	put(uint16(16))
	buf.WriteString("data")
	put(dataSize)
	put(samples)
	return buf.Bytes()
}
