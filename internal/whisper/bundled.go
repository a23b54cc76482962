package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/speechbridge/internal/platform"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const blankAudioToken = "[BLANK_AUDIO]"

// BundledEngine runs one whisper-cli process per inference.
type BundledEngine struct {
	Executable string
	TempDir    string
	Logger     *zap.Logger
}

// NewBundledEngine uses override when set, otherwise looks for whisper-cli
// next to the running executable.
func NewBundledEngine(override string, logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override = strings.TrimSpace(override); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("whisper path override is not executable: %w", err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve speechbridge executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(self)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
}

func ResolveBundledEnginePath(hostExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(hostExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(engineBinaryName()); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; expected at ../libexec/whisper/%s", hostExecutable, engineBinaryName())
}

// EnginePathCandidates lists install locations relative to the host binary
// or shared library, most specific first.
func EnginePathCandidates(hostExecutable string) []string {
	binDir := filepath.Dir(hostExecutable)
	engineName := engineBinaryName()
	hostTarget := platform.CurrentRuntime().Target()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

// Available reports whether the executable is still present.
func (b *BundledEngine) Available() bool {
	return b != nil && ensureExecutable(b.Executable) == nil
}

// args builds the whisper-cli command line writing plain text to outBase.txt.
func (r TranscriptionRequest) args(outBase string) []string {
	lang := strings.TrimSpace(r.Language)
	if lang == "" {
		lang = autoLanguage
	}
	return []string{"-m", r.ModelPath, "-f", r.AudioPath, "-l", lang, "-nt", "-np", "-otxt", "-of", outBase}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	switch {
	case strings.TrimSpace(req.AudioPath) == "":
		return "", errors.New("audio path is required")
	case strings.TrimSpace(req.ModelPath) == "":
		return "", errors.New("model path is required")
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	dir := b.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	outBase := filepath.Join(dir, "speechbridge-"+uuid.NewString())
	defer os.Remove(outBase + ".txt")

	args := req.args(outBase)
	cmd := exec.CommandContext(ctx, b.Executable, args...)
	cmd.WaitDelay = time.Second
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if b.Logger != nil {
		b.Logger.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	}
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", b.diagnose(err, strings.TrimSpace(stderr.String()))
	}

	raw, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return NormalizeTranscript(string(raw)), nil
}

// NormalizeTranscript joins whisper's output lines and maps the blank-audio
// marker to empty text.
func NormalizeTranscript(raw string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(raw, blankAudioToken, " ")), " ")
}

type failureKind int

const (
	failureUnknown failureKind = iota
	failureSharedLibrary
	failureIllegalInstruction
)

var failureMarkers = []struct {
	kind    failureKind
	markers []string
}{
	{failureSharedLibrary, []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}},
	{failureIllegalInstruction, []string{"illegal instruction"}},
}

// classifyFailure matches engine output against known crash signatures.
func classifyFailure(outputs ...string) failureKind {
	for _, out := range outputs {
		out = strings.ToLower(out)
		for _, fm := range failureMarkers {
			for _, marker := range fm.markers {
				if strings.Contains(out, marker) {
					return fm.kind
				}
			}
		}
	}
	return failureUnknown
}

func (b *BundledEngine) diagnose(runErr error, stderr string) error {
	switch classifyFailure(stderr, runErr.Error()) {
	case failureSharedLibrary:
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", b.Executable, stderr)
	case failureIllegalInstruction:
		return errors.New("whisper engine crashed with an illegal CPU instruction; " +
			"set SPEECHBRIDGE_WHISPER_PATH to a whisper-cli binary built for your CPU")
	}
	return fmt.Errorf("whisper transcribe failed: %w (%s)", runErr, stderr)
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return err
	case info.IsDir():
		return fmt.Errorf("%s is a directory", path)
	case runtime.GOOS != "windows" && info.Mode()&0o111 == 0:
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
