package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultModel = "small"

// ErrModelNotInstalled means a named model has not been downloaded yet.
var ErrModelNotInstalled = errors.New("whisper model not installed")

type Model struct {
	Name      string
	FileName  string
	URL       string
	SHA256    string
	SHA256URL string
	// SizeMB is the approximate download size.
	SizeMB int
}

type ResolvedModel struct {
	Name          string
	Path          string
	URL           string
	SHA256        string
	SHA256URL     string
	NeedsDownload bool
	IsCustomPath  bool
}

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

func ggml(name string, sizeMB int, sha256 string) Model {
	file := "ggml-" + name + ".bin"
	return Model{Name: name, FileName: file, URL: modelBaseURL + file, SHA256: sha256, SizeMB: sizeMB}
}

var registry = func() map[string]Model {
	models := []Model{
		ggml("tiny", 75, "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"),
		ggml("base", 142, "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"),
		ggml("small", 466, "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"),
		ggml("medium", 1500, "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"),
		ggml("large-v3", 2900, "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"),
	}
	byName := make(map[string]Model, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}
	return byName
}()

// ModelNames lists the registry in ascending download size.
func ModelNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return registry[names[i]].SizeMB < registry[names[j]].SizeMB })
	return names
}

func LookupModel(name string) (Model, bool) {
	model, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return model, ok
}

// ResolveModel maps a registry name or a path to a model file. Named models
// live in modelDir and may still need a download; paths must exist.
func ResolveModel(modelRef, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelRef) == "" {
		modelRef = DefaultModel
	}

	if model, ok := LookupModel(modelRef); ok {
		return resolveNamed(model, modelDir)
	}
	if !looksLikePath(modelRef) {
		return ResolvedModel{}, fmt.Errorf("unknown model %q (known models: %s)", modelRef, strings.Join(ModelNames(), ", "))
	}
	return resolveCustom(filepath.Clean(modelRef))
}

func resolveNamed(model Model, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	resolved := ResolvedModel{
		Name:      model.Name,
		Path:      filepath.Join(modelDir, model.FileName),
		URL:       model.URL,
		SHA256:    model.SHA256,
		SHA256URL: model.SHA256URL,
	}
	switch _, err := os.Stat(resolved.Path); {
	case errors.Is(err, os.ErrNotExist):
		resolved.NeedsDownload = true
	case err != nil:
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
	}
	return resolved, nil
}

func resolveCustom(path string) (ResolvedModel, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", path)
	case err != nil:
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	case info.IsDir():
		return ResolvedModel{}, fmt.Errorf("custom model path is a directory: %s", path)
	}
	return ResolvedModel{Path: path, IsCustomPath: true}, nil
}

// InstalledModelPath resolves modelRef and fails with ErrModelNotInstalled
// when a named model still needs a download.
func InstalledModelPath(modelRef, modelDir string) (string, error) {
	resolved, err := ResolveModel(modelRef, modelDir)
	if err != nil {
		return "", err
	}
	if resolved.NeedsDownload {
		return "", fmt.Errorf("%w: %s (run `speechbridge setup --model %s`)", ErrModelNotInstalled, resolved.Path, resolved.Name)
	}
	return resolved.Path, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
