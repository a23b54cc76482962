// Package platform resolves host-specific locations for models and config.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "speechbridge"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{OS: runtime.GOOS, Arch: NormalizeArch(runtime.GOARCH)}
}

// Target is the os_arch directory name used for packaged engine binaries.
func (r Runtime) Target() string {
	return r.OS + "_" + r.Arch
}

// NormalizeArch maps uname-style machine names to GOARCH names.
func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	}
	return arch
}

// appDir is the per-user speechbridge directory of one kind. On Linux the
// XDG base directory wins over fallback (relative to home); macOS keeps
// everything under Application Support.
func appDir(goos, homeDir, xdgBase string, fallback ...string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}
	switch goos {
	case "linux":
		if xdgBase != "" {
			return filepath.Join(xdgBase, appDirName), nil
		}
		return filepath.Join(append(append([]string{homeDir}, fallback...), appDirName)...), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appDirName), nil
	}
	return "", fmt.Errorf("unsupported OS: %s", goos)
}

func DefaultDataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	return appDir(goos, homeDir, xdgDataHome, ".local", "share")
}

func DefaultModelDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	dir, err := DefaultDataDirFor(goos, homeDir, xdgDataHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models"), nil
}

// DefaultConfigFileFor is where the config file lives when
// SPEECHBRIDGE_CONFIG is unset.
func DefaultConfigFileFor(goos, homeDir, xdgConfigHome string) (string, error) {
	dir, err := appDir(goos, homeDir, xdgConfigHome, ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ResolveModelDir returns override when set, else the host default.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	home, err := userHome()
	if err != nil {
		return "", err
	}
	return DefaultModelDirFor(runtime.GOOS, home, os.Getenv("XDG_DATA_HOME"))
}

// ResolveConfigFile returns the default config file path for this host.
// The file may not exist.
func ResolveConfigFile() (string, error) {
	home, err := userHome()
	if err != nil {
		return "", err
	}
	return DefaultConfigFileFor(runtime.GOOS, home, os.Getenv("XDG_CONFIG_HOME"))
}

func userHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return home, nil
}
