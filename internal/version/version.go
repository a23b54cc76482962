package version

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/fmueller/speechbridge/internal/version.Version=..."
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// Resolve returns the version string. Release builds carry an ldflags
// version; other builds fall back to the module version and VCS stamp the
// Go toolchain embeds.
func Resolve() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(Version, Commit, info)
}

func resolveVersion(base, commit string, info *debug.BuildInfo) string {
	if base == "" && info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		base = strings.TrimPrefix(info.Main.Version, "v")
	}
	if base == "" {
		base = "0.0.0"
	}

	revision, dirty := vcsStamp(info)
	if commit == "" {
		commit = revision
	}
	if commit == "" || strings.Contains(base, commit) {
		return base
	}

	suffix := shortRevision(commit)
	if dirty {
		suffix += "-dirty"
	}
	return base + "+" + suffix
}

func vcsStamp(info *debug.BuildInfo) (revision string, dirty bool) {
	if info == nil {
		return "", false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return revision, dirty
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}
