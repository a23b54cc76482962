package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildInfo(mainVersion string, settings map[string]string) *debug.BuildInfo {
	info := &debug.BuildInfo{Main: debug.Module{Path: "github.com/fmueller/speechbridge", Version: mainVersion}}
	for k, v := range settings {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: k, Value: v})
	}
	return info
}

func TestResolveVersion_ReleaseLdflags(t *testing.T) {
	t.Parallel()
	got := resolveVersion("1.2.0", "", buildInfo("(devel)", nil))
	require.Equal(t, "1.2.0", got)
}

func TestResolveVersion_LdflagsWithCommit(t *testing.T) {
	t.Parallel()
	got := resolveVersion("1.2.0", "abcdef0123456789", nil)
	require.Equal(t, "1.2.0+abcdef012345", got)
}

func TestResolveVersion_ModuleVersion(t *testing.T) {
	t.Parallel()
	got := resolveVersion("", "", buildInfo("v0.4.1", nil))
	require.Equal(t, "0.4.1", got)
}

func TestResolveVersion_DevelWithVCSStamp(t *testing.T) {
	t.Parallel()
	info := buildInfo("(devel)", map[string]string{"vcs.revision": "0123456789abcdef", "vcs.modified": "false"})
	require.Equal(t, "0.0.0+0123456789ab", resolveVersion("", "", info))
}

func TestResolveVersion_DirtyWorkingTree(t *testing.T) {
	t.Parallel()
	info := buildInfo("(devel)", map[string]string{"vcs.revision": "abc123", "vcs.modified": "true"})
	require.Equal(t, "0.0.0+abc123-dirty", resolveVersion("", "", info))
}

func TestResolveVersion_PseudoVersionAlreadyNamesCommit(t *testing.T) {
	t.Parallel()
	info := buildInfo("v0.0.0-20260101000000-abcdef012345", map[string]string{"vcs.revision": "abcdef012345"})
	require.Equal(t, "0.0.0-20260101000000-abcdef012345", resolveVersion("", "", info))
}

func TestResolveVersion_NoBuildInfo(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.0.0", resolveVersion("", "", nil))
}

func TestResolveReturnsSomething(t *testing.T) {
	t.Parallel()
	require.NotEmpty(t, Resolve())
}
