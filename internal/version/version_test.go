package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildMetadata(t *testing.T) {
	stamp(t, "1.2.3", "abc123", "2026-02-18")

	got := String()
	require.Contains(t, got, "voyc 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "date=2026-02-18")
	require.Contains(t, got, "go=")
}

func TestResolvedFallsBackToModuleVersion(t *testing.T) {
	stamp(t, "dev", "none", "unknown")

	tests := []struct {
		name   string
		info   *debug.BuildInfo
		ok     bool
		expect string
	}{
		{name: "go install", info: &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, ok: true, expect: "v0.4.0"},
		{name: "local build", info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, ok: true, expect: "dev"},
		{name: "no build info", ok: false, expect: "dev"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			readBuildInfo = func() (*debug.BuildInfo, bool) { return tc.info, tc.ok }
			require.Equal(t, tc.expect, Resolved())
		})
	}
}

func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	prevVersion, prevCommit, prevDate, prevRead := Version, Commit, Date, readBuildInfo
	t.Cleanup(func() {
		Version, Commit, Date, readBuildInfo = prevVersion, prevCommit, prevDate, prevRead
	})
	Version, Commit, Date = version, commit, date
}
