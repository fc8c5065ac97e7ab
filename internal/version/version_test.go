package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	b := Build{Version: "dev", Commit: unknown, Date: unknown, GoVersion: "go1.25.1", Platform: "linux/amd64"}
	got := b.withBuildInfo(info)
	assert.Equal(t, "v1.2.3", got.Version)
	assert.Equal(t, "0123456789abcdef", got.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.Date)
	assert.True(t, got.Modified)
	assert.Equal(t, "umbra version v1.2.3 (commit: 01234567-dirty, built: 2026-01-02T03:04:05Z, go1.25.1, linux/amd64)", got.String())
}

func TestWithBuildInfoKeepsLinkerValues(t *testing.T) {
	info := &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	}

	b := Build{Version: "v2.0.0", Commit: "abcd", Date: "today"}
	assert.Equal(t, b, b.withBuildInfo(info))

	b = Build{Version: "dev", Commit: unknown, Date: unknown}
	got := b.withBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", got.Version)
	assert.Equal(t, unknown, got.Commit)
}

func TestCurrent(t *testing.T) {
	b := Current()
	assert.NotEmpty(t, b.Version)
	assert.True(t, strings.HasPrefix(b.GoVersion, "go"))
	assert.True(t, strings.HasPrefix(String(), Name+" version "))
}
