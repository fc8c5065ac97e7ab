// Package version reports which umbra build is running. Release builds set
// Version, Commit and Date with -ldflags "-X"; other builds fall back to the
// VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the application name.
const Name = "umbra"

const unknown = "unknown"

// Set at link time.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the build of the running binary.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = b.withBuildInfo(info)
	}
	return b
}

// withBuildInfo fills whatever the linker flags left unset from info.
func (b Build) withBuildInfo(info *debug.BuildInfo) Build {
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	if b.Commit != unknown {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Commit = s.Value
		case "vcs.time":
			if b.Date == unknown {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortCommit returns the first eight characters of the commit hash.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 8 {
		return b.Commit[:8]
	}
	return b.Commit
}

func (b Build) String() string {
	if b.Commit == unknown {
		return fmt.Sprintf("%s version %s (%s, %s)", Name, b.Version, b.GoVersion, b.Platform)
	}
	commit := b.ShortCommit()
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
		Name, b.Version, commit, b.Date, b.GoVersion, b.Platform)
}

// Short returns the version number of the running binary.
func Short() string {
	return Current().Version
}

// String returns a human-readable description of the running binary.
func String() string {
	return Current().String()
}
