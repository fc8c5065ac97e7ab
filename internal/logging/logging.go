// Package logging builds the hclog root logger shared by umbra's commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options configures New.
type Options struct {
	// Level is an hclog level name (trace, debug, info, warn, error, off).
	Level string
	// JSON switches to JSON output.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel converts a level name into an hclog.Level. The empty string
// means info.
func ParseLevel(name string) (hclog.Level, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return hclog.Info, nil
	}
	level := hclog.LevelFromString(name)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// New creates the root logger, named "umbra".
func New(opts Options) (hclog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "umbra",
		Level:      level,
		Output:     output,
		JSONFormat: opts.JSON,
	}), nil
}

// Verbosity resolves the effective level name from the --verbose and
// --quiet flags, falling back to the configured level.
func Verbosity(configured string, verbose, quiet bool) string {
	switch {
	case quiet:
		return "error"
	case verbose:
		return "debug"
	default:
		return configured
	}
}
