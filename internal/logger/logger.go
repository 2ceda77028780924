// Package logger provides the shared hclog root logger and named sub-loggers.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.Mutex
	root hclog.Logger
)

// Setup initializes the root logger. Level is one of trace, debug, info,
// warn, error. Format "json" switches to JSON output.
func Setup(level, format string, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		output = os.Stdout
	}
	root = hclog.New(&hclog.LoggerOptions{
		Name:       "mass",
		Level:      hclog.LevelFromString(strings.ToLower(level)),
		JSONFormat: strings.EqualFold(format, "json"),
		Output:     output,
	})
}

// Root returns the root logger, initializing a default one if Setup was
// never called.
func Root() hclog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = hclog.New(&hclog.LoggerOptions{
			Name:  "mass",
			Level: hclog.Info,
		})
	}
	return root
}

// Named returns a sub-logger for the given subsystem, e.g. "music.tracks".
func Named(name string) hclog.Logger {
	return Root().Named(name)
}
