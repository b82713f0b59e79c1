// Package logging configures the process-wide structured logger (spec §7
// "ambient stack"). The teacher logs via bare fmt.Printf/log.Printf; no
// third-party logging library appears anywhere in the example pack, so this
// stays on the standard library's log/slog rather than reaching for an
// unseen dependency (see DESIGN.md).
package logging

import (
	"log/slog"
	"os"
)

// Options configures the process logger.
type Options struct {
	Level  slog.Level
	JSON   bool // JSON handler for production; text handler for local dev
	Output *os.File
}

// New builds a *slog.Logger per Options, falling back to text-on-stderr at
// Info level when zero-valued.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(h)
}

// Init builds a logger per Options and installs it as the process default,
// matching the teacher's use of the package-level "log" logger throughout
// main.go/pipeline.go/api.go.
func Init(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// ForComponent returns a child logger tagged with a component name, used the
// way the teacher's fmt.Printf calls were each prefixed by their own
// subsystem ("管线: ...", "渲染错误 (%s): ...").
func ForComponent(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}
