// Package log wires the process-wide slog default shared by the zini
// binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on stderr at the given level. Level names
// are case-insensitive; unknown names fall back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags the default logger with the originating module, so log
// lines from the API, the event bus, and persistence stay distinguishable.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
