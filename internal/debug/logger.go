// Package debug builds the CLI's log/slog logger.
package debug

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. When enable is false every record
// is discarded.
func New(w io.Writer, enable bool) *slog.Logger {
	if !enable {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
