package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"phish-merge/internal/config"
)

// newLogger builds the process logger. LOG_FORMAT wins; otherwise a
// terminal gets text and anything else gets JSON.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	format := cfg.LogFormat
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
			format = "text"
		}
	}

	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
