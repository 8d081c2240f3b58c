package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates the command logger. When stderr is a terminal it uses
// slog.TextHandler for human-readable output; when stderr is piped or
// redirected it uses slog.JSONHandler. verbose lowers the level to Debug.
func NewLogger(verbose bool) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
