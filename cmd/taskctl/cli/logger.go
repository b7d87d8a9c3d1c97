// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the logger for a command run. Format "text"
// and "json" select the handler; "auto" uses slog.TextHandler when w is
// a terminal and slog.JSONHandler otherwise (pipes, CI, tests).
//
// Callers scope it with command context via With():
//
//	logger := cli.NewCommandLogger(os.Stderr, slog.LevelInfo, "auto").With("command", "list")
func NewCommandLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	text := format == "text"
	if format == "auto" || format == "" {
		text = IsTerminal(w)
	}
	if text {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v any) bool {
	file, ok := v.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
