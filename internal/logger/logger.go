// Package logger builds the *slog.Logger both binaries run with.
package logger

import (
	"io"
	"log/slog"
)

// Setup returns a logger configured for env.
//
//	dev (and anything unrecognised): text, DEBUG
//	staging:                         JSON, DEBUG
//	prod:                            JSON, INFO
func Setup(env string, w io.Writer) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Discard returns a logger that drops every record. Tests and library
// defaults use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
