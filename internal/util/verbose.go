package util

import (
	"io"
	"log/slog"
	"os"
)

var (
	logger  *slog.Logger
	verbose bool
)

// InitLogger initializes the global slog logger with appropriate level.
// Diagnostics go to stderr so command output stays on stdout.
func InitLogger(v bool) {
	InitLoggerTo(os.Stderr, v)
}

// InitLoggerTo is InitLogger with an explicit destination.
func InitLoggerTo(w io.Writer, v bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo, // Default level
	}

	if v {
		opts.Level = slog.LevelDebug
	}
	verbose = v

	handler := slog.NewTextHandler(w, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	if logger == nil {
		// Fallback initialization with INFO level
		InitLogger(IsVerbose())
	}
	return logger
}

// IsVerbose reports whether verbose mode was enabled through InitLogger or
// on the command line.
func IsVerbose() bool {
	if verbose {
		return true
	}
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}
