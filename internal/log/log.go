// Package log configures structured logging for xogen using log/slog.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Setup configures the default slog logger based on verbosity flags.
//
//   - quiet mode:   only WARN and ERROR messages
//   - normal mode:  INFO and above
//   - verbose mode: DEBUG and above
//
// Output is written to stderr using slog.TextHandler.
func Setup(verbose, quiet bool) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level(verbose, quiet),
	})))
}

func level(verbose, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelWarn
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Provider returns the logger a provider client writes to. Outside debug mode
// provider chatter is discarded.
func Provider(debugMode bool, provider string) *slog.Logger {
	if !debugMode {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.Default().With("provider", provider)
}
