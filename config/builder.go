package config

import (
	"log/slog"

	"github.com/jpalmerr/lettersync"
)

// BuildSyncOptions converts parsed configuration into Syncer options.
//
// extra options are appended after the configured ones, so they win when
// they set the same field (e.g. a TUI notifier).
func BuildSyncOptions(cfg *Config, logger *slog.Logger, extra ...lettersync.Option) []lettersync.Option {
	opts := []lettersync.Option{
		lettersync.WithBaseURL(cfg.BaseURL),
		lettersync.WithInterval(cfg.PollInterval.Duration()),
		lettersync.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		lettersync.WithSingleFlight(cfg.SingleFlightEnabled()),
	}

	// zero keeps the library default
	if d := cfg.HighlightDuration.Duration(); d > 0 {
		opts = append(opts, lettersync.WithHighlightDuration(d))
	}

	if logger != nil {
		opts = append(opts, lettersync.WithLogger(logger))
	}

	return append(opts, extra...)
}
