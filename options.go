package lettersync

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// syncConfig holds mutable state during Syncer construction.
type syncConfig struct {
	baseURL           string
	interval          time.Duration
	highlightDuration time.Duration
	requestTimeout    time.Duration
	singleFlight      bool
	notifier          Notifier
	logger            *slog.Logger
	updateCallbacks   []func(CycleResult)
}

// Option is a function that configures a [Syncer] during construction.
//
// Options return an error if validation fails; [New] stops at the first one.
type Option func(*syncConfig) error

// WithBaseURL sets the origin the status endpoint is resolved against.
//
// The sync request is sent to <base>/api/letter-status. Required; only http
// and https URLs with a host are accepted.
//
// Example:
//
//	s, err := lettersync.New(pg, lettersync.WithBaseURL("https://docs.example.com"))
func WithBaseURL(raw string) Option {
	return func(cfg *syncConfig) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("base URL must include a host")
		}
		cfg.baseURL = raw
		return nil
	}
}

// WithInterval sets the time between sync cycles. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("sync interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithHighlightDuration sets how long a changed row stays highlighted.
// Defaults to 3 seconds.
//
// Returns an error if the duration is zero or negative.
func WithHighlightDuration(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("highlight duration must be positive")
		}
		cfg.highlightDuration = d
		return nil
	}
}

// WithRequestTimeout bounds each status request. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithSingleFlight controls whether a tick may start a cycle while the
// previous one is still running. Enabled by default: overlapping ticks are
// skipped. Disabling it lets cycles overlap, in which case responses are
// applied in arrival order.
func WithSingleFlight(enabled bool) Option {
	return func(cfg *syncConfig) error {
		cfg.singleFlight = enabled
		return nil
	}
}

// WithNotifier sets where change notifications are delivered.
//
// If not specified, notifications are written to the logger at INFO.
// Notifier panics are recovered and logged.
//
// Returns an error if the notifier is nil.
func WithNotifier(n Notifier) Option {
	return func(cfg *syncConfig) error {
		if n == nil {
			return errors.New("notifier cannot be nil")
		}
		cfg.notifier = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *syncConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithUpdateCallback registers a function called after every sync cycle,
// successful or not, with the cycle's [CycleResult].
//
// Multiple callbacks run in registration order on the cycle's goroutine, so
// they must not block. Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(CycleResult)) Option {
	return func(cfg *syncConfig) error {
		if cb == nil {
			return nil
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}
