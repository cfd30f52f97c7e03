package lettersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/lettersync/internal/poller"
)

const (
	defaultInterval          = 30 * time.Second
	defaultHighlightDuration = 3 * time.Second
	defaultRequestTimeout    = 10 * time.Second

	// StatusPath is the status endpoint, relative to the base URL.
	StatusPath = "/api/letter-status"

	// statusPageMarker identifies the letter-status page by its path.
	statusPageMarker = "letter_status"
)

var (
	// ErrSyncFailed is wrapped by every sync cycle failure: transport errors,
	// non-2xx responses, undecodable bodies and a missing CSRF token.
	ErrSyncFailed = errors.New("status sync failed")

	// ErrNotEligible is returned by [Syncer.Start] when the page is not an
	// authenticated letter page.
	ErrNotEligible = errors.New("page is not eligible for status sync")
)

// Page is the view of a rendered page the syncer reads and writes.
//
// It is the only way the syncer touches page state. Implementations must be
// safe for concurrent use: highlight expiry runs on timer goroutines.
// page.MemoryPage is the bundled implementation.
type Page interface {
	// TrackedKeys returns the letter numbers currently on the page.
	TrackedKeys() []string

	// CurrentStatus returns the status recorded for key.
	CurrentStatus(key string) (string, bool)

	// ApplyStatus records status for key and restyles its badge.
	ApplyStatus(key, status, color, icon string) error

	// SetHighlight adds or removes the change highlight on key.
	SetHighlight(key string, on bool) error

	// CSRFToken returns the page's anti-forgery token.
	CSRFToken() (string, bool)

	// HasSidebar reports whether the authenticated layout is present.
	HasSidebar() bool

	// Path returns the path the page was served at.
	Path() string
}

// Syncer keeps the status badges on one page consistent with the server by
// periodic pull.
//
// A Syncer is created per page session with [New] and driven either by
// [Syncer.Start], which polls on a fixed interval until the context is
// cancelled or [Syncer.Stop] is called, or cycle by cycle with
// [Syncer.SyncOnce].
//
//	s, err := lettersync.New(pg, lettersync.WithBaseURL("http://localhost:8080"))
//	if err != nil {
//	    return err
//	}
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	return s.Start(ctx) // blocks
type Syncer struct {
	page              Page
	statusURL         string
	interval          time.Duration
	highlightDuration time.Duration
	requestTimeout    time.Duration
	singleFlight      bool
	notifier          Notifier
	logger            *slog.Logger
	updateCallbacks   []func(CycleResult)
	client            *poller.Client

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// New creates a [Syncer] for p.
//
// [WithBaseURL] is required. Other options default to:
//   - Interval: 30 seconds
//   - Highlight duration: 3 seconds
//   - Request timeout: 10 seconds
//   - Single-flight: enabled
//   - Notifier: INFO log entries
//
// Returns an error if p is nil, the base URL is missing, or any option is
// invalid.
func New(p Page, opts ...Option) (*Syncer, error) {
	if p == nil {
		return nil, errors.New("page is required")
	}

	cfg := &syncConfig{
		interval:          defaultInterval,
		highlightDuration: defaultHighlightDuration,
		requestTimeout:    defaultRequestTimeout,
		singleFlight:      true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	return &Syncer{
		page:              p,
		statusURL:         strings.TrimRight(cfg.baseURL, "/") + StatusPath,
		interval:          cfg.interval,
		highlightDuration: cfg.highlightDuration,
		requestTimeout:    cfg.requestTimeout,
		singleFlight:      cfg.singleFlight,
		notifier:          notifier,
		logger:            logger,
		updateCallbacks:   cfg.updateCallbacks,
		client:            poller.NewClient(),
		done:              make(chan struct{}),
		timers:            make(map[string]*time.Timer),
	}, nil
}

// StatusURL returns the absolute URL of the status endpoint.
func (s *Syncer) StatusURL() string {
	return s.statusURL
}

// Interval returns the configured time between sync cycles.
func (s *Syncer) Interval() time.Duration {
	return s.interval
}

// Eligible reports whether the page should be synced: it must carry the
// sidebar of the authenticated layout, and be either the letter-status page
// or a page with at least one tracked letter.
func (s *Syncer) Eligible() bool {
	if !s.page.HasSidebar() {
		return false
	}
	return strings.Contains(s.page.Path(), statusPageMarker) || len(s.page.TrackedKeys()) > 0
}

// Start polls the server on the configured interval until ctx is cancelled or
// [Syncer.Stop] is called. The first cycle runs one interval after Start.
//
// Cycle failures are logged at WARN and never end the loop. On return all
// in-flight cycles have finished and pending highlights have been cleared.
//
// Returns [ErrNotEligible] without polling when the page is not eligible,
// and an error if Start was already called. Returns nil if Stop was called
// first.
func (s *Syncer) Start(ctx context.Context) error {
	if !s.Eligible() {
		s.logger.Info("status sync disabled for page", "path", s.page.Path())
		return ErrNotEligible
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("syncer already started")
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("status sync starting",
		"url", s.statusURL,
		"interval", s.interval.String(),
		"tracked", len(s.page.TrackedKeys()),
		"single_flight", s.singleFlight,
	)

	scheduler := poller.NewScheduler(s.interval, s.cycle, s.singleFlight, s.logger)
	scheduler.Start(runCtx)

	<-runCtx.Done()

	scheduler.Stop()
	s.clearHighlights()
	s.client.Close()

	s.logger.Info("status sync stopped")
	close(s.done)
	return nil
}

// Stop ends polling started by [Syncer.Start] and waits for teardown:
// in-flight cycles finish and pending highlight timers are stopped with
// their highlight removed. Stop is idempotent and safe to call before Start.
func (s *Syncer) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if !started {
		s.clearHighlights()
		s.client.Close()
		return
	}

	cancel()
	<-s.done
}

// SyncOnce runs a single fetch-and-apply cycle.
//
// With no tracked keys no request is issued and the result is marked
// Skipped. On failure the page is left untouched and the returned error
// wraps [ErrSyncFailed].
func (s *Syncer) SyncOnce(ctx context.Context) (CycleResult, error) {
	result := s.runCycle(ctx, uuid.NewString())
	return result, result.Err
}

// cycle adapts runCycle to the scheduler, which logs the failure.
func (s *Syncer) cycle(ctx context.Context, cycleID string) error {
	return s.runCycle(ctx, cycleID).Err
}

func (s *Syncer) runCycle(ctx context.Context, cycleID string) (result CycleResult) {
	result = CycleResult{CycleID: cycleID, StartedAt: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		for _, cb := range s.updateCallbacks {
			invokeCallbackSafe(cb, result, s.logger)
		}
	}()

	keys := s.page.TrackedKeys()
	if len(keys) == 0 {
		result.Skipped = true
		s.logger.Debug("no tracked letters, sync skipped", "cycle_id", cycleID)
		return result
	}
	result.Tracked = len(keys)

	token, ok := s.page.CSRFToken()
	if !ok {
		result.Err = fmt.Errorf("%w: page has no csrf token", ErrSyncFailed)
		return result
	}

	updates, err := s.client.CheckStatus(ctx, s.statusURL, keys, token, s.requestTimeout)
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrSyncFailed, err)
		return result
	}
	result.Returned = len(updates)

	for _, u := range updates {
		if s.apply(cycleID, u) {
			result.Changed = append(result.Changed, u.LetterNumber)
		}
	}

	s.logger.Debug("sync cycle completed",
		"cycle_id", cycleID,
		"tracked", result.Tracked,
		"returned", result.Returned,
		"changed", len(result.Changed),
	)
	return result
}

// apply writes one server-reported status to the page. It reports whether
// the element changed; absent keys and equal statuses are no-ops.
func (s *Syncer) apply(cycleID string, u poller.StatusUpdate) bool {
	current, ok := s.page.CurrentStatus(u.LetterNumber)
	if !ok || current == u.Status {
		return false
	}

	status := Status(u.Status)
	pres := PresentationFor(status)
	if err := s.page.ApplyStatus(u.LetterNumber, u.Status, pres.Color, pres.Icon); err != nil {
		s.logger.Warn("failed to apply status",
			"cycle_id", cycleID,
			"letter_number", u.LetterNumber,
			"error", err,
		)
		return false
	}

	s.logger.Debug("letter status changed",
		"cycle_id", cycleID,
		"letter_number", u.LetterNumber,
		"from", current,
		"status", u.Status,
	)

	s.notify(newNotification(u.LetterNumber, status))
	s.highlight(u.LetterNumber)
	return true
}

// highlight marks key and schedules its removal. A later change to the same
// key restarts the timer.
func (s *Syncer) highlight(key string) {
	if err := s.page.SetHighlight(key, true); err != nil {
		return
	}

	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(s.highlightDuration, func() {
		s.timersMu.Lock()
		current := s.timers[key] == t
		if current {
			delete(s.timers, key)
		}
		s.timersMu.Unlock()

		if current {
			_ = s.page.SetHighlight(key, false)
		}
	})
	s.timers[key] = t
}

// PendingHighlights returns the number of highlights waiting to expire.
func (s *Syncer) PendingHighlights() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}

// clearHighlights stops every pending highlight timer and removes its
// highlight immediately.
func (s *Syncer) clearHighlights() {
	s.timersMu.Lock()
	pending := s.timers
	s.timers = make(map[string]*time.Timer)
	s.timersMu.Unlock()

	for key, t := range pending {
		t.Stop()
		_ = s.page.SetHighlight(key, false)
	}
}

// notify delivers n with panic recovery.
func (s *Syncer) notify(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notifier panicked",
				"panic", r,
				"letter_number", n.LetterNumber,
			)
		}
	}()
	s.notifier.Notify(n)
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(CycleResult), result CycleResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"cycle_id", result.CycleID,
			)
		}
	}()
	cb(result)
}
