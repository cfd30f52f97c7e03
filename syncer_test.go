package lettersync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/lettersync/internal/poller"
	"github.com/jpalmerr/lettersync/page"
)

// statusServer is a fake status endpoint backed by a status map.
type statusServer struct {
	*httptest.Server

	mu       sync.Mutex
	statuses map[string]string
	extra    []poller.StatusUpdate
	requests [][]string
}

func newStatusServer(t *testing.T, statuses map[string]string) *statusServer {
	t.Helper()

	ss := &statusServer{statuses: statuses}
	ss.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != StatusPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get(poller.CSRFHeader) != "test-token" {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}

		var req struct {
			LetterNumbers []string `json:"letter_numbers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		ss.mu.Lock()
		ss.requests = append(ss.requests, req.LetterNumbers)
		out := make([]poller.StatusUpdate, 0, len(req.LetterNumbers))
		for _, n := range req.LetterNumbers {
			if status, ok := ss.statuses[n]; ok {
				out = append(out, poller.StatusUpdate{LetterNumber: n, Status: status})
			}
		}
		out = append(out, ss.extra...)
		ss.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(ss.Close)
	return ss
}

func (ss *statusServer) set(number, status string) {
	ss.mu.Lock()
	ss.statuses[number] = status
	ss.mu.Unlock()
}

func (ss *statusServer) requestCount() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.requests)
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSyncer(t *testing.T, pg Page, baseURL string, opts ...Option) (*Syncer, *recorder) {
	t.Helper()

	rec := &recorder{}
	all := append([]Option{
		WithBaseURL(baseURL),
		WithLogger(testLogger()),
		WithNotifier(rec),
	}, opts...)

	s, err := New(pg, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Stop)
	return s, rec
}

func mustElement(t *testing.T, pg *page.MemoryPage, key string) page.Element {
	t.Helper()
	el, ok := pg.Element(key)
	if !ok {
		t.Fatalf("Element(%q) not found", key)
	}
	return el
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSyncOnce_EmptyPageIssuesNoRequest(t *testing.T) {
	ss := newStatusServer(t, map[string]string{})
	s, rec := newTestSyncer(t, statusPage(t), ss.URL)

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if !result.Skipped {
		t.Error("Skipped = false, want true for a page without tracked letters")
	}
	if ss.requestCount() != 0 {
		t.Errorf("server received %d requests, want 0", ss.requestCount())
	}
	if len(rec.all()) != 0 {
		t.Errorf("got %d notifications, want 0", len(rec.all()))
	}
}

func TestSyncOnce_SendsTrackedKeys(t *testing.T) {
	ss := newStatusServer(t, map[string]string{})
	pg := statusPage(t,
		page.Element{LetterNumber: "L-2", Status: "Pending"},
		page.Element{LetterNumber: "L-1", Status: "Pending"},
	)
	s, _ := newTestSyncer(t, pg, ss.URL)

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if result.Tracked != 2 {
		t.Errorf("Tracked = %d, want 2", result.Tracked)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.requests) != 1 || strings.Join(ss.requests[0], ",") != "L-2,L-1" {
		t.Errorf("requests = %v, want one request for [L-2 L-1]", ss.requests)
	}
}

func TestSyncOnce_UnchangedStatusIsNoop(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Pending"})
	pg := statusPage(t, page.Element{
		LetterNumber: "L-1", Status: "Pending",
		HasBadge: true, BadgeColor: "warning", BadgeIcon: "clock",
	})
	s, rec := newTestSyncer(t, pg, ss.URL)

	ch := pg.Subscribe()
	defer pg.Unsubscribe(ch)

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}

	if len(result.Changed) != 0 {
		t.Errorf("Changed = %v, want none", result.Changed)
	}
	if len(rec.all()) != 0 {
		t.Errorf("got %d notifications, want 0", len(rec.all()))
	}
	if s.PendingHighlights() != 0 {
		t.Errorf("PendingHighlights() = %d, want 0", s.PendingHighlights())
	}
	select {
	case el := <-ch:
		t.Errorf("page was mutated: %+v", el)
	default:
	}
}

func TestSyncOnce_ChangedStatus(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Verified"})
	pg := statusPage(t, page.Element{
		LetterNumber: "L-1", Status: "Pending",
		HasBadge: true, BadgeColor: "warning", BadgeIcon: "clock",
	})
	s, rec := newTestSyncer(t, pg, ss.URL, WithHighlightDuration(80*time.Millisecond))

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if strings.Join(result.Changed, ",") != "L-1" {
		t.Errorf("Changed = %v, want [L-1]", result.Changed)
	}

	el := mustElement(t, pg, "L-1")
	if el.Status != "Verified" {
		t.Errorf("Status = %q, want Verified", el.Status)
	}
	if el.BadgeColor != "success" || el.BadgeIcon != "check-circle" {
		t.Errorf("badge = %s/%s, want success/check-circle", el.BadgeColor, el.BadgeIcon)
	}
	if !el.Highlighted {
		t.Error("Highlighted = false right after the change")
	}

	notes := rec.all()
	if len(notes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notes))
	}
	if notes[0].Message != "Letter L-1 status updated: Verified" {
		t.Errorf("Message = %q", notes[0].Message)
	}
	if notes[0].Level != "info" {
		t.Errorf("Level = %q, want info", notes[0].Level)
	}
	if notes[0].LetterNumber != "L-1" || notes[0].Status != StatusVerified {
		t.Errorf("notification = %+v", notes[0])
	}

	waitFor(t, time.Second, func() bool {
		return !mustElement(t, pg, "L-1").Highlighted
	}, "highlight was not removed after the highlight duration")

	if s.PendingHighlights() != 0 {
		t.Errorf("PendingHighlights() = %d after expiry, want 0", s.PendingHighlights())
	}
}

func TestSyncOnce_Idempotent(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Rejected"})
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending", HasBadge: true})
	s, rec := newTestSyncer(t, pg, ss.URL)

	for i := 0; i < 2; i++ {
		if _, err := s.SyncOnce(context.Background()); err != nil {
			t.Fatalf("SyncOnce() #%d error = %v", i+1, err)
		}
	}

	if n := len(rec.all()); n != 1 {
		t.Errorf("got %d notifications after two identical cycles, want 1", n)
	}
	el := mustElement(t, pg, "L-1")
	if el.Status != "Rejected" || el.BadgeColor != "danger" || el.BadgeIcon != "x-circle" {
		t.Errorf("element = %+v, want Rejected danger/x-circle", el)
	}
}

func TestSyncOnce_OneOfTwoLettersVerified(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-100": "Verified", "L-200": "Verified"})
	pg := statusPage(t,
		page.Element{LetterNumber: "L-100", Status: "Pending", HasBadge: true, BadgeColor: "warning", BadgeIcon: "clock"},
		page.Element{LetterNumber: "L-200", Status: "Verified", HasBadge: true, BadgeColor: "success", BadgeIcon: "check-circle"},
	)
	s, rec := newTestSyncer(t, pg, ss.URL)

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if result.Returned != 2 {
		t.Errorf("Returned = %d, want 2", result.Returned)
	}

	l100 := mustElement(t, pg, "L-100")
	if l100.Status != "Verified" || l100.BadgeColor != "success" || !l100.Highlighted {
		t.Errorf("L-100 = %+v, want Verified, success, highlighted", l100)
	}
	l200 := mustElement(t, pg, "L-200")
	if l200.Highlighted {
		t.Error("L-200 highlighted although its status did not change")
	}

	notes := rec.all()
	if len(notes) != 1 || notes[0].Message != "Letter L-100 status updated: Verified" {
		t.Errorf("notifications = %+v, want exactly one for L-100", notes)
	}
}

func TestSyncOnce_UnknownStatusUsesFallbackPresentation(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Archived"})
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending", HasBadge: true})
	s, rec := newTestSyncer(t, pg, ss.URL)

	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}

	el := mustElement(t, pg, "L-1")
	if el.Status != "Archived" || el.BadgeColor != "secondary" || el.BadgeIcon != "question-circle" {
		t.Errorf("element = %+v, want Archived secondary/question-circle", el)
	}
	notes := rec.all()
	if len(notes) != 1 || notes[0].Message != "Letter L-1 status updated: Archived" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestSyncOnce_IgnoresLettersNotOnPage(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Pending"})
	ss.extra = []poller.StatusUpdate{{LetterNumber: "L-999", Status: "Verified"}}
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending"})
	s, rec := newTestSyncer(t, pg, ss.URL)

	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if _, ok := pg.Element("L-999"); ok {
		t.Error("letter from the response was added to the page")
	}
	if len(rec.all()) != 0 {
		t.Errorf("got %d notifications, want 0", len(rec.all()))
	}
}

func TestSyncOnce_Failures(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	serverError := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer serverError.Close()

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer malformed.Close()

	nullBody := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	}))
	defer nullBody.Close()

	incomplete := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"letter_number":"L-1"}]`))
	}))
	defer incomplete.Close()

	tests := []struct {
		name      string
		baseURL   string
		noToken   bool
		wantInErr string
	}{
		{name: "network error", baseURL: closedURL, wantInErr: "request failed"},
		{name: "server error", baseURL: serverError.URL, wantInErr: "unexpected status code 500"},
		{name: "malformed body", baseURL: malformed.URL, wantInErr: "failed to decode response"},
		{name: "null body", baseURL: nullBody.URL, wantInErr: "got null"},
		{name: "entry without status", baseURL: incomplete.URL, wantInErr: "missing letter_number or status"},
		{name: "missing csrf token", baseURL: serverError.URL, noToken: true, wantInErr: "csrf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending", HasBadge: true})
			if tt.noToken {
				pg.SetCSRFToken("")
			}
			s, rec := newTestSyncer(t, pg, tt.baseURL)

			result, err := s.SyncOnce(context.Background())
			if !errors.Is(err, ErrSyncFailed) {
				t.Fatalf("SyncOnce() error = %v, want ErrSyncFailed", err)
			}
			if !strings.Contains(err.Error(), tt.wantInErr) {
				t.Errorf("SyncOnce() error = %v, want containing %q", err, tt.wantInErr)
			}
			if result.Err != err {
				t.Errorf("result.Err = %v, want the returned error", result.Err)
			}

			if el := mustElement(t, pg, "L-1"); el.Status != "Pending" || el.Highlighted {
				t.Errorf("page mutated on failure: %+v", el)
			}
			if len(rec.all()) != 0 {
				t.Errorf("got %d notifications on failure, want 0", len(rec.all()))
			}
		})
	}
}

func TestSyncOnce_NotifierPanicRecovered(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Verified", "L-2": "Rejected"})
	pg := statusPage(t,
		page.Element{LetterNumber: "L-1", Status: "Pending"},
		page.Element{LetterNumber: "L-2", Status: "Pending"},
	)

	var logBuf syncBuffer
	s, err := New(pg,
		WithBaseURL(ss.URL),
		WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))),
		WithNotifier(NotifierFunc(func(Notification) { panic("notifier exploded") })),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Stop()

	result, err := s.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if len(result.Changed) != 2 {
		t.Errorf("Changed = %v, want both letters despite notifier panics", result.Changed)
	}
	if !strings.Contains(logBuf.String(), "notifier panicked") {
		t.Error("expected notifier panic to be logged")
	}
}

func TestWithUpdateCallback_InvokedForEveryCycle(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Verified"})
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending"})

	var (
		mu      sync.Mutex
		results []CycleResult
		order   []string
	)
	s, _ := newTestSyncer(t, pg, ss.URL,
		WithUpdateCallback(func(r CycleResult) {
			mu.Lock()
			results = append(results, r)
			order = append(order, "first")
			mu.Unlock()
		}),
		WithUpdateCallback(func(CycleResult) { panic("callback exploded") }),
		WithUpdateCallback(func(CycleResult) {
			mu.Lock()
			order = append(order, "third")
			mu.Unlock()
		}),
	)

	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	ss.Close()
	if _, err := s.SyncOnce(context.Background()); err == nil {
		t.Fatal("SyncOnce() against a closed server returned nil error")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("callback invoked %d times, want 2", len(results))
	}
	if results[0].Err != nil || len(results[0].Changed) != 1 {
		t.Errorf("first result = %+v, want success with one change", results[0])
	}
	if !errors.Is(results[1].Err, ErrSyncFailed) {
		t.Errorf("second result Err = %v, want ErrSyncFailed", results[1].Err)
	}
	if results[0].CycleID == "" || results[0].CycleID == results[1].CycleID {
		t.Errorf("cycle IDs %q and %q should be distinct and non-empty", results[0].CycleID, results[1].CycleID)
	}
	if strings.Join(order, ",") != "first,third,first,third" {
		t.Errorf("callback order = %v", order)
	}
}

func TestHighlight_RestartsOnRepeatedChange(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Verified"})
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending"})
	s, _ := newTestSyncer(t, pg, ss.URL, WithHighlightDuration(200*time.Millisecond))

	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	ss.set("L-1", "Rejected")
	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	// 240ms after the first change, but only 120ms after the second
	if !mustElement(t, pg, "L-1").Highlighted {
		t.Error("highlight expired on the first timer after a second change")
	}
	if s.PendingHighlights() != 1 {
		t.Errorf("PendingHighlights() = %d, want 1", s.PendingHighlights())
	}

	waitFor(t, time.Second, func() bool {
		return !mustElement(t, pg, "L-1").Highlighted
	}, "highlight was not removed after the restarted timer")
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		sidebar bool
		letters int
		want    bool
	}{
		{name: "status page", path: "/letter_status", sidebar: true, want: true},
		{name: "status page with query path", path: "/app/letter_status/all", sidebar: true, want: true},
		{name: "other page with letters", path: "/dashboard", sidebar: true, letters: 1, want: true},
		{name: "other page without letters", path: "/dashboard", sidebar: true, want: false},
		{name: "login page", path: "/login", sidebar: false, want: false},
		{name: "status page without sidebar", path: "/letter_status", sidebar: false, letters: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := page.NewMemoryPage(tt.path)
			pg.SetSidebar(tt.sidebar)
			for i := 0; i < tt.letters; i++ {
				_ = pg.Add(page.Element{LetterNumber: string(rune('A' + i)), Status: "Pending"})
			}

			s, _ := newTestSyncer(t, pg, "http://localhost")
			if got := s.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStart_NotEligible(t *testing.T) {
	pg := page.NewMemoryPage("/login")
	s, _ := newTestSyncer(t, pg, "http://localhost")

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrNotEligible) {
			t.Errorf("Start() error = %v, want ErrNotEligible", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() blocked on an ineligible page")
	}
}

func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ss := newStatusServer(t, map[string]string{})
	s, _ := newTestSyncer(t, statusPage(t), ss.URL, WithInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Start() returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_PollsAndAppliesChanges(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Pending"})
	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending", HasBadge: true})
	s, rec := newTestSyncer(t, pg, ss.URL, WithInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	waitFor(t, time.Second, func() bool { return ss.requestCount() >= 1 }, "no sync request was made")
	ss.set("L-1", "Verified")
	waitFor(t, time.Second, func() bool { return len(rec.all()) == 1 }, "change was not applied")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start() error = %v", err)
	}

	if el := mustElement(t, pg, "L-1"); el.Status != "Verified" || el.BadgeColor != "success" {
		t.Errorf("element = %+v, want Verified/success", el)
	}
}

func TestStart_NetworkFailureLoggedAndLoopContinues(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	pg := statusPage(t, page.Element{LetterNumber: "L-1", Status: "Pending", HasBadge: true})

	var (
		logBuf syncBuffer
		failed atomic.Int32
	)
	rec := &recorder{}
	s, err := New(pg,
		WithBaseURL(closedURL),
		WithInterval(20*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))),
		WithNotifier(rec),
		WithUpdateCallback(func(r CycleResult) {
			if r.Err != nil {
				failed.Add(1)
			}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return failed.Load() >= 2 }, "loop stopped after the first failure")

	s.Stop()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start() error = %v", err)
	}

	out := logBuf.String()
	warns := strings.Count(out, `level=WARN msg="sync cycle failed"`)
	if warns != int(failed.Load()) {
		t.Errorf("found %d WARN entries for %d failed cycles, want one each\n%s", warns, failed.Load(), out)
	}
	if !strings.Contains(out, "cycle_id=") {
		t.Error("failure log missing cycle_id")
	}
	if el := mustElement(t, pg, "L-1"); el.Status != "Pending" || el.Highlighted {
		t.Errorf("page mutated after failures: %+v", el)
	}
	if len(rec.all()) != 0 {
		t.Errorf("got %d notifications after failures, want 0", len(rec.all()))
	}
}

func TestStart_Twice(t *testing.T) {
	ss := newStatusServer(t, map[string]string{})
	s, _ := newTestSyncer(t, statusPage(t), ss.URL, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	waitFor(t, time.Second, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.started
	}, "Start() never began")

	if err := s.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	cancel()
	<-done
}

func TestStop_EndsStart(t *testing.T) {
	ss := newStatusServer(t, map[string]string{})
	s, _ := newTestSyncer(t, statusPage(t), ss.URL, WithInterval(time.Hour))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	waitFor(t, time.Second, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.started
	}, "Start() never began")

	s.Stop()
	s.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestStop_BeforeStart(t *testing.T) {
	s, _ := newTestSyncer(t, statusPage(t), "http://localhost")

	s.Stop()
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start() after Stop() error = %v, want nil", err)
	}
}

func TestStop_ClearsPendingHighlights(t *testing.T) {
	ss := newStatusServer(t, map[string]string{"L-1": "Verified", "L-2": "Rejected"})
	pg := statusPage(t,
		page.Element{LetterNumber: "L-1", Status: "Pending"},
		page.Element{LetterNumber: "L-2", Status: "Pending"},
	)
	s, _ := newTestSyncer(t, pg, ss.URL, WithHighlightDuration(time.Hour))

	if _, err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if s.PendingHighlights() != 2 {
		t.Fatalf("PendingHighlights() = %d, want 2", s.PendingHighlights())
	}

	s.Stop()

	if s.PendingHighlights() != 0 {
		t.Errorf("PendingHighlights() = %d after Stop, want 0", s.PendingHighlights())
	}
	for _, key := range []string{"L-1", "L-2"} {
		if mustElement(t, pg, key).Highlighted {
			t.Errorf("%s still highlighted after Stop", key)
		}
	}
}
