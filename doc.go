// Package lettersync keeps the letter status badges on a rendered page
// consistent with the server by periodic pull.
//
// A [Syncer] is bound to one page session. On every tick it collects the
// letter numbers tracked on the page, asks the server for their current
// status, and for each letter whose status changed it restyles the badge,
// emits one [Notification], and highlights the row for a short while.
//
// # Quick Start
//
//	pg, err := lettersync.LoadPage(ctx, "http://localhost:8080/letter_status", 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	s, err := lettersync.New(pg,
//	    lettersync.WithBaseURL("http://localhost:8080"),
//	    lettersync.WithInterval(30*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	s.Start(ctx) // blocks until context is cancelled
//
// # Wire Format
//
// Each cycle sends
//
//	POST <base>/api/letter-status
//	Content-Type: application/json
//	X-CSRFToken: <token from the page>
//
//	{"letter_numbers": ["L-100", "L-200"]}
//
// and expects a JSON array of {"letter_number", "status"} objects. Letters
// missing from the response are left alone; letters in the response that
// are not on the page are ignored.
//
// # Failures
//
// Every failure of a cycle wraps [ErrSyncFailed]. When polling with
// [Syncer.Start], failures are logged at WARN and the next tick runs as
// usual; there is no retry or backoff.
//
// # Architecture
//
//   - page: tracked elements, HTML parsing, change subscriptions
//   - internal/poller: pooled HTTP client and the tick scheduler
//   - internal/server: a reference letter-status server
//   - internal/ledger: server-side letter statuses (memory or Postgres)
//   - internal/tui: terminal rendering of a synced page
package lettersync
