// Package page models the tracked elements of a rendered letter-status page.
//
// A page is the client-side source of truth for "currently recorded status":
// the sync poller reads tracked keys from it, compares each returned status
// with the recorded one, and writes changes back. The main components are:
//
//   - [Element]: one tracked letter row (key, status, badge, highlight)
//   - [MemoryPage]: thread-safe in-memory page with change subscriptions
//   - [ParseHTML]: builds a [MemoryPage] from server-rendered HTML
//
// The HTML contract understood by [ParseHTML] is the one the letter-status
// server renders: rows carrying both data-letter-number and
// data-letter-status, an optional ".badge" child holding a "bg-<color>"
// class and an "bi-<icon>" icon, a <meta name="csrf-token"> tag, and an
// element with id "sidebar" on authenticated pages.
package page
