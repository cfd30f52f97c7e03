// Package server provides the HTTP server that owns letter statuses: the
// pages a sync client loads and the JSON API it polls.
//
// The server renders the embedded templates of package web and answers:
//
//   - GET /letter_status: the tracked page, with sidebar, CSRF token and one
//     row per letter
//   - GET /login: a page without the sidebar, on which sync stays off
//   - POST /api/letter-status: {"letter_numbers": [...]} in, a JSON array of
//     {"letter_number", "status"} out, unknown numbers omitted
//   - POST /api/letters/{number}/status: operator status changes
//
// POST routes check the X-CSRFToken header against tokens issued when pages
// were rendered. The server shuts down gracefully when the context passed
// to [Server.Start] is cancelled, with a 5-second timeout for in-flight
// requests.
package server
