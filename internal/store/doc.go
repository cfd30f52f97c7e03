// Package store keeps the server-side status of every letter.
//
// The main components are:
//
//   - [Store]: interface the letter-status server reads and writes through
//   - [MemoryStore]: in-memory implementation for demos and tests
//   - [PgStore]: PostgreSQL implementation backed by a pgx pool, with the
//     schema managed by tern migrations
//   - [Entry]: one (letter number, status) pair, encoded exactly as the
//     status endpoint returns it
//
// Users of the lettersync library should not need to interact with this
// package directly. It is wired up by the serve command.
package store
