// Package poller provides the periodic status polling used by lettersync.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with pooled connections, per-request
//     timeouts and a response size limit; [Client.CheckStatus] speaks the
//     letter-status wire format
//   - [Scheduler]: runs a sync cycle on a fixed interval with optional
//     single-flight, panic recovery and per-cycle correlation IDs
//
// Users of the lettersync library should not need to interact with this
// package directly. Configuration is done through the main lettersync package.
package poller
