// Package errors defines the error taxonomy for Reductionist.
//
// Errors are classified by a stable Kind that determines both the HTTP
// status of the response and the wire-level name surfaced to clients.
// Lower layers wrap causes as errors travel up the stack; the response
// encoder renders the accumulated chain as the caused_by list with the
// root cause last.
//
// No error is retried inside the server. Clients are expected to retry
// where that makes sense for them.
package errors
