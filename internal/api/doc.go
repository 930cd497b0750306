// Package api defines the wire types served by the daemon's HTTP API and a
// client the CLI uses to talk to it.
//
// # Key Types
//
// DaemonStatus: lock ownership, recorder snapshot, outbox counts, and what
// sysfs reports about the configured camera.
//
// OutboxListResponse/OutboxEntryResponse: persisted artifacts awaiting or
// past delivery.
//
// ErrorResponse: every non-2xx reply carries one, with an optional
// operator hint.
//
// # Client
//
// NewClient resolves the configured bind address (host:port or a full URL)
// and attaches the bearer token to every request. Events dials the
// websocket stream and hands decoded recorder events to a callback until
// the context ends or the callback returns an error.
//
// IsAPIUnavailable distinguishes "daemon not running" from request errors
// so the CLI can print a useful message.
package api
