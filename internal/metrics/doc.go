// Package metrics exposes Prometheus collectors for sessions, frames,
// artifacts, uploads and the API, served at /metrics by the daemon.
package metrics
