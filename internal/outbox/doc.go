// Package outbox persists finished artifacts until the asset sink accepts
// them.
//
// Every artifact is written to the artifact directory and recorded in a
// SQLite table before any upload is attempted, so a recording survives a
// failed upload, a crash, or a reboot. A worker drains due entries on a
// cron schedule and after each new artifact, backing off exponentially
// between attempts. Entries that exhaust their attempts stay on disk as
// failed until an operator retries them.
package outbox
