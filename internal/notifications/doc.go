// Package notifications delivers kiosk events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Repeated alerts for the same camera or upload are suppressed
// within the configured dedup window so a flapping device does not flood
// the operator.
package notifications
