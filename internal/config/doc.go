// Package config loads, normalizes, and validates reelbooth configuration data.
//
// It supplies defaults rooted in the XDG base directories, expands user paths
// (including tilde shortcuts), reads TOML files, and layers .env files and
// REELBOOTH_* environment variables on top, so a kiosk can be tuned (for
// example REELBOOTH_MAX_RECORDING_DURATION) without editing the file. The
// Config type centralizes capture geometry, session timing, overlays, the
// encoding ladder, and asset sink settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
