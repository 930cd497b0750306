// Package preflight provides readiness checks for the tools, devices, and
// paths the booth depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure with a
//     hint; a failing camera check does not stop the daemon because the
//     camera may be plugged in later.
//   - The CLI "reelbooth status" command renders the same results next to
//     the daemon's recorder state.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
