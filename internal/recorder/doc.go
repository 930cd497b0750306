// Package recorder implements the recording lifecycle controller.
//
// A single goroutine owns every session resource and walks the states
// Idle, WebcamPreview, Countdown, Capturing, Freezing and Finalizing. Each
// render tick first applies the transitions due at the current monotonic
// time and then composes one frame for the resulting state, so countdown,
// capture cap and freeze hold all derive from elapsed time rather than from
// separate timers. Commands (activate, begin, stop, reset, edit) are
// serialized through the same loop and observed via Status and Subscribe.
package recorder
