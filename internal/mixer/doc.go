// Package mixer produces the audio track of a recording.
//
// A Mixer runs in one of two modes. Music mode routes only the session's
// looped background Track; the capture device microphone is never opened.
// Passthrough mode forwards the embedded audio of a file source unchanged.
// Samples are pulled against capture elapsed time, so the number of frames
// written to the encoder always equals the capture duration times the
// sample rate. Every block also goes to a monitor Output; cues go only to
// the monitor.
package mixer
