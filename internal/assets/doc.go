// Package assets preloads the static overlay images and audio clips a
// session needs (branding frame, logo, countdown cue, background track) and
// holds them for the life of the process.
//
// Content is sniffed with mimetype before decoding so a misconfigured path
// fails at startup with a clear error instead of mid-session.
package assets
