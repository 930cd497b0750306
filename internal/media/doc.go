// Package media holds the value types that flow through the capture
// pipeline: decoded RGBA frames and the interleaved PCM format shared by the
// asset cache, the audio mixer, and the encoder.
package media
