// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//
// Inspect executes ffprobe and returns the parsed Result. The file Frame
// Source uses it to size its decode buffers and to decide whether a source
// carries audio for passthrough.
package ffprobe
