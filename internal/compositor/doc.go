// Package compositor renders output frames for a recording session.
//
// Each call to Compose clears the destination, draws the video layer from a
// live stream or a frozen snapshot, then draws the session's overlays in
// declaration order. Text overlays are only drawn while their window
// contains the media time passed to Compose.
package compositor
