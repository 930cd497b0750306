// Package framesource produces sequential RGBA frames from a V4L2 camera or
// a media file, decoded by an ffmpeg child process.
//
// Streams serve frames only after a minimum number of successful decodes
// (ErrNotReady before that), own their device exclusively through a lock
// file, and release everything on Close, which is idempotent. Open failures
// and decoder crashes surface as services.DeviceError.
package framesource
