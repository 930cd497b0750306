// Package encoding turns composited frames and mixed audio into a finalized
// video artifact.
//
// Negotiate walks the configured profile ladder and picks the first profile
// whose encoders and muxer the local ffmpeg build reports. A Sink then runs a
// single ffmpeg process per session: raw RGBA frames go in on stdin, s16le
// PCM on fd 3, and container bytes come back on stdout. Frame buffers are
// handed out by NextBuffer and returned with Commit, so a buffer is owned by
// exactly one party at a time. Output is collected into flush-interval chunks
// whose concatenation equals the artifact.
//
// Stop is asynchronous and Finalized delivers exactly one Result. Abort kills
// the encoder and discards everything.
package encoding
