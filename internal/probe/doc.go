// Package probe inspects finalized artifacts without external tools.
//
// Content is sniffed with mimetype, then parsed in-process: WebM through
// ebml-go and fragmented MP4 through mediacommon. The report lists each
// track with its codec, sample count and duration so the audio span can be
// compared with the capture time.
package probe
