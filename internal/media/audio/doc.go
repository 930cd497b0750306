// Package audio picks the audio track an edited clip contributes to the
// recording.
//
// Imported clips from phones and cameras often carry more than one audio
// track: a main mix plus commentary, a second language, or a silent
// placeholder. Select ranks candidates by:
//  1. Default disposition
//  2. Preferred language, when one is configured
//  3. Commentary and description tracks last
//  4. Channel count, then lossless codecs over lossy
//
// The result carries the audio ordinal ffmpeg expects in `-map 0:a:N`.
package audio
