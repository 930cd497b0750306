package media

import "time"

// AudioFormat describes interleaved signed 16-bit little-endian PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// DefaultAudioFormat matches the encoder input and the asset cache decode.
var DefaultAudioFormat = AudioFormat{SampleRate: 48000, Channels: 2}

// BytesPerFrame returns the size of one sample frame across all channels.
func (f AudioFormat) BytesPerFrame() int {
	return 2 * f.Channels
}

// FramesAt returns the number of sample frames due by elapsed, rounded down.
func (f AudioFormat) FramesAt(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed) * int64(f.SampleRate) / int64(time.Second)
}

// Duration converts a sample frame count to wall time.
func (f AudioFormat) Duration(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

// PCM is a decoded clip held in memory.
type PCM struct {
	Format AudioFormat
	Data   []byte
}

// Frames returns the number of sample frames in the clip.
func (p PCM) Frames() int64 {
	bpf := p.Format.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return int64(len(p.Data) / bpf)
}

// Duration returns the clip length.
func (p PCM) Duration() time.Duration {
	return p.Format.Duration(p.Frames())
}
