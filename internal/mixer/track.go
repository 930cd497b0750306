package mixer

import (
	"sync"
	"time"

	"reelbooth/internal/media"
)

// Track is a looped in-memory clip with play and mute state. It is owned by
// one session and released when the session ends.
type Track struct {
	mu      sync.Mutex
	pcm     media.PCM
	pos     int
	playing bool
	muted   bool
}

// NewTrack wraps a decoded clip. The track starts paused and muted.
func NewTrack(pcm media.PCM) *Track {
	bpf := pcm.Format.BytesPerFrame()
	if bpf > 0 {
		pcm.Data = pcm.Data[:len(pcm.Data)-len(pcm.Data)%bpf]
	}
	return &Track{pcm: pcm, muted: true}
}

// Start rewinds, unmutes and plays.
func (t *Track) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = 0
	t.muted = false
	t.playing = true
}

// Stop mutes and pauses at the current position.
func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = true
	t.playing = false
}

// Release stops and rewinds.
func (t *Track) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = true
	t.playing = false
	t.pos = 0
}

// Playing reports whether the track is advancing and audible.
func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing && !t.muted
}

// Position returns the offset into the clip.
func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	bpf := t.pcm.Format.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return t.pcm.Format.Duration(int64(t.pos / bpf))
}

// Format returns the clip's sample layout.
func (t *Track) Format() media.AudioFormat {
	return t.pcm.Format
}

// Fill writes len(p) bytes into p, looping the clip. A paused, muted or
// empty track yields silence and does not advance.
func (t *Track) Fill(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing || t.muted || len(t.pcm.Data) == 0 {
		clear(p)
		return
	}
	for len(p) > 0 {
		n := copy(p, t.pcm.Data[t.pos:])
		p = p[n:]
		t.pos += n
		if t.pos >= len(t.pcm.Data) {
			t.pos = 0
		}
	}
}
