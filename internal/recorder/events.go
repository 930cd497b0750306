package recorder

import (
	"sync"
	"time"

	"reelbooth/internal/encoding"
)

// EventKind classifies controller events.
type EventKind string

const (
	EventState     EventKind = "state"
	EventCountdown EventKind = "countdown"
	EventProgress  EventKind = "progress"
	EventArtifact  EventKind = "artifact"
	EventError     EventKind = "error"
)

// ArtifactInfo describes a finalized artifact without its payload.
type ArtifactInfo struct {
	Filename   string    `json:"filename"`
	MIMEType   string    `json:"mime_type"`
	Profile    string    `json:"profile"`
	Size       int       `json:"size"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func describeArtifact(a encoding.Artifact) *ArtifactInfo {
	return &ArtifactInfo{
		Filename:   a.Filename,
		MIMEType:   a.MIMEType,
		Profile:    a.Profile,
		Size:       a.Size(),
		DurationMS: a.Duration.Milliseconds(),
		CreatedAt:  a.CreatedAt,
	}
}

// Event is published on every state change, countdown second, progress
// update, artifact, and failure.
type Event struct {
	Kind      EventKind `json:"kind"`
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	// Remaining is the countdown in whole seconds.
	Remaining int     `json:"countdown_remaining,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	// Artifact carries the payload for in-process subscribers only.
	Artifact     *encoding.Artifact `json:"-"`
	ArtifactInfo *ArtifactInfo      `json:"artifact,omitempty"`
	Error        string             `json:"error,omitempty"`
	Hint         string             `json:"hint,omitempty"`
	Time         time.Time          `json:"time"`
}

// Broadcaster fans events out to subscribers. Slow subscribers miss events
// rather than stalling the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers e to every subscriber with room for it.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscription. Later subscriptions receive a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
