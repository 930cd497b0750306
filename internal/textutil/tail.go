package textutil

import (
	"strings"
	"sync"
)

// DefaultTailBytes is the capacity used when a Tail is created with a
// non-positive limit.
const DefaultTailBytes = 4096

// Tail is an io.Writer that keeps only the most recent bytes written to it.
// It is safe for concurrent use.
type Tail struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

// NewTail returns a Tail that retains at most limit bytes.
func NewTail(limit int) *Tail {
	if limit <= 0 {
		limit = DefaultTailBytes
	}
	return &Tail{limit: limit}
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit <= 0 {
		t.limit = DefaultTailBytes
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// String returns the retained bytes with surrounding whitespace trimmed.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// LastLine returns the final non-empty line.
func (t *Tail) LastLine() string {
	s := t.String()
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
