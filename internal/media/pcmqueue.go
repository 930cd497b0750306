package media

import "sync"

// PCMQueue is a goroutine-safe FIFO of interleaved PCM bytes fed by a
// decoder and drained by the mixer at its own pace.
type PCMQueue struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
	total  int64
}

// Write appends decoded bytes. Writes after Close are discarded.
func (q *PCMQueue) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.buf = append(q.buf, p...)
		q.total += int64(len(p))
	}
	return len(p), nil
}

// ReadAvailable copies up to len(p) buffered bytes and never blocks.
func (q *PCMQueue) ReadAvailable(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	if len(q.buf) == 0 {
		q.buf = nil
	}
	return n
}

// Len returns the number of buffered bytes.
func (q *PCMQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Total returns the number of bytes ever written.
func (q *PCMQueue) Total() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Close drops buffered data and ignores later writes.
func (q *PCMQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.buf = nil
}
