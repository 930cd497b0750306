package encoding

import (
	"io"
	"os"
	"sync"
)

// audioPipe decouples mixer writes from the encoder's fd 3. Writes append to
// an in-memory buffer and never block on the child process.
type audioPipe struct {
	w *os.File

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	written int64
}

func newAudioPipe(w *os.File) *audioPipe {
	a := &audioPipe{w: w}
	a.cond = sync.NewCond(&a.mu)
	return a
}

func (a *audioPipe) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, io.ErrClosedPipe
	}
	a.buf = append(a.buf, p...)
	a.cond.Signal()
	return len(p), nil
}

// Close lets queued audio drain, then closes the pipe so the encoder sees EOF.
func (a *audioPipe) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.cond.Broadcast()
	return nil
}

// abort discards queued audio and closes the pipe immediately.
func (a *audioPipe) abort() {
	a.mu.Lock()
	a.closed = true
	a.buf = nil
	a.cond.Broadcast()
	a.mu.Unlock()
	_ = a.w.Close()
}

// Written returns the number of bytes delivered to the encoder.
func (a *audioPipe) Written() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

func (a *audioPipe) run() error {
	broken := false
	for {
		a.mu.Lock()
		for len(a.buf) == 0 && !a.closed {
			a.cond.Wait()
		}
		if len(a.buf) == 0 && a.closed {
			a.mu.Unlock()
			_ = a.w.Close()
			return nil
		}
		block := a.buf
		a.buf = nil
		a.mu.Unlock()

		if broken {
			continue
		}
		n, err := a.w.Write(block)
		a.mu.Lock()
		a.written += int64(n)
		a.mu.Unlock()
		if err != nil {
			broken = true
		}
	}
}
