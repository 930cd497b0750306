package framesource

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
)

// rawStream decodes packed RGBA frames from a reader into a front/back
// buffer pair. The reader goroutine is the only writer of back; front is
// swapped under mu so WithCurrentFrame readers never observe a partial frame.
type rawStream struct {
	logger     *slog.Logger
	size       image.Point
	readyAfter uint64
	started    time.Time

	mu       sync.RWMutex
	front    *image.RGBA
	frontSeq uint64
	frontPTS time.Duration
	decoded  atomic.Uint64

	audio *media.PCMQueue

	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
	closing  atomic.Bool

	closeOnce sync.Once
	closeErr  error
	release   func() error
}

func newRawStream(logger *slog.Logger, width, height, readyFrames int) *rawStream {
	return &rawStream{
		logger:     logging.NewComponentLogger(logger, "framesource"),
		size:       image.Pt(width, height),
		readyAfter: uint64(readyThreshold(readyFrames)),
		started:    time.Now(),
		done:       make(chan struct{}),
	}
}

// decode reads frames until r ends. A short trailing frame counts as a
// clean end of stream.
func (s *rawStream) decode(r io.Reader) error {
	rect := image.Rectangle{Max: s.size}
	back := image.NewRGBA(rect)
	for {
		if _, err := io.ReadFull(r, back.Pix); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || s.closing.Load() {
				return nil
			}
			return err
		}
		seq := s.decoded.Add(1)
		s.mu.Lock()
		s.front, back = back, s.front
		s.frontSeq = seq
		s.frontPTS = time.Since(s.started)
		s.mu.Unlock()
		if back == nil {
			back = image.NewRGBA(rect)
		}
		if seq == s.readyAfter {
			s.logger.Debug("frame source ready",
				logging.Int("frames", int(seq)),
				logging.Duration("startup", time.Since(s.started)),
			)
		}
	}
}

func (s *rawStream) CurrentFrame() (media.Frame, error) {
	var out media.Frame
	err := s.WithCurrentFrame(func(f media.Frame) error {
		out = f.Clone()
		return nil
	})
	return out, err
}

func (s *rawStream) WithCurrentFrame(fn func(media.Frame) error) error {
	if !s.Ready() {
		return ErrNotReady
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(media.Frame{Image: s.front, PTS: s.frontPTS, Seq: s.frontSeq})
}

func (s *rawStream) Ready() bool {
	return s.decoded.Load() >= s.readyAfter
}

func (s *rawStream) Size() image.Point {
	return s.size
}

func (s *rawStream) Audio() *media.PCMQueue {
	return s.audio
}

func (s *rawStream) Done() <-chan struct{} {
	return s.done
}

func (s *rawStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// finish records the terminal error (first one wins) and closes Done.
func (s *rawStream) finish(err error) {
	if err != nil && !s.closing.Load() {
		s.errMu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.errMu.Unlock()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *rawStream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if s.release != nil {
			s.closeErr = s.release()
		}
		if s.audio != nil {
			s.audio.Close()
		}
		s.finish(nil)
		s.logger.Debug("frame source closed", logging.Int("frames", int(s.decoded.Load())))
	})
	return s.closeErr
}
