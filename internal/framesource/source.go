package framesource

import (
	"context"
	"errors"
	"image"

	"reelbooth/internal/media"
)

// ErrNotReady is returned by frame accessors until the stream has decoded
// its minimum number of frames.
var ErrNotReady = errors.New("frame source not ready")

// Constraints selects and shapes a source. Cameras use Device; files use Path.
type Constraints struct {
	Device      string
	Path        string
	Width       int
	Height      int
	FPS         int
	InputFormat string
	// ReadyFrames is the number of decoded frames required before frames are
	// served. Values below 2 are raised to 2.
	ReadyFrames int
	Audio       media.AudioFormat
}

// Stream is an open source of sequential RGBA frames.
type Stream interface {
	// CurrentFrame returns a private copy of the latest frame.
	CurrentFrame() (media.Frame, error)
	// WithCurrentFrame runs fn against the latest frame without copying. The
	// frame must not be retained after fn returns.
	WithCurrentFrame(fn func(media.Frame) error) error
	Ready() bool
	Size() image.Point
	// Audio returns embedded source audio, or nil when the source has none.
	Audio() *media.PCMQueue
	// Done is closed when the source ends or fails.
	Done() <-chan struct{}
	// Err reports the failure that ended the stream; nil for a clean end.
	Err() error
	// Close releases the decoder and device. Safe to call repeatedly.
	Close() error
}

// Opener opens streams.
type Opener interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

func readyThreshold(n int) int {
	if n < 2 {
		return 2
	}
	return n
}
