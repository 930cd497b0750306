package compositor

import (
	"image"

	"reelbooth/internal/media"
)

// Orientation selects how a live frame is mapped onto the output.
type Orientation int

const (
	// Fit scales to the output height, cropping wider sources and padding
	// narrower ones.
	Fit Orientation = iota
	// MirrorRotate mirrors and rotates a landscape frame into portrait so
	// source (sx, sy) lands on output (sy·W/srcH, sx·H/srcW).
	MirrorRotate
)

func (o Orientation) String() string {
	switch o {
	case Fit:
		return "fit"
	case MirrorRotate:
		return "mirror-rotate"
	default:
		return "unknown"
	}
}

// FrameReader exposes the latest decoded frame without copying it.
type FrameReader interface {
	WithCurrentFrame(fn func(media.Frame) error) error
}

// Source is the video layer drawn under the overlays: Live or Frozen.
type Source interface {
	source()
}

// Live draws the current frame of a stream.
type Live struct {
	Stream      FrameReader
	Orientation Orientation
}

// Frozen draws a fixed image 1:1.
type Frozen struct {
	Image *image.RGBA
}

func (Live) source()   {}
func (Frozen) source() {}
