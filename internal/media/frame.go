package media

import (
	"image"
	"time"
)

// Frame is one decoded video frame. Image is owned by the producer; callers
// that keep a frame past the next read must Clone it.
type Frame struct {
	Image *image.RGBA
	// PTS is the presentation time relative to the stream start.
	PTS time.Duration
	Seq uint64
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// Clone returns a frame backed by a private copy of the pixels.
func (f Frame) Clone() Frame {
	if f.Image == nil {
		return f
	}
	cp := &image.RGBA{
		Pix:    append([]uint8(nil), f.Image.Pix...),
		Stride: f.Image.Stride,
		Rect:   f.Image.Rect,
	}
	return Frame{Image: cp, PTS: f.PTS, Seq: f.Seq}
}

// FrameSize returns the byte length of one packed RGBA frame.
func FrameSize(width, height int) int {
	return width * height * 4
}
