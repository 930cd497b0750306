package compositor

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"reelbooth/internal/media"
)

var (
	// ErrSizeMismatch is returned when a destination buffer does not match
	// the configured output size.
	ErrSizeMismatch = errors.New("destination size mismatch")
	// ErrNoSource is returned when Compose is called without a video layer.
	ErrNoSource = errors.New("no video source")
)

// Compositor draws output frames of a fixed size. It is not safe for
// concurrent use; the recorder loop is its only caller.
type Compositor struct {
	width    int
	height   int
	overlays []Overlay
	interp   draw.Interpolator
	captions *captionRenderer
}

// Option customizes a Compositor.
type Option func(*Compositor)

// WithInterpolator replaces the default ApproxBiLinear resampler.
func WithInterpolator(interp draw.Interpolator) Option {
	return func(c *Compositor) {
		if interp != nil {
			c.interp = interp
		}
	}
}

// New returns a compositor for width×height output drawing overlays in order.
func New(width, height int, overlays []Overlay, opts ...Option) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	captions, err := newCaptionRenderer()
	if err != nil {
		return nil, err
	}
	c := &Compositor{
		width:    width,
		height:   height,
		overlays: append([]Overlay(nil), overlays...),
		interp:   draw.ApproxBiLinear,
		captions: captions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Size returns the output dimensions.
func (c *Compositor) Size() image.Point {
	return image.Pt(c.width, c.height)
}

// Overlays returns the overlays drawn on every frame.
func (c *Compositor) Overlays() []Overlay {
	return append([]Overlay(nil), c.overlays...)
}

// Compose renders src and the overlays visible at media time t into dst.
func (c *Compositor) Compose(dst *image.RGBA, src Source, t time.Duration) error {
	if dst == nil || dst.Rect.Dx() != c.width || dst.Rect.Dy() != c.height {
		return ErrSizeMismatch
	}
	clear(dst.Pix)
	if err := c.drawSource(dst, src); err != nil {
		return err
	}
	for _, o := range c.overlays {
		if !o.Visible(t) {
			continue
		}
		if err := c.drawOverlay(dst, o); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot renders only the video layer of src into a new image.
func (c *Compositor) Snapshot(src Live) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	if err := c.drawSource(out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases font faces.
func (c *Compositor) Close() {
	c.captions.close()
}

func (c *Compositor) drawSource(dst *image.RGBA, src Source) error {
	switch s := src.(type) {
	case Live:
		if s.Stream == nil {
			return ErrNoSource
		}
		return s.Stream.WithCurrentFrame(func(f media.Frame) error {
			if f.Image == nil {
				return ErrNoSource
			}
			c.drawFrame(dst, f.Image, s.Orientation)
			return nil
		})
	case Frozen:
		if s.Image == nil {
			return ErrNoSource
		}
		draw.Draw(dst, dst.Rect, s.Image, s.Image.Rect.Min, draw.Src)
		return nil
	default:
		return ErrNoSource
	}
}

func (c *Compositor) drawFrame(dst *image.RGBA, frame *image.RGBA, o Orientation) {
	sr := frame.Rect
	sw, sh := float64(sr.Dx()), float64(sr.Dy())
	if sw == 0 || sh == 0 {
		return
	}
	w, h := float64(c.width), float64(c.height)
	switch o {
	case MirrorRotate:
		ax, ay := w/sh, h/sw
		m := f64.Aff3{
			0, ax, -float64(sr.Min.Y) * ax,
			ay, 0, -float64(sr.Min.X) * ay,
		}
		c.interp.Transform(dst, m, frame, sr, draw.Src, nil)
	default:
		drawW := int(math.Round(sw * h / sh))
		offX := (c.width - drawW) / 2
		c.interp.Scale(dst, image.Rect(offX, 0, offX+drawW, c.height), frame, sr, draw.Src, nil)
	}
}

func (c *Compositor) drawOverlay(dst *image.RGBA, o Overlay) error {
	rect := o.Rect
	if o.Image != nil {
		if rect.Empty() {
			rect = dst.Rect
		}
		b := o.Image.Bounds()
		if b.Dx() == rect.Dx() && b.Dy() == rect.Dy() {
			draw.Draw(dst, rect, o.Image, b.Min, draw.Over)
		} else {
			c.interp.Scale(dst, rect, o.Image, b, draw.Over, nil)
		}
	}
	if o.Text != "" && !rect.Empty() {
		return c.captions.draw(dst, rect, o.Text)
	}
	return nil
}
