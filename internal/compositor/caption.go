package compositor

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// captionBox is white at 0.9 opacity.
var captionBox = color.NRGBA{R: 255, G: 255, B: 255, A: 230}

const captionPadding = 8

type captionRenderer struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

func newCaptionRenderer() (*captionRenderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse caption font: %w", err)
	}
	return &captionRenderer{font: f, faces: make(map[int]font.Face)}, nil
}

func (r *captionRenderer) face(size int) (font.Face, error) {
	if size < 1 {
		size = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if face, ok := r.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("caption face %dpx: %w", size, err)
	}
	r.faces[size] = face
	return face, nil
}

// draw fills rect with the caption box and centers text inside it, shrinking
// the type until it fits the box width.
func (r *captionRenderer) draw(dst draw.Image, rect image.Rectangle, text string) error {
	draw.Draw(dst, rect, image.NewUniform(captionBox), image.Point{}, draw.Over)

	size := rect.Dy() / 2
	face, err := r.face(size)
	if err != nil {
		return err
	}
	d := &font.Drawer{Dst: dst, Src: image.Black, Face: face}
	width := d.MeasureString(text).Ceil()
	if avail := rect.Dx() - 2*captionPadding; width > avail && avail > 0 {
		size = size * avail / width
		if face, err = r.face(size); err != nil {
			return err
		}
		d.Face = face
		width = d.MeasureString(text).Ceil()
	}

	m := face.Metrics()
	textHeight := (m.Ascent + m.Descent).Ceil()
	x := rect.Min.X + (rect.Dx()-width)/2
	baseline := rect.Min.Y + (rect.Dy()-textHeight)/2 + m.Ascent.Ceil()
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
	return nil
}

func (r *captionRenderer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for size, face := range r.faces {
		_ = face.Close()
		delete(r.faces, size)
	}
}
