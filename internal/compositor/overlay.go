package compositor

import (
	"fmt"
	"image"
	"strings"
	"time"

	"reelbooth/internal/config"
)

// Overlay is an image or caption drawn over the video layer. A zero Rect on
// an image overlay covers the whole output. A zero window is always visible.
type Overlay struct {
	Image image.Image
	Text  string
	Rect  image.Rectangle
	Start time.Duration
	End   time.Duration
}

// Visible reports whether the overlay is shown at media time t.
func (o Overlay) Visible(t time.Duration) bool {
	if o.Start == 0 && o.End == 0 {
		return true
	}
	return t >= o.Start && t < o.End
}

// ImageSource resolves overlay image references to decoded images.
type ImageSource interface {
	Image(key string) (image.Image, bool)
}

// OverlaysFromConfig resolves configured descriptors against images that
// were already loaded. An image overlay with only a width or only a height
// keeps the image's aspect ratio.
func OverlaysFromConfig(items []config.Overlay, images ImageSource) ([]Overlay, error) {
	out := make([]Overlay, 0, len(items))
	for i, item := range items {
		o := Overlay{
			Text:  item.Text,
			Start: seconds(item.Start),
			End:   seconds(item.End),
		}
		if o.End < o.Start || (o.End == o.Start && o.Start != 0) {
			return nil, fmt.Errorf("overlay %d: window end must be after start", i)
		}
		x, y := int(item.X), int(item.Y)
		w, h := int(item.Width), int(item.Height)
		if ref := strings.TrimSpace(item.Image); ref != "" {
			img, ok := images.Image(ref)
			if !ok {
				return nil, fmt.Errorf("overlay %d: image %q not loaded", i, ref)
			}
			o.Image = img
			b := img.Bounds()
			switch {
			case w > 0 && h == 0 && b.Dx() > 0:
				h = w * b.Dy() / b.Dx()
			case h > 0 && w == 0 && b.Dy() > 0:
				w = h * b.Dx() / b.Dy()
			}
		} else if strings.TrimSpace(item.Text) == "" {
			return nil, fmt.Errorf("overlay %d: needs an image or text", i)
		}
		if w > 0 && h > 0 {
			o.Rect = image.Rect(x, y, x+w, y+h)
		}
		if o.Image == nil && o.Rect.Empty() {
			return nil, fmt.Errorf("overlay %d: caption needs a width and height", i)
		}
		out = append(out, o)
	}
	return out, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
