package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"reelbooth/internal/media"
	"reelbooth/internal/services"
)

// ErrUnsupportedAsset is returned when a file's content does not match the
// kind of asset it was loaded as.
var ErrUnsupportedAsset = errors.New("unsupported asset type")

func decodeImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "read image", path, err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is %s, want an image", ErrUnsupportedAsset, path, mt.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return toRGBA(img), nil
}

// toRGBA converts to premultiplied RGBA so per-frame draws take the fast path.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func sniffAudio(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "assets", "read clip", path, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || strings.HasPrefix(m.String(), "video/") {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is %s, want audio", ErrUnsupportedAsset, path, mt.String())
}

// AudioDecoder converts an audio file to interleaved PCM.
type AudioDecoder interface {
	Decode(ctx context.Context, path string, format media.AudioFormat) (media.PCM, error)
}

// FFmpegDecoder decodes audio with an ffmpeg child process.
type FFmpegDecoder struct {
	Binary string
}

func (d FFmpegDecoder) Decode(ctx context.Context, path string, format media.AudioFormat) (media.PCM, error) {
	binary := d.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return media.PCM{}, services.Wrap(services.ErrExternalTool, "assets", "ffmpeg decode", strings.TrimSpace(stderr.String()), err)
	}
	bpf := format.BytesPerFrame()
	out = out[:len(out)-len(out)%bpf]
	return media.PCM{Format: format, Data: out}, nil
}
