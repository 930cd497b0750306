package probe

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedContainer is returned for content that is neither WebM nor
// fragmented MP4.
var ErrUnsupportedContainer = errors.New("unsupported container")

// Track summarizes one elementary stream.
type Track struct {
	ID       int
	Kind     string
	Codec    string
	Samples  int
	Duration time.Duration
}

// Report describes an artifact.
type Report struct {
	Size      int
	MIMEType  string
	Container string
	Duration  time.Duration
	Tracks    []Track
}

// Track returns the first track of kind.
func (r Report) Track(kind string) (Track, bool) {
	for _, t := range r.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return Track{}, false
}

// File reads and inspects path.
func File(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read artifact: %w", err)
	}
	return Bytes(data)
}

// Bytes inspects an in-memory artifact.
func Bytes(data []byte) (Report, error) {
	report := Report{
		Size:     len(data),
		MIMEType: mimetype.Detect(data).String(),
	}
	var err error
	switch {
	case isEBML(data):
		report.Container = "webm"
		report.Tracks, report.Duration, err = inspectWebM(data)
	case isISOBMFF(data):
		report.Container = "mp4"
		report.Tracks, err = inspectFMP4(data)
	default:
		return report, fmt.Errorf("%w: %s", ErrUnsupportedContainer, report.MIMEType)
	}
	if err != nil {
		return report, err
	}
	for _, t := range report.Tracks {
		report.Duration = max(report.Duration, t.Duration)
	}
	return report, nil
}

func isEBML(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3
}

func isISOBMFF(data []byte) bool {
	return len(data) >= 8 && string(data[4:8]) == "ftyp"
}
