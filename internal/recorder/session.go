package recorder

import (
	"image"
	"time"

	"reelbooth/internal/compositor"
	"reelbooth/internal/framesource"
	"reelbooth/internal/mixer"
)

// session is one recording attempt. It is owned by the controller loop.
type session struct {
	id          string
	mode        Mode
	device      string
	startedAt   time.Time
	max         time.Duration
	orientation compositor.Orientation
	comp        *compositor.Compositor

	stream framesource.Stream
	sink   EncoderSink
	mixer  *mixer.Mixer
	// track is the session's background music; nil in edit mode.
	track *mixer.Track

	countdownStart time.Time
	remaining      int

	// armed is set once the encoder and mixer run; capture time starts then.
	armed        bool
	captureStart time.Time
	lastProgress time.Duration
	captured     time.Duration

	frozen      *image.RGBA
	freezeStart time.Time

	// frames counts video frames the encoder accepted; scratch holds the
	// latest composition so catch-up frames repeat it.
	frames  int64
	scratch *image.RGBA
}

func (s *session) live() compositor.Live {
	return compositor.Live{Stream: s.stream, Orientation: s.orientation}
}

// elapsed is the capture time at now, capped at the session maximum.
func (s *session) elapsed(now time.Time) time.Duration {
	if !s.armed {
		return 0
	}
	return min(now.Sub(s.captureStart), s.max)
}

func (s *session) progress(elapsed time.Duration) float64 {
	if s.max <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(s.max), 1)
}

// remainingSeconds rounds the countdown up to whole seconds.
func remainingSeconds(left time.Duration) int {
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}
