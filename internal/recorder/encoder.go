package recorder

import (
	"context"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"

	"k8s.io/utils/clock"

	"reelbooth/internal/encoding"
	"reelbooth/internal/logging"
)

// EncoderSink is the part of an encoding.Sink the controller drives.
type EncoderSink interface {
	NextBuffer() *image.RGBA
	Release(buf *image.RGBA)
	Commit(buf *image.RGBA) error
	Audio() io.WriteCloser
	Finalized() <-chan encoding.Result
	Stop()
	Abort()
	Dropped() int
	Committed() int
}

// EncoderStarter launches one encoder per session.
type EncoderStarter interface {
	StartEncoder(ctx context.Context, spec encoding.Spec) (EncoderSink, error)
}

// FFmpegEncoder negotiates a profile from the ladder once and starts ffmpeg
// sinks with it.
type FFmpegEncoder struct {
	Binary string
	Prober encoding.Prober
	Ladder []string
	Clock  clock.WithTicker
	Logger *slog.Logger

	mu      sync.Mutex
	profile encoding.Profile
	tried   []string
}

// Profile negotiates on first use and caches a successful result. Failures
// are not cached so a fixed installation is picked up on the next session.
func (e *FFmpegEncoder) Profile(ctx context.Context) (encoding.Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile.Name != "" {
		return e.profile, nil
	}
	prober := e.Prober
	if prober == nil {
		prober = encoding.FFmpegProber{Binary: e.Binary}
	}
	profile, tried, err := encoding.Negotiate(ctx, prober, e.Ladder)
	if err != nil {
		return encoding.Profile{}, err
	}
	e.profile = profile
	e.tried = tried
	if len(tried) > 1 {
		logging.WarnWithContext(e.Logger, "encoding profile fell back", "encoder_fallback",
			logging.String("profile", profile.Name),
			logging.String("tried", strings.Join(tried, ",")),
			logging.String(logging.FieldImpact, "artifacts use a less efficient codec"),
			logging.String(logging.FieldErrorHint, "install ffmpeg with libvpx-vp9 and libopus"),
		)
	}
	return profile, nil
}

// StartEncoder implements EncoderStarter.
func (e *FFmpegEncoder) StartEncoder(ctx context.Context, spec encoding.Spec) (EncoderSink, error) {
	profile, err := e.Profile(ctx)
	if err != nil {
		return nil, err
	}
	spec.Profile = profile
	sink, err := encoding.Start(ctx, spec, encoding.Options{
		Binary: e.Binary,
		Logger: e.Logger,
		Clock:  e.Clock,
	})
	if err != nil {
		return nil, err
	}
	return sink, nil
}
