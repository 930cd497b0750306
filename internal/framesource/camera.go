package framesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelbooth/internal/logging"
	"reelbooth/internal/services"
)

// CameraOpener opens V4L2 cameras through an ffmpeg decoder. The camera
// microphone is never opened.
type CameraOpener struct {
	FFmpeg      string
	LockDir     string
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

func (o *CameraOpener) Open(ctx context.Context, c Constraints) (Stream, error) {
	device := strings.TrimSpace(c.Device)
	if device == "" {
		return nil, &services.DeviceError{Device: "(unset)", Op: "open", Err: services.ErrNotFound}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(device); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &services.DeviceError{Device: device, Op: "open", Err: services.ErrNotFound}
		}
		return nil, &services.DeviceError{Device: device, Op: "stat", Err: err}
	}
	if err := unix.Access(device, unix.R_OK|unix.W_OK); err != nil {
		return nil, &services.DeviceError{Device: device, Op: "open", Reason: services.ReasonPermission, Err: err}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("camera constraints: invalid size %dx%d", c.Width, c.Height)
	}

	lock, err := acquireDevice(o.LockDir, device)
	if err != nil {
		return nil, err
	}

	binary := o.FFmpeg
	if binary == "" {
		binary = "ffmpeg"
	}
	dec, err := startDecoder(binary, cameraArgs(device, c), false)
	if err != nil {
		_ = lock.release()
		return nil, &services.DeviceError{Device: device, Op: "start decoder", Err: err}
	}

	logger := logging.NewComponentLogger(o.Logger, "camera")
	stream := newRawStream(o.Logger, c.Width, c.Height, c.ReadyFrames)
	stream.release = func() error {
		stopErr := dec.stop()
		if err := lock.release(); err != nil && stopErr == nil {
			stopErr = err
		}
		return stopErr
	}

	go func() {
		decodeErr := stream.decode(dec.stdout)
		waitErr := dec.wait()
		if stream.closing.Load() {
			stream.finish(nil)
			return
		}
		switch {
		case waitErr != nil:
			stream.finish(classifyFailure(device, "capture", dec.stderr.String(), waitErr))
		case decodeErr != nil:
			stream.finish(&services.DeviceError{Device: device, Op: "read", Err: decodeErr})
		default:
			stream.finish(&services.DeviceError{Device: device, Op: "capture", Reason: "stream ended"})
		}
		_ = lock.release()
	}()

	if o.OpenTimeout > 0 {
		go watchReady(stream, o.OpenTimeout, func() {
			stream.finish(&services.DeviceError{Device: device, Op: "open", Reason: services.ReasonNoFrames})
			_ = dec.stop()
		})
	}

	logger.Info("camera opened",
		logging.Device(device),
		logging.String("size", strconv.Itoa(c.Width)+"x"+strconv.Itoa(c.Height)),
		logging.Int("fps", c.FPS),
		logging.String(logging.FieldEventType, "camera_opened"),
	)
	return stream, nil
}

func cameraArgs(device string, c Constraints) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-f", "v4l2"}
	if c.InputFormat != "" {
		args = append(args, "-input_format", c.InputFormat)
	}
	if c.FPS > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.FPS))
	}
	size := fmt.Sprintf("%dx%d", c.Width, c.Height)
	return append(args,
		"-video_size", size,
		"-i", device,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,format=rgba", c.Width, c.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

// watchReady fails the stream when it has not become ready within timeout.
func watchReady(s *rawStream, timeout time.Duration, onTimeout func()) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.Ready() {
				return
			}
		case <-timer.C:
			if !s.Ready() && !s.closing.Load() {
				onTimeout()
			}
			return
		}
	}
}
