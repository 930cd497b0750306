package framesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/media/audio"
	"reelbooth/internal/media/ffprobe"
	"reelbooth/internal/services"
)

// FileOpener decodes a media file at its native rate. Embedded audio is
// decoded alongside the video and exposed through Stream.Audio for
// passthrough mixing.
type FileOpener struct {
	FFmpeg  string
	FFprobe string
	// Language prefers audio tracks tagged with this language prefix.
	Language string
	// Unpaced decodes as fast as possible instead of at the native rate.
	Unpaced bool
	Logger  *slog.Logger
}

func (o *FileOpener) Open(ctx context.Context, c Constraints) (Stream, error) {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		return nil, &services.DeviceError{Device: "(unset)", Op: "open", Err: services.ErrNotFound}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &services.DeviceError{Device: path, Op: "open", Err: services.ErrNotFound}
		}
		return nil, &services.DeviceError{Device: path, Op: "stat", Err: err}
	}

	probe, err := ffprobe.Inspect(ctx, o.FFprobe, path)
	if err != nil {
		return nil, &services.DeviceError{Device: path, Op: "probe", Err: err}
	}
	video, ok := probe.Video()
	if !ok {
		return nil, &services.DeviceError{Device: path, Op: "probe", Reason: "no video stream"}
	}
	width, height := video.DisplaySize()
	if width <= 0 || height <= 0 {
		return nil, &services.DeviceError{Device: path, Op: "probe", Reason: fmt.Sprintf("invalid size %dx%d", width, height)}
	}
	track := audio.Select(probe.Streams, o.Language)
	hasAudio := track.Found()

	format := c.Audio
	if format.SampleRate == 0 {
		format = media.DefaultAudioFormat
	}

	binary := o.FFmpeg
	if binary == "" {
		binary = "ffmpeg"
	}
	dec, err := startDecoder(binary, o.args(path, width, height, track.MapSpec(), format), hasAudio)
	if err != nil {
		return nil, &services.DeviceError{Device: path, Op: "start decoder", Err: err}
	}

	stream := newRawStream(o.Logger, width, height, c.ReadyFrames)
	stream.release = dec.stop
	if hasAudio {
		stream.audio = &media.PCMQueue{}
		go func() {
			_, _ = io.Copy(stream.audio, dec.audio)
		}()
	}

	go func() {
		decodeErr := stream.decode(dec.stdout)
		waitErr := dec.wait()
		switch {
		case stream.closing.Load():
			stream.finish(nil)
		case waitErr != nil:
			stream.finish(classifyFailure(path, "decode", dec.stderr.String(), waitErr))
		case decodeErr != nil:
			stream.finish(&services.DeviceError{Device: path, Op: "read", Err: decodeErr})
		default:
			stream.finish(nil)
		}
	}()

	logging.NewComponentLogger(o.Logger, "file-source").Info("media file opened",
		logging.String("path", path),
		logging.String("size", strconv.Itoa(width)+"x"+strconv.Itoa(height)),
		logging.String("audio_track", track.Label()),
		logging.Int("audio_tracks", track.Total),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
		logging.String(logging.FieldEventType, "file_opened"),
	)
	return stream, nil
}

func (o *FileOpener) args(path string, width, height int, audioMap string, format media.AudioFormat) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if !o.Unpaced {
		args = append(args, "-re")
	}
	args = append(args,
		"-i", path,
		"-map", "0:v:0",
		"-vf", fmt.Sprintf("scale=%d:%d,format=rgba", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	if audioMap != "" {
		args = append(args,
			"-map", audioMap,
			"-f", "s16le",
			"-ar", strconv.Itoa(format.SampleRate),
			"-ac", strconv.Itoa(format.Channels),
			"pipe:3",
		)
	}
	return args
}
