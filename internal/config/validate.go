package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// KnownProfiles lists the encoding profile names the encoder understands.
var KnownProfiles = map[string]struct{}{
	"webm-vp9": {},
	"webm-vp8": {},
	"mp4-h264": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGeometry(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateOverlays(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGeometry() error {
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return errors.New("capture.width and capture.height must be positive")
	}
	if c.Capture.FPS <= 0 {
		return errors.New("capture.fps must be positive")
	}
	if c.Capture.ReadyFrames < 1 {
		return errors.New("capture.ready_frames must be at least 1")
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return errors.New("output.width and output.height must be positive")
	}
	if c.Output.Width%2 != 0 || c.Output.Height%2 != 0 {
		return errors.New("output.width and output.height must be even for 4:2:0 encoding")
	}
	if c.Output.FPS <= 0 || c.Output.FPS > 120 {
		return errors.New("output.fps must be between 1 and 120")
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.MaxRecordingSeconds <= 0 {
		return errors.New("session.max_recording_seconds must be positive")
	}
	if c.Session.CountdownSeconds < 0 {
		return errors.New("session.countdown_seconds must be zero or positive")
	}
	if c.Session.FreezeMillis < 0 {
		return errors.New("session.freeze_millis must be zero or positive")
	}
	if c.Session.EditMaxSeconds <= 0 {
		return errors.New("session.edit_max_seconds must be positive")
	}
	return nil
}

func (c *Config) validateOverlays() error {
	check := func(mode string, overlays []Overlay) error {
		for i, o := range overlays {
			hasImage := strings.TrimSpace(o.Image) != ""
			hasText := strings.TrimSpace(o.Text) != ""
			if hasImage == hasText {
				return fmt.Errorf("overlays.%s[%d]: exactly one of image or text must be set", mode, i)
			}
			if o.Width < 0 || o.Height < 0 {
				return fmt.Errorf("overlays.%s[%d]: width and height must not be negative", mode, i)
			}
			if hasText && (o.Width == 0 || o.Height == 0) {
				return fmt.Errorf("overlays.%s[%d]: text overlays need a width and height", mode, i)
			}
			if o.Start != 0 || o.End != 0 {
				if o.Start < 0 || o.End <= o.Start {
					return fmt.Errorf("overlays.%s[%d]: end (%g) must be greater than start (%g)", mode, i, o.End, o.Start)
				}
			}
		}
		return nil
	}
	if err := check("live", c.Overlays.Live); err != nil {
		return err
	}
	return check("edit", c.Overlays.Edit)
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return errors.New("audio.channels must be 1 or 2")
	}
	if c.Audio.MonitorEnabled && c.Audio.MonitorPlayer == "" {
		return errors.New("audio.monitor_player must be set when audio.monitor_enabled is true")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	for _, name := range c.Encoding.Profiles {
		if _, ok := KnownProfiles[name]; !ok {
			return fmt.Errorf("encoding.profiles: unknown profile %q", name)
		}
	}
	if len(c.Encoding.Profiles) < 2 {
		return fmt.Errorf("encoding.profiles: need at least two profiles so negotiation can fall back, got %v", c.Encoding.Profiles)
	}
	if c.Encoding.FlushIntervalMS < 10 {
		return errors.New("encoding.flush_interval_ms must be at least 10")
	}
	if c.Encoding.VideoBitrateKbps <= 0 || c.Encoding.AudioBitrateKbps <= 0 {
		return errors.New("encoding bitrates must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.Sink {
	case SinkHTTP:
		if c.Upload.Enabled && c.Upload.BaseURL == "" {
			return errors.New("upload.base_url must be set when upload.enabled is true (or export REELBOOTH_UPLOAD_BASE_URL)")
		}
	case SinkDir:
		if c.Upload.Enabled && c.Upload.Dir == "" {
			return errors.New("upload.dir must be set when upload.sink is \"dir\"")
		}
	default:
		return fmt.Errorf("upload.sink: unsupported value %q", c.Upload.Sink)
	}
	if c.Upload.TimeoutSeconds <= 0 {
		return errors.New("upload.timeout_seconds must be positive")
	}
	if c.Upload.MaxAttempts <= 0 {
		return errors.New("upload.max_attempts must be positive")
	}
	if _, err := cron.ParseStandard(c.Upload.RetrySchedule); err != nil {
		return fmt.Errorf("upload.retry_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
