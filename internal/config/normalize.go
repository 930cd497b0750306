package config

import (
	"fmt"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOverlays()
	c.normalizeEncoding()
	c.normalizeUpload()
	c.normalizeLogging()
	c.Capture.Device = strings.TrimSpace(c.Capture.Device)
	c.Audio.MonitorPlayer = strings.TrimSpace(c.Audio.MonitorPlayer)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name   string
		target *string
	}{
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.artifact_dir", &c.Paths.ArtifactDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.asset_dir", &c.Paths.AssetDir},
		{"upload.dir", &c.Upload.Dir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.target))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.target = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeOverlays() {
	defaults := DefaultOverlays()
	if c.Overlays.Live == nil {
		c.Overlays.Live = defaults.Live
	}
	if c.Overlays.Edit == nil {
		c.Overlays.Edit = defaults.Edit
	}
}

func (c *Config) normalizeEncoding() {
	profiles := make([]string, 0, len(c.Encoding.Profiles))
	seen := make(map[string]struct{}, len(c.Encoding.Profiles))
	for _, name := range c.Encoding.Profiles {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		profiles = append(profiles, name)
	}
	if len(profiles) == 0 {
		profiles = append(profiles, DefaultProfiles...)
	}
	if !slices.Contains(profiles, FallbackProfile) {
		profiles = append(profiles, FallbackProfile)
	}
	c.Encoding.Profiles = profiles
	if strings.TrimSpace(c.Encoding.FFmpegBinary) == "" {
		c.Encoding.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(c.Encoding.FFprobeBinary) == "" {
		c.Encoding.FFprobeBinary = "ffprobe"
	}
	if c.Encoding.BufferFrames <= 0 {
		c.Encoding.BufferFrames = defaultBufferFrames
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Sink = strings.ToLower(strings.TrimSpace(c.Upload.Sink))
	if c.Upload.Sink == "" {
		c.Upload.Sink = SinkHTTP
	}
	c.Upload.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upload.BaseURL), "/")
	if strings.TrimSpace(c.Upload.UploadPath) == "" {
		c.Upload.UploadPath = defaultUploadPath
	}
	if strings.TrimSpace(c.Upload.MetadataPath) == "" {
		c.Upload.MetadataPath = defaultMetadataPath
	}
	if strings.TrimSpace(c.Upload.RetrySchedule) == "" {
		c.Upload.RetrySchedule = defaultRetrySchedule
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
