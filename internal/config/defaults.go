package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	SinkHTTP = "http"
	SinkDir  = "dir"
)

const (
	defaultAPIBind             = "127.0.0.1:7490"
	defaultCaptureDevice       = "/dev/video0"
	defaultCaptureWidth        = 1280
	defaultCaptureHeight       = 720
	defaultCaptureFPS          = 30
	defaultReadyFrames         = 2
	defaultOpenTimeout         = 10
	defaultOutputWidth         = 720
	defaultOutputHeight        = 1280
	defaultOutputFPS           = 30
	defaultMaxRecordingSeconds = 30
	defaultCountdownSeconds    = 3
	defaultFreezeMillis        = 5000
	defaultEditMaxSeconds      = 60
	defaultSampleRate          = 48000
	defaultChannels            = 2
	defaultMonitorPlayer       = "ffplay"
	defaultFlushIntervalMS     = 100
	defaultVideoBitrateKbps    = 2500
	defaultAudioBitrateKbps    = 128
	defaultBufferFrames        = 4
	defaultUploadPath          = "/api/upload-r2"
	defaultMetadataPath        = "/api/videos"
	defaultUploadTimeout       = 60
	defaultRetrySchedule       = "@every 1m"
	defaultMaxAttempts         = 10
	defaultKeepDays            = 14
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultNotifyTimeout       = 10
	defaultNotifyDedupWindow   = 600
	defaultCaption             = "I was at TikTok Accelerate"
	defaultFrameAsset          = "closeup-frame.png"
	defaultLogoAsset           = "logo.png"
	defaultMusicAsset          = "bg_music.mp3"
	defaultCountdownAsset      = "countdown.mp3"
)

// FallbackProfile closes every encoding ladder.
const FallbackProfile = "mp4-h264"

// DefaultProfiles is the encoding ladder, most efficient first.
var DefaultProfiles = []string{"webm-vp9", "webm-vp8", "mp4-h264"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    filepath.Join(xdg.StateHome, "reelbooth"),
			ArtifactDir: filepath.Join(xdg.DataHome, "reelbooth", "artifacts"),
			LogDir:      filepath.Join(xdg.StateHome, "reelbooth", "logs"),
			AssetDir:    filepath.Join(xdg.DataHome, "reelbooth", "assets"),
			APIBind:     defaultAPIBind,
		},
		Capture: Capture{
			Device:      defaultCaptureDevice,
			Width:       defaultCaptureWidth,
			Height:      defaultCaptureHeight,
			FPS:         defaultCaptureFPS,
			ReadyFrames: defaultReadyFrames,
			OpenTimeout: defaultOpenTimeout,
		},
		Output: Output{
			Width:  defaultOutputWidth,
			Height: defaultOutputHeight,
			FPS:    defaultOutputFPS,
		},
		Session: Session{
			MaxRecordingSeconds: defaultMaxRecordingSeconds,
			CountdownSeconds:    defaultCountdownSeconds,
			FreezeMillis:        defaultFreezeMillis,
			EditMaxSeconds:      defaultEditMaxSeconds,
		},
		Audio: Audio{
			MusicPath:      defaultMusicAsset,
			CountdownCue:   defaultCountdownAsset,
			SampleRate:     defaultSampleRate,
			Channels:       defaultChannels,
			MonitorEnabled: true,
			MonitorPlayer:  defaultMonitorPlayer,
		},
		Encoding: Encoding{
			Profiles:         append([]string(nil), DefaultProfiles...),
			FlushIntervalMS:  defaultFlushIntervalMS,
			VideoBitrateKbps: defaultVideoBitrateKbps,
			AudioBitrateKbps: defaultAudioBitrateKbps,
			FFmpegBinary:     "ffmpeg",
			FFprobeBinary:    "ffprobe",
			BufferFrames:     defaultBufferFrames,
		},
		Upload: Upload{
			Sink:           SinkHTTP,
			UploadPath:     defaultUploadPath,
			MetadataPath:   defaultMetadataPath,
			TimeoutSeconds: defaultUploadTimeout,
			RetrySchedule:  defaultRetrySchedule,
			MaxAttempts:    defaultMaxAttempts,
			KeepDays:       defaultKeepDays,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			Uploads:            true,
			Devices:            true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Devices: Devices{
			MonitorHotplug: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// DefaultOverlays returns the branding used when a config file does not
// declare overlays for a mode. Array tables merge into existing slices when
// decoded, so these are applied during normalization rather than in Default.
func DefaultOverlays() Overlays {
	return Overlays{
		Live: []Overlay{{Image: defaultFrameAsset}},
		Edit: []Overlay{
			{Image: defaultLogoAsset, X: 50, Y: 50, Width: 300},
			{Image: defaultFrameAsset},
			{Text: defaultCaption, X: 100, Y: 150, Width: 500, Height: 64, Start: 1, End: 10},
		},
	}
}
