package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const sampleTokenLine = `# api_token = ""   # or REELBOOTH_API_TOKEN`

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
	AssetDir    string `toml:"asset_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Capture describes the camera the live path opens.
type Capture struct {
	Device      string `toml:"device"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	FPS         int    `toml:"fps"`
	InputFormat string `toml:"input_format"`
	ReadyFrames int    `toml:"ready_frames"`
	OpenTimeout int    `toml:"open_timeout"`
}

// Output describes the composited surface handed to the encoder.
type Output struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	FPS    int `toml:"fps"`
}

// Session contains lifecycle timing. Durations are seconds except FreezeMillis.
type Session struct {
	MaxRecordingSeconds int `toml:"max_recording_seconds"`
	CountdownSeconds    int `toml:"countdown_seconds"`
	FreezeMillis        int `toml:"freeze_millis"`
	EditMaxSeconds      int `toml:"edit_max_seconds"`
}

// Overlay describes one image or caption drawn above the video layer.
// A zero rectangle on an image means full output bounds; a zero window
// means always visible.
type Overlay struct {
	Image  string  `toml:"image"`
	Text   string  `toml:"text"`
	X      int     `toml:"x"`
	Y      int     `toml:"y"`
	Width  int     `toml:"width"`
	Height int     `toml:"height"`
	Start  float64 `toml:"start"`
	End    float64 `toml:"end"`
}

// Overlays lists per-mode overlays in draw order.
type Overlays struct {
	Live []Overlay `toml:"live"`
	Edit []Overlay `toml:"edit"`
}

// Audio configures the background track, cues, and local monitoring.
type Audio struct {
	MusicPath      string `toml:"music"`
	CountdownCue   string `toml:"countdown_cue"`
	SampleRate     int    `toml:"sample_rate"`
	Channels       int    `toml:"channels"`
	MonitorEnabled bool   `toml:"monitor_enabled"`
	MonitorPlayer  string `toml:"monitor_player"`
	// EditLanguage prefers imported-clip audio tracks in this language.
	EditLanguage string `toml:"edit_language"`
}

// Encoding configures the codec/container ladder and the ffmpeg tools.
type Encoding struct {
	Profiles         []string `toml:"profiles"`
	FlushIntervalMS  int      `toml:"flush_interval_ms"`
	VideoBitrateKbps int      `toml:"video_bitrate_kbps"`
	AudioBitrateKbps int      `toml:"audio_bitrate_kbps"`
	FFmpegBinary     string   `toml:"ffmpeg_binary"`
	FFprobeBinary    string   `toml:"ffprobe_binary"`
	BufferFrames     int      `toml:"buffer_frames"`
}

// Upload configures the asset sink and the outbox retry policy.
type Upload struct {
	Enabled        bool   `toml:"enabled"`
	Sink           string `toml:"sink"`
	BaseURL        string `toml:"base_url"`
	UploadPath     string `toml:"upload_path"`
	MetadataPath   string `toml:"metadata_path"`
	Token          string `toml:"token"`
	Dir            string `toml:"dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetrySchedule  string `toml:"retry_schedule"`
	MaxAttempts    int    `toml:"max_attempts"`
	KeepDays       int    `toml:"keep_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Uploads            bool   `toml:"uploads"`
	Devices            bool   `toml:"devices"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Devices configures camera discovery.
type Devices struct {
	MonitorHotplug bool `toml:"monitor_hotplug"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelbooth.
//
// Configuration sections by subsystem:
//   - Paths: state, artifact, log, and asset directories plus the API bind
//   - Capture: camera device and native capture geometry
//   - Output: composited surface geometry and frame rate
//   - Session: max duration, countdown, freeze hold
//   - Overlays: branding images and captions for live and edit sessions
//   - Audio: background track, countdown cue, monitor playback
//   - Encoding: codec/container ladder and ffmpeg settings
//   - Upload: asset sink endpoints and outbox retry policy
//   - Notifications: ntfy push notification settings
//   - Devices: camera hotplug monitoring
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Output        Output        `toml:"output"`
	Session       Session       `toml:"session"`
	Overlays      Overlays      `toml:"overlays"`
	Audio         Audio         `toml:"audio"`
	Encoding      Encoding      `toml:"encoding"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Devices       Devices       `toml:"devices"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "reelbooth", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded, environment overrides applied, and values normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	env, err := loadEnvironment(filepath.Dir(resolvedPath))
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelbooth.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.ArtifactDir, c.Paths.LogDir}
	if c.Upload.Sink == SinkDir && c.Upload.Dir != "" {
		dirs = append(dirs, c.Upload.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OutboxPath returns the sqlite database path for pending artifacts.
func (c *Config) OutboxPath() string {
	return filepath.Join(c.Paths.StateDir, "outbox.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reelbooth.lock")
}

// DeviceLockDir returns the directory holding per-camera lock files.
func (c *Config) DeviceLockDir() string {
	return filepath.Join(c.Paths.StateDir, "devices")
}

// MaxRecording returns the capture duration cap.
func (c *Config) MaxRecording() time.Duration {
	return time.Duration(c.Session.MaxRecordingSeconds) * time.Second
}

// Countdown returns the pre-roll countdown duration.
func (c *Config) Countdown() time.Duration {
	return time.Duration(c.Session.CountdownSeconds) * time.Second
}

// Freeze returns the branding hold duration.
func (c *Config) Freeze() time.Duration {
	return time.Duration(c.Session.FreezeMillis) * time.Millisecond
}

// EditMax returns the duration cap for edit sessions.
func (c *Config) EditMax() time.Duration {
	return time.Duration(c.Session.EditMaxSeconds) * time.Second
}

// FlushInterval returns the encoder chunk cadence.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Encoding.FlushIntervalMS) * time.Millisecond
}

// ResolveAsset maps a configured asset reference to an absolute path.
// Relative references are resolved against paths.asset_dir.
func (c *Config) ResolveAsset(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(c.Paths.AssetDir, ref)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the sample configuration to path. A non-empty
// apiToken is written as paths.api_token so the daemon API starts guarded.
func CreateSample(path, apiToken string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	content := sampleConfig
	if token := strings.TrimSpace(apiToken); token != "" {
		content = strings.Replace(content, sampleTokenLine, fmt.Sprintf("api_token = %q", token), 1)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.Paths.APIToken != "" {
		redacted.Paths.APIToken = "<redacted>"
	}
	if redacted.Upload.Token != "" {
		redacted.Upload.Token = "<redacted>"
	}
	return toml.Marshal(redacted)
}
