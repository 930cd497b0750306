package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelbooth/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, resolved, exists, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	if resolved != filepath.Join(dir, "missing.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.MaxRecording() != 30*time.Second {
		t.Fatalf("unexpected max recording %s", cfg.MaxRecording())
	}
	if cfg.Countdown() != 3*time.Second || cfg.Freeze() != 5*time.Second {
		t.Fatalf("unexpected countdown/freeze %s/%s", cfg.Countdown(), cfg.Freeze())
	}
	if cfg.Output.Width != 720 || cfg.Output.Height != 1280 {
		t.Fatalf("unexpected output geometry %dx%d", cfg.Output.Width, cfg.Output.Height)
	}
	if got := strings.Join(cfg.Encoding.Profiles, ","); got != "webm-vp9,webm-vp8,mp4-h264" {
		t.Fatalf("unexpected ladder %q", got)
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) || !strings.Contains(cfg.Paths.StateDir, "reelbooth") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if len(cfg.Overlays.Live) != 1 || len(cfg.Overlays.Edit) != 3 {
		t.Fatalf("expected default overlays, got %+v", cfg.Overlays)
	}
	if cfg.FlushInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected flush interval %s", cfg.FlushInterval())
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "reelbooth.toml")
	content := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"
asset_dir = "` + filepath.Join(dir, "assets") + `"

[session]
max_recording_seconds = 12

[encoding]
profiles = [" WEBM-VP8 ", "mp4-h264", "webm-vp8"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Session.MaxRecordingSeconds != 12 {
		t.Fatalf("unexpected max recording %d", cfg.Session.MaxRecordingSeconds)
	}
	if got := strings.Join(cfg.Encoding.Profiles, ","); got != "webm-vp8,mp4-h264" {
		t.Fatalf("expected deduplicated lowercase ladder, got %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if got := cfg.ResolveAsset("logo.png"); got != filepath.Join(dir, "assets", "logo.png") {
		t.Fatalf("unexpected asset path %q", got)
	}
	if got := cfg.ResolveAsset("/abs/frame.png"); got != "/abs/frame.png" {
		t.Fatalf("absolute asset path rewritten to %q", got)
	}
	if cfg.OutboxPath() != filepath.Join(dir, "state", "outbox.db") {
		t.Fatalf("unexpected outbox path %q", cfg.OutboxPath())
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envFile := filepath.Join(dir, "booth.env")
	if err := os.WriteFile(envFile, []byte("REELBOOTH_MAX_RECORDING_DURATION=15\nREELBOOTH_CAPTURE_DEVICE=/dev/video2\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv(config.EnvFileVar, envFile)
	t.Setenv("REELBOOTH_CAPTURE_DEVICE", "/dev/video4")

	cfg, _, _, err := config.Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.MaxRecordingSeconds != 15 {
		t.Fatalf("expected env file override, got %d", cfg.Session.MaxRecordingSeconds)
	}
	if cfg.Capture.Device != "/dev/video4" {
		t.Fatalf("expected process env to win, got %q", cfg.Capture.Device)
	}
}

func TestEnvOverrideRejectsNonInteger(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("REELBOOTH_MAX_RECORDING_DURATION", "thirty")
	if _, _, _, err := config.Load(filepath.Join(dir, "absent.toml")); err == nil {
		t.Fatal("expected error for non-integer override")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero max", func(c *config.Config) { c.Session.MaxRecordingSeconds = 0 }, "max_recording_seconds"},
		{"odd output", func(c *config.Config) { c.Output.Width = 721 }, "even"},
		{"unknown profile", func(c *config.Config) { c.Encoding.Profiles = []string{"avi-divx"} }, "unknown profile"},
		{"single rung", func(c *config.Config) { c.Encoding.Profiles = []string{"mp4-h264"} }, "at least two profiles"},
		{"inverted window", func(c *config.Config) {
			c.Overlays.Edit = []config.Overlay{{Text: "hi", Width: 10, Height: 10, Start: 5, End: 2}}
		}, "greater than start"},
		{"image and text", func(c *config.Config) {
			c.Overlays.Live = []config.Overlay{{Image: "a.png", Text: "b"}}
		}, "exactly one"},
		{"upload without url", func(c *config.Config) { c.Upload.Enabled = true }, "base_url"},
		{"bad schedule", func(c *config.Config) { c.Upload.RetrySchedule = "whenever" }, "retry_schedule"},
		{"surround channels", func(c *config.Config) { c.Audio.Channels = 6 }, "channels"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestLoadAppendsFallbackProfile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[encoding]\nprofiles = [\"WebM-VP9\"]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(cfg.Encoding.Profiles, ","); got != "webm-vp9,"+config.FallbackProfile {
		t.Fatalf("profiles = %s", got)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path, ""); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if len(cfg.Overlays.Edit) != 3 {
		t.Fatalf("expected three edit overlays, got %d", len(cfg.Overlays.Edit))
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if loaded.Overlays.Edit[2].End != 10 {
		t.Fatalf("unexpected caption window %+v", loaded.Overlays.Edit[2])
	}
	if loaded.Paths.APIToken != "" {
		t.Fatalf("sample without token should leave api_token unset, got %q", loaded.Paths.APIToken)
	}
}

func TestCreateSampleWritesToken(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path, "tok-123"); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Paths.APIToken != "tok-123" {
		t.Fatalf("api token = %q", loaded.Paths.APIToken)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIToken = "secret"
	cfg.Upload.Token = "secret2"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Fatalf("expected secrets to be redacted: %s", data)
	}
}
