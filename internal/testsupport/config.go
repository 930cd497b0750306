package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelbooth/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Monitoring playback is disabled so tests never spawn a player.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AssetDir = filepath.Join(base, "assets")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Audio.MonitorEnabled = false
	defaults := config.DefaultOverlays()
	cfgVal.Overlays = defaults

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSessionTiming overrides max, countdown (seconds) and freeze (ms).
func WithSessionTiming(maxSeconds, countdownSeconds, freezeMillis int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.MaxRecordingSeconds = maxSeconds
		b.cfg.Session.CountdownSeconds = countdownSeconds
		b.cfg.Session.FreezeMillis = freezeMillis
	}
}

// WithUploadDir switches the asset sink to a directory under the temp root.
func WithUploadDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Enabled = true
		b.cfg.Upload.Sink = config.SinkDir
		b.cfg.Upload.Dir = filepath.Join(b.baseDir, "exports")
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, ffmpeg and ffprobe are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			writeStub(b, name, "#!/bin/sh\nexit 0\n")
		}
	}
}

// WithStubScript installs a stub executable with a custom shell body and
// points the matching encoding binary at it when the name is ffmpeg or ffprobe.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		path := writeStub(b, name, "#!/bin/sh\n"+body+"\n")
		switch name {
		case "ffmpeg":
			b.cfg.Encoding.FFmpegBinary = path
		case "ffprobe":
			b.cfg.Encoding.FFprobeBinary = path
		}
	}
}

func writeStub(b *configBuilder, name, script string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
