package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelbooth/internal/config"
	"reelbooth/internal/daemon"
	"reelbooth/internal/outbox"
	"reelbooth/internal/preflight"
	"reelbooth/internal/recorder"
	"reelbooth/internal/testsupport"
)

// scriptedRecorder walks the live lifecycle instantly so CLI commands can
// be exercised against a real daemon without a camera.
type scriptedRecorder struct {
	events *recorder.Broadcaster

	mu       sync.Mutex
	status   recorder.Status
	calls    []string
	editPath string
}

func newScriptedRecorder() *scriptedRecorder {
	return &scriptedRecorder{
		events: recorder.NewBroadcaster(),
		status: recorder.Status{State: recorder.Idle},
	}
}

func (r *scriptedRecorder) Run(ctx context.Context) error {
	<-ctx.Done()
	r.events.Close()
	return nil
}

func (r *scriptedRecorder) record(call string, state recorder.State) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.status.State = state
	if state != recorder.Idle {
		r.status.SessionID = "s1"
		r.status.Mode = recorder.ModeLive
	} else {
		r.status.SessionID = ""
		r.status.Mode = ""
	}
	r.mu.Unlock()
}

func (r *scriptedRecorder) publishState(state recorder.State) {
	r.events.Publish(recorder.Event{Kind: recorder.EventState, State: state, SessionID: "s1", Time: time.Now()})
}

func (r *scriptedRecorder) Activate(context.Context) error {
	r.record("activate", recorder.WebcamPreview)
	r.publishState(recorder.WebcamPreview)
	return nil
}

func (r *scriptedRecorder) Begin(context.Context) error {
	r.mu.Lock()
	state := r.status.State
	r.mu.Unlock()
	if state != recorder.WebcamPreview {
		return fmt.Errorf("%w: begin not allowed while %s", recorder.ErrInvalidState, state)
	}
	r.record("begin", recorder.Countdown)
	go func() {
		r.events.Publish(recorder.Event{Kind: recorder.EventCountdown, State: recorder.Countdown, Remaining: 1, Time: time.Now()})
		r.publishState(recorder.Capturing)
		r.publishState(recorder.Finalizing)
		r.events.Publish(recorder.Event{
			Kind:  recorder.EventArtifact,
			State: recorder.Finalizing,
			ArtifactInfo: &recorder.ArtifactInfo{
				Filename: "video-s1.webm",
				MIMEType: "video/webm",
				Size:     42,
			},
			Time: time.Now(),
		})
		r.record("finished", recorder.Idle)
		r.publishState(recorder.Idle)
	}()
	return nil
}

func (r *scriptedRecorder) Stop(context.Context) error {
	r.record("stop", recorder.Finalizing)
	return nil
}

func (r *scriptedRecorder) Reset(context.Context) error {
	r.record("reset", recorder.Idle)
	return nil
}

func (r *scriptedRecorder) Edit(_ context.Context, path string) error {
	r.mu.Lock()
	r.editPath = path
	r.mu.Unlock()
	r.record("edit", recorder.Capturing)
	return nil
}

func (r *scriptedRecorder) Preview(context.Context) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 6)), nil
}

func (r *scriptedRecorder) Subscribe(buffer int) (<-chan recorder.Event, func()) {
	return r.events.Subscribe(buffer)
}

func (r *scriptedRecorder) Status() recorder.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *scriptedRecorder) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type memoryOutbox struct {
	mu      sync.Mutex
	entries []*outbox.Entry
}

func (m *memoryOutbox) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *memoryOutbox) List(_ context.Context, statuses ...outbox.Status) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.entries {
		if len(statuses) == 0 {
			out = append(out, e)
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *memoryOutbox) Summary(context.Context) (outbox.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s outbox.Summary
	for _, e := range m.entries {
		s.Total++
		switch e.Status {
		case outbox.StatusPending:
			s.Pending++
		case outbox.StatusUploading:
			s.Uploading++
		case outbox.StatusUploaded:
			s.Uploaded++
		case outbox.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (m *memoryOutbox) Retry(_ context.Context, id string) (*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusPending
			e.NextAttemptAt = nil
			return e, nil
		}
	}
	return nil, fmt.Errorf("entry %s not found", id)
}

type cliTestEnv struct {
	cfg        *config.Config
	recorder   *scriptedRecorder
	outbox     *memoryOutbox
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Devices.MonitorHotplug = false
	cfg.Overlays = config.Overlays{}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.AssetDir, 0o755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	rec := newScriptedRecorder()
	now := time.Now().UTC()
	box := &memoryOutbox{entries: []*outbox.Entry{
		{ID: "e1", Filename: "video-a.webm", Status: outbox.StatusFailed, Size: 2048, Attempts: 3, LastError: "sink unreachable", UpdatedAt: now},
		{ID: "e2", Filename: "video-b.webm", Status: outbox.StatusUploaded, Size: 512, Attempts: 1, URL: "https://example.test/v/b", UpdatedAt: now},
	}}

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Recorder:  rec,
		Outbox:    box,
		Preflight: func(context.Context, *config.Config) []preflight.Result { return nil },
		SysfsRoot: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})

	return &cliTestEnv{
		cfg:        cfg,
		recorder:   rec,
		outbox:     box,
		daemon:     d,
		apiAddr:    d.APIAddress(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
