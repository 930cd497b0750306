package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelbooth/internal/encoding"
	"reelbooth/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckUploadEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if result := CheckUploadEndpoint(context.Background(), srv.URL, "good"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckUploadEndpoint(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected auth failure")
	}
}

func TestCheckUploadEndpoint_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := CheckUploadEndpoint(context.Background(), srv.URL, "")
	if result.Passed || !strings.Contains(result.Detail, "502") {
		t.Fatalf("expected server error, got %+v", result)
	}
}

func TestCheckUploadEndpoint_MissingURL(t *testing.T) {
	if result := CheckUploadEndpoint(context.Background(), "", ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckCamera(t *testing.T) {
	if result := CheckCamera(""); result.Passed {
		t.Fatal("expected failure for unset device")
	}
	if result := CheckCamera(filepath.Join(t.TempDir(), "video9")); result.Passed || !strings.Contains(result.Detail, "not connected") {
		t.Fatalf("expected missing device failure, got %+v", result)
	}
	regular := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCamera(regular); result.Passed || !strings.Contains(result.Detail, "character device") {
		t.Fatalf("expected non-device failure, got %+v", result)
	}
}

func TestProbeCameraReadsSysfs(t *testing.T) {
	root := t.TempDir()
	node := filepath.Join(root, "video2")
	if err := os.MkdirAll(node, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(node, "name"), []byte("HD Pro Webcam C920\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(node, "index"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := ProbeCamera("/dev/video2", root)
	if !probe.Detected || probe.Name != "HD Pro Webcam C920" || !probe.Capture {
		t.Fatalf("unexpected probe %+v", probe)
	}
	if probe.Detail() != "'HD Pro Webcam C920' on /dev/video2" {
		t.Fatalf("detail = %q", probe.Detail())
	}
	if missing := ProbeCamera("/dev/video7", root); missing.Detected {
		t.Fatalf("unexpected detection %+v", missing)
	}
}

type proberStub struct {
	caps encoding.Capabilities
	err  error
}

func (p proberStub) Capabilities(context.Context) (encoding.Capabilities, error) {
	return p.caps, p.err
}

func TestCheckEncoder(t *testing.T) {
	caps := encoding.Capabilities{
		Encoders: map[string]bool{"libvpx": true, "libopus": true},
		Muxers:   map[string]bool{"webm": true},
	}
	result := CheckEncoder(context.Background(), proberStub{caps: caps}, []string{"webm-vp9", "webm-vp8"})
	if !result.Passed || result.Detail != "webm-vp8 (fell back from webm-vp9)" {
		t.Fatalf("unexpected result %+v", result)
	}

	failed := CheckEncoder(context.Background(), proberStub{err: errors.New("ffmpeg missing")}, []string{"webm-vp9"})
	if failed.Passed {
		t.Fatal("expected failure when capabilities are unavailable")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.AssetDir = ""
	cfg.Upload.Enabled = false

	results := RunAll(context.Background(), cfg)
	// State and artifact directories plus the camera.
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results[:2] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if results[2].Name != "Camera" {
		t.Fatalf("expected camera check last, got %q", results[2].Name)
	}
}

func TestRunAll_IncludesUploadDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUploadDir())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.AssetDir = ""

	results := RunAll(context.Background(), cfg)
	found := false
	for _, r := range results {
		if r.Name == "Upload directory" {
			found = true
			if !r.Passed {
				t.Errorf("upload directory check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected upload directory check in results")
	}
	if len(Failed([]Result{{Passed: true}, {Name: "x"}})) != 1 {
		t.Fatal("Failed should return only failing results")
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Audio.MonitorEnabled = true
	cfg.Audio.MonitorPlayer = "clearly-not-a-player --flag"

	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || !statuses[1].Available {
		t.Fatalf("expected stubbed ffmpeg tools available: %+v", statuses[:2])
	}
	if statuses[2].Available || !statuses[2].Optional || statuses[2].Command != "clearly-not-a-player" {
		t.Fatalf("unexpected monitor status %+v", statuses[2])
	}
}
