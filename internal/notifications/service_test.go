package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"reelbooth/internal/config"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newTestServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "camera"); err != nil {
		t.Fatalf("noop returned %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, requests := newTestServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyArtifactUploaded(ctx, "video-1.webm", "https://cdn.example/video-1.webm"); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyUploadFailed(ctx, "video-2.webm", 3, errors.New("503")); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyCameraChanged(ctx, "remove", "/dev/video0"); err != nil {
		t.Fatal(err)
	}

	got := requests()
	want := []captured{
		{title: "reelbooth - Uploaded", body: "Video uploaded: video-1.webm\nhttps://cdn.example/video-1.webm", tags: "reelbooth,upload,completed"},
		{title: "reelbooth - Upload Failed", body: "Upload of video-2.webm failed after 3 attempts: 503", tags: "reelbooth,upload,failed", priority: "high"},
		{title: "reelbooth - Camera Removed", body: "Camera remove: /dev/video0", tags: "reelbooth,camera,remove", priority: "high"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNtfyServiceSuppressesRepeatsWithinWindow(t *testing.T) {
	srv, requests := newTestServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.DedupWindowSeconds = 60
	clk := clocktesting.NewFakePassiveClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := newService(&cfg, clk)
	ctx := context.Background()

	for range 3 {
		_ = svc.NotifyCameraChanged(ctx, "remove", "/dev/video0")
	}
	if n := len(requests()); n != 1 {
		t.Fatalf("sent %d within window, want 1", n)
	}
	clk.SetTime(clk.Now().Add(61 * time.Second))
	_ = svc.NotifyCameraChanged(ctx, "remove", "/dev/video0")
	if n := len(requests()); n != 2 {
		t.Fatalf("sent %d after window, want 2", n)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	srv, requests := newTestServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Uploads = false
	cfg.Notifications.Devices = false
	svc := NewService(&cfg)
	ctx := context.Background()

	_ = svc.NotifyArtifactUploaded(ctx, "a.webm", "")
	_ = svc.NotifyCameraChanged(ctx, "add", "/dev/video0")
	if n := len(requests()); n != 0 {
		t.Fatalf("sent %d with toggles off", n)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(requests()); n != 1 {
		t.Fatalf("test notification not sent")
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 403")
	}
}
