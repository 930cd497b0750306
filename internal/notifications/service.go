package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"reelbooth/internal/config"
)

const userAgent = "reelbooth/0.1.0"

// Service defines the notification surface used by the daemon and outbox.
type Service interface {
	NotifyArtifactUploaded(ctx context.Context, filename, url string) error
	NotifyUploadFailed(ctx context.Context, filename string, attempts int, err error) error
	NotifyCameraChanged(ctx context.Context, action, device string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	return newService(cfg, clock.RealClock{})
}

func newService(cfg *config.Config, clk clock.PassiveClock) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		clock:    clk,
		uploads:  cfg.Notifications.Uploads,
		devices:  cfg.Notifications.Devices,
		errors:   cfg.Notifications.Errors,
		window:   time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		sent:     make(map[string]time.Time),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	// dedupKey suppresses repeats of the same alert inside the window.
	dedupKey string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	clock    clock.PassiveClock
	uploads  bool
	devices  bool
	errors   bool
	window   time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

func (n *ntfyService) NotifyArtifactUploaded(ctx context.Context, filename, url string) error {
	if !n.uploads {
		return nil
	}
	message := fmt.Sprintf("Video uploaded: %s", strings.TrimSpace(filename))
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	return n.send(ctx, payload{
		title:   "reelbooth - Uploaded",
		message: message,
		tags:    []string{"reelbooth", "upload", "completed"},
	})
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, filename string, attempts int, err error) error {
	if !n.uploads {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "reelbooth - Upload Failed",
		message:  fmt.Sprintf("Upload of %s failed after %d attempts: %s", strings.TrimSpace(filename), attempts, reason),
		tags:     []string{"reelbooth", "upload", "failed"},
		priority: "high",
		dedupKey: "upload-failed:" + filename,
	})
}

func (n *ntfyService) NotifyCameraChanged(ctx context.Context, action, device string) error {
	if !n.devices {
		return nil
	}
	action = strings.TrimSpace(action)
	device = strings.TrimSpace(device)
	data := payload{
		title:    "reelbooth - Camera " + titleWord(action),
		message:  fmt.Sprintf("Camera %s: %s", action, device),
		tags:     []string{"reelbooth", "camera", action},
		dedupKey: "camera:" + action + ":" + device,
	}
	if action == "remove" {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "reelbooth - Error",
		message:  builder.String(),
		tags:     []string{"reelbooth", "error", "alert"},
		priority: "high",
		dedupKey: "error:" + builder.String(),
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "reelbooth - Test",
		message:  "Notification system test",
		tags:     []string{"reelbooth", "test"},
		priority: "low",
	})
}

// suppressed records key and reports whether it was sent within the window.
func (n *ntfyService) suppressed(key string) bool {
	if key == "" || n.window <= 0 {
		return false
	}
	now := n.clock.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.window {
		return true
	}
	n.sent[key] = now
	for k, at := range n.sent {
		if now.Sub(at) >= n.window {
			delete(n.sent, k)
		}
	}
	return false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data.dedupKey) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func titleWord(s string) string {
	switch s {
	case "add":
		return "Connected"
	case "remove":
		return "Removed"
	default:
		return "Changed"
	}
}

type noopService struct{}

func (noopService) NotifyArtifactUploaded(context.Context, string, string) error { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, int, error) error { return nil }
func (noopService) NotifyCameraChanged(context.Context, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
