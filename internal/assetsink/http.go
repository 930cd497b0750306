package assetsink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelbooth/internal/config"
	"reelbooth/internal/services"
)

const userAgent = "reelbooth/0.1.0"

// HTTPSink posts artifacts to the kiosk web backend.
type HTTPSink struct {
	uploadURL   string
	metadataURL string
	token       string
	client      *http.Client
}

type uploadRequest struct {
	Video    string `json:"video"`
	Filename string `json:"filename"`
}

type uploadResponse struct {
	URL     string `json:"url"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

type metadataRequest struct {
	VideoURL  string    `json:"videoUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type metadataResponse struct {
	Success bool   `json:"success"`
	VideoID string `json:"videoId"`
	Error   string `json:"error"`
}

// NewHTTPSink builds a sink for the configured endpoints.
func NewHTTPSink(cfg config.Upload) *HTTPSink {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPSink{
		uploadURL:   joinURL(cfg.BaseURL, cfg.UploadPath),
		metadataURL: joinURL(cfg.BaseURL, cfg.MetadataPath),
		token:       strings.TrimSpace(cfg.Token),
		client:      &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string { return config.SinkHTTP }

// Upload sends data as a base64 data URL and returns the public URL.
func (s *HTTPSink) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: http.StatusBadRequest, Err: errors.New("empty artifact")}
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "video/webm"
	}
	body := uploadRequest{
		Video:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Filename: filename,
	}
	var out uploadResponse
	status, err := s.post(ctx, s.uploadURL, body, &out)
	if err != nil {
		return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: status, Err: err}
	}
	if status >= 300 {
		return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: status, Err: remoteError(out.Error, out.Details)}
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: errors.New("response carried no url")}
	}
	return out.URL, nil
}

// RegisterMetadata records videoURL and returns the backend's video id.
func (s *HTTPSink) RegisterMetadata(ctx context.Context, videoURL string, createdAt time.Time) (string, error) {
	body := metadataRequest{VideoURL: videoURL, CreatedAt: createdAt.UTC()}
	var out metadataResponse
	status, err := s.post(ctx, s.metadataURL, body, &out)
	if err != nil {
		return "", &services.UploadError{Op: "register", StatusCode: status, Err: err}
	}
	if status >= 300 || !out.Success {
		if status < 300 {
			status = 0
		}
		return "", &services.UploadError{Op: "register", StatusCode: status, Err: remoteError(out.Error, "")}
	}
	return out.VideoID, nil
}

// post sends payload as JSON and decodes the reply into out. A non-2xx reply
// is decoded as well so the caller can surface the backend's message.
func (s *HTTPSink) post(ctx context.Context, url string, payload, out any) (int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 300 {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func remoteError(msg, details string) error {
	msg = strings.TrimSpace(msg)
	details = strings.TrimSpace(details)
	switch {
	case msg == "" && details == "":
		return errors.New("request rejected")
	case details == "":
		return errors.New(msg)
	case msg == "":
		return errors.New(details)
	default:
		return fmt.Errorf("%s: %s", msg, details)
	}
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
