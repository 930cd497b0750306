package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"reelbooth/internal/outbox"
	"reelbooth/internal/recorder"
)

// ErrAPIUnavailable is returned when no API address is configured.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to a running daemon.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may be host:port or a URL.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// Edit sessions wait for the file to open, which can take a while.
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// Activate opens the camera preview.
func (c *Client) Activate(ctx context.Context) (recorder.Status, error) {
	return c.command(ctx, "/api/activate", nil)
}

// Begin starts the countdown.
func (c *Client) Begin(ctx context.Context) (recorder.Status, error) {
	return c.command(ctx, "/api/begin", nil)
}

// Stop ends capture early.
func (c *Client) Stop(ctx context.Context) (recorder.Status, error) {
	return c.command(ctx, "/api/stop", nil)
}

// Reset aborts any session.
func (c *Client) Reset(ctx context.Context) (recorder.Status, error) {
	return c.command(ctx, "/api/reset", nil)
}

// Edit records a local media file with the edit overlays.
func (c *Client) Edit(ctx context.Context, path string) (recorder.Status, error) {
	return c.command(ctx, "/api/edit", EditRequest{Path: path})
}

// Preview returns the current composed frame as PNG.
func (c *Client) Preview(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/preview", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Outbox lists outbox entries, optionally filtered by status.
func (c *Client) Outbox(ctx context.Context, statuses ...outbox.Status) (OutboxListResponse, error) {
	path := "/api/outbox"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, s := range statuses {
			values.Add("status", string(s))
		}
		path += "?" + values.Encode()
	}
	var out OutboxListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// RetryOutbox schedules another delivery attempt for an entry.
func (c *Client) RetryOutbox(ctx context.Context, id string) (*outbox.Entry, error) {
	var out OutboxEntryResponse
	if err := c.do(ctx, http.MethodPost, "/api/outbox/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return out.Entry, nil
}

// Events streams recorder events to fn until ctx ends or fn returns an
// error.
func (c *Client) Events(ctx context.Context, fn func(recorder.Event) error) error {
	endpoint := *c.base
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}
	endpoint.Path = "/api/events"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev recorder.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (c *Client) command(ctx context.Context, path string, body any) (recorder.Status, error) {
	var out CommandResponse
	err := c.do(ctx, http.MethodPost, path, body, &out)
	return out.Status, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	endpoint, err := c.base.Parse(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	var payload ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
		apiErr.Message = payload.Error
		apiErr.Hint = payload.Hint
	}
	return apiErr
}

// IsAPIUnavailable reports whether err means the daemon could not be
// reached at all.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
