package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"reelbooth/internal/api"
	"reelbooth/internal/outbox"
	"reelbooth/internal/recorder"
)

func TestNewClientEmptyBind(t *testing.T) {
	if _, err := api.NewClient("  ", ""); !errors.Is(err, api.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestClientStatusSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:  true,
			PID:      42,
			Recorder: recorder.Status{State: recorder.WebcamPreview},
		})
	}))
	defer srv.Close()

	client, err := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !status.Running || status.PID != 42 || status.Recorder.State != recorder.WebcamPreview {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestClientDecodesErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "begin not allowed while idle", Hint: "activate first"})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Begin(context.Background())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Hint != "activate first" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if api.IsAPIUnavailable(err) {
		t.Fatal("a 409 is not an unavailable daemon")
	}
}

func TestClientEditAndOutbox(t *testing.T) {
	var editPath string
	var statuses []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/edit":
			var req api.EditRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			editPath = req.Path
			_ = json.NewEncoder(w).Encode(api.CommandResponse{Status: recorder.Status{State: recorder.Capturing, Mode: recorder.ModeEdit}})
		case "/api/outbox":
			statuses = r.URL.Query()["status"]
			_ = json.NewEncoder(w).Encode(api.OutboxListResponse{
				Entries: []*outbox.Entry{{ID: "a", Status: outbox.StatusFailed}},
				Summary: outbox.Summary{Total: 1, Failed: 1},
			})
		case "/api/outbox/a/retry":
			if r.Method != http.MethodPost {
				t.Errorf("retry method = %s", r.Method)
			}
			_ = json.NewEncoder(w).Encode(api.OutboxEntryResponse{Entry: &outbox.Entry{ID: "a", Status: outbox.StatusPending}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	st, err := client.Edit(ctx, "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if editPath != "/tmp/clip.mp4" || st.Mode != recorder.ModeEdit {
		t.Fatalf("edit path %q status %+v", editPath, st)
	}

	list, err := client.Outbox(ctx, outbox.StatusFailed, outbox.StatusPending)
	if err != nil {
		t.Fatalf("Outbox: %v", err)
	}
	if len(list.Entries) != 1 || list.Summary.Failed != 1 {
		t.Fatalf("unexpected outbox list: %+v", list)
	}
	if len(statuses) != 2 || statuses[0] != "failed" || statuses[1] != "pending" {
		t.Fatalf("status filter = %v", statuses)
	}

	entry, err := client.RetryOutbox(ctx, "a")
	if err != nil {
		t.Fatalf("RetryOutbox: %v", err)
	}
	if entry.Status != outbox.StatusPending {
		t.Fatalf("retry status = %s", entry.Status)
	}
}

func TestClientEventsStreamsUntilCallbackStops(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, kind := range []recorder.EventKind{recorder.EventState, recorder.EventCountdown, recorder.EventProgress} {
			if err := conn.WriteJSON(recorder.Event{Kind: kind}); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "tok")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	stop := errors.New("enough")
	var kinds []recorder.EventKind
	err = client.Events(context.Background(), func(ev recorder.Event) error {
		kinds = append(kinds, ev.Kind)
		if len(kinds) == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if kinds[0] != recorder.EventState || kinds[1] != recorder.EventCountdown {
		t.Fatalf("unexpected kinds %v", kinds)
	}

	bad, _ := api.NewClient(srv.URL, "wrong")
	err = bad.Events(context.Background(), func(recorder.Event) error { return nil })
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 api error, got %v", err)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !api.IsAPIUnavailable(api.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if api.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}

	client, err := api.NewClient("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Status(context.Background()); !api.IsAPIUnavailable(err) {
		t.Fatalf("expected connection refused to be unavailable, got %v", err)
	}
}
