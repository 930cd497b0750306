package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"reelbooth/internal/api"
	"reelbooth/internal/config"
	"reelbooth/internal/logging"
	"reelbooth/internal/metrics"
	"reelbooth/internal/outbox"
	"reelbooth/internal/recorder"
	"reelbooth/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.RequestMiddleware(s.daemon.metrics))
	r.Get("/metrics", s.daemon.metrics.Handler(s.refreshMetrics).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Get("/status", s.handleStatus)
		r.Post("/activate", s.handleCommand(s.daemon.recorder.Activate))
		r.Post("/begin", s.handleCommand(s.daemon.recorder.Begin))
		r.Post("/stop", s.handleCommand(s.daemon.recorder.Stop))
		r.Post("/reset", s.handleCommand(s.daemon.recorder.Reset))
		r.Post("/edit", s.handleEdit)
		r.Get("/preview", s.handlePreview)
		r.Get("/events", s.handleEvents)
		r.Route("/outbox", func(r chi.Router) {
			r.Get("/", s.handleOutbox)
			r.Post("/{id}/retry", s.handleOutboxRetry)
		})
	})
	return r
}

// start binds the listener and serves on group. An empty bind disables the
// API.
func (s *apiServer) start(ctx context.Context, group *errgroup.Group) error {
	if s.bind == "" {
		s.logger.Info("api server disabled")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	group.Go(func() error {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	})

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) refreshMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if summary, err := s.daemon.outbox.Summary(ctx); err == nil {
		s.daemon.metrics.SetOutboxPending(summary.Outstanding())
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCommand(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.CommandResponse{Status: s.daemon.recorder.Status()})
	}
}

func (s *apiServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req api.EditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required", "")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is not a readable file", path), "pass an absolute path the daemon can read")
		return
	}
	if err := s.daemon.recorder.Edit(r.Context(), path); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommandResponse{Status: s.daemon.recorder.Status()})
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	frame, err := s.daemon.recorder.Preview(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		s.writeError(w, http.StatusInternalServerError, "encode preview", "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) handleOutbox(w http.ResponseWriter, r *http.Request) {
	var statuses []outbox.Status
	for _, raw := range r.URL.Query()["status"] {
		status := outbox.Status(strings.ToLower(strings.TrimSpace(raw)))
		switch status {
		case outbox.StatusPending, outbox.StatusUploading, outbox.StatusUploaded, outbox.StatusFailed:
			statuses = append(statuses, status)
		default:
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw), "")
			return
		}
	}
	entries, err := s.daemon.outbox.List(r.Context(), statuses...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	summary, err := s.daemon.outbox.Summary(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []*outbox.Entry{}
	}
	s.writeJSON(w, http.StatusOK, api.OutboxListResponse{Entries: entries, Summary: summary})
}

func (s *apiServer) handleOutboxRetry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.daemon.outbox.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OutboxEntryResponse{Entry: entry})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, hint string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Hint: hint})
}

func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		logging.WarnWithContext(s.logger, "api request failed", "api_request_failed", logging.Failure(err)...)
	}
	s.writeError(w, status, err.Error(), services.HintFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, recorder.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, recorder.ErrClosed), errors.Is(err, services.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
