package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SetState("capturing")
	m.SessionFinished("live", "completed")
	m.AddFrames(10, 1)
	m.ObserveArtifact(1024, time.Second)
	m.UploadResult("uploaded")
	m.SetOutboxPending(3)
	m.IncRequests()
	m.IncErrors()
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestStateGaugeIsOneHot(t *testing.T) {
	m := New()
	m.SetState("freezing")
	if got := testutil.ToFloat64(m.state.WithLabelValues("freezing")); got != 1 {
		t.Fatalf("freezing gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("idle")); got != 0 {
		t.Fatalf("idle gauge = %v", got)
	}
}

func TestHandlerServesCollectors(t *testing.T) {
	m := New()
	m.SessionFinished("live", "completed")
	refreshed := false
	srv := httptest.NewServer(m.Handler(func() {
		refreshed = true
		m.SetOutboxPending(2)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	body := buf.String()
	if !refreshed {
		t.Fatal("refresh should run before scrape")
	}
	for _, want := range []string{`reelbooth_sessions_total{mode="live",outcome="completed"} 1`, "reelbooth_outbox_pending 2"} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestRequestMiddlewareCountsErrors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	for _, path := range []string{"/ok", "/bad"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(m.requestsTotal); got != 2 {
		t.Fatalf("requests = %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}
