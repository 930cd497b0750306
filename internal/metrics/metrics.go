package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the kiosk daemon. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	sessionsTotal    *prometheus.CounterVec
	state            *prometheus.GaugeVec
	framesDropped    prometheus.Counter
	framesEncoded    prometheus.Counter
	artifactBytes    prometheus.Histogram
	artifactDuration prometheus.Histogram
	uploadsTotal     *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
}

// States lists the label values of the state gauge.
var States = []string{"idle", "webcam_preview", "countdown", "capturing", "freezing", "finalizing"}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelbooth_sessions_total",
			Help: "Recording sessions by mode and outcome",
		}, []string{"mode", "outcome"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reelbooth_recorder_state",
			Help: "1 for the current recording state, 0 otherwise",
		}, []string{"state"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelbooth_frames_dropped_total",
			Help: "Frames skipped because the encoder had no free buffer",
		}),
		framesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelbooth_frames_encoded_total",
			Help: "Frames handed to the encoder",
		}),
		artifactBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelbooth_artifact_bytes",
			Help:    "Size of finalized artifacts",
			Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
		}),
		artifactDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelbooth_artifact_duration_seconds",
			Help:    "Video duration of finalized artifacts",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90},
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reelbooth_uploads_total",
			Help: "Asset sink upload attempts by result",
		}, []string{"result"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reelbooth_outbox_pending",
			Help: "Artifacts waiting for upload",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelbooth_api_requests_total",
			Help: "Total number of API requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reelbooth_api_errors_total",
			Help: "API responses with status 4xx or 5xx",
		}),
	}

	registry.MustRegister(
		m.sessionsTotal,
		m.state,
		m.framesDropped,
		m.framesEncoded,
		m.artifactBytes,
		m.artifactDuration,
		m.uploadsTotal,
		m.outboxPending,
		m.requestsTotal,
		m.errorsTotal,
	)
	m.SetState("idle")
	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SessionFinished counts a session ending with outcome
// (completed, failed, reset).
func (m *Metrics) SessionFinished(mode, outcome string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(mode, outcome).Inc()
}

// SetState marks state as current.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// AddFrames records encoded and dropped frame counts for a session.
func (m *Metrics) AddFrames(encoded, dropped int) {
	if m == nil {
		return
	}
	m.framesEncoded.Add(float64(encoded))
	m.framesDropped.Add(float64(dropped))
}

// ObserveArtifact records a finalized artifact.
func (m *Metrics) ObserveArtifact(size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.artifactBytes.Observe(float64(size))
	m.artifactDuration.Observe(duration.Seconds())
}

// UploadResult counts an upload attempt (uploaded, retry, failed).
func (m *Metrics) UploadResult(result string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(result).Inc()
}

// SetOutboxPending sets the pending outbox gauge.
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

// IncRequests increments the API request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the API error counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// Handler serves the registry. refresh runs before each scrape to update
// gauges that are cheaper to read on demand.
func (m *Metrics) Handler(refresh func()) http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh != nil {
			refresh()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
