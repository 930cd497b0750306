// Package daemon coordinates the long-running reelbooth process.
//
// It supervises the recording controller, the upload outbox, the HTTP API,
// and the camera hotplug monitor as one errgroup under a flock-based lock
// that prevents a second instance from grabbing the same camera. Recorder
// failures and camera add/remove events are forwarded to the notifier.
//
// The API is a chi router: recorder commands under /api, a PNG preview, an
// outbox view with per-entry retry, a websocket event stream, and Prometheus
// metrics at /metrics. Every /api route passes through the bearer-token
// middleware when a token is configured.
//
// Keep orchestration logic here: capture, mixing, and delivery live in their
// own packages while the daemon focuses on startup, shutdown, and exposure.
package daemon
