package api

import (
	"reelbooth/internal/outbox"
	"reelbooth/internal/recorder"
)

// DaemonStatus summarizes daemon runtime state.
type DaemonStatus struct {
	Running        bool            `json:"running"`
	PID            int             `json:"pid"`
	Recorder       recorder.Status `json:"recorder"`
	Outbox         outbox.Summary  `json:"outbox"`
	Camera         CameraStatus    `json:"camera"`
	HotplugMonitor bool            `json:"hotplugMonitor"`
	UploadEnabled  bool            `json:"uploadEnabled"`
	UploadSink     string          `json:"uploadSink,omitempty"`
	LockPath       string          `json:"lockPath"`
	OutboxPath     string          `json:"outboxPath"`
	LogPath        string          `json:"logPath,omitempty"`
}

// CameraStatus reports what sysfs knows about the configured device.
type CameraStatus struct {
	Device   string `json:"device"`
	Name     string `json:"name,omitempty"`
	Detected bool   `json:"detected"`
	Capture  bool   `json:"capture"`
}

// CommandResponse is returned by the recorder command endpoints.
type CommandResponse struct {
	Status recorder.Status `json:"status"`
}

// EditRequest starts an edit session for a local media file.
type EditRequest struct {
	Path string `json:"path"`
}

// OutboxListResponse lists outbox entries.
type OutboxListResponse struct {
	Entries []*outbox.Entry `json:"entries"`
	Summary outbox.Summary  `json:"summary"`
}

// OutboxEntryResponse wraps a single outbox entry.
type OutboxEntryResponse struct {
	Entry *outbox.Entry `json:"entry"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}
