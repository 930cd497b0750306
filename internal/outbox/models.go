package outbox

import "time"

// Status is the upload state of an outbox entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
)

// Entry is one persisted artifact.
type Entry struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id,omitempty"`
	Path          string     `json:"path"`
	Filename      string     `json:"filename"`
	MIMEType      string     `json:"mime_type"`
	Profile       string     `json:"profile,omitempty"`
	Size          int64      `json:"size"`
	DurationMS    int64      `json:"duration_ms"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	URL           string     `json:"url,omitempty"`
	VideoID       string     `json:"video_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// Retrying reports whether a failed entry is scheduled for another attempt.
func (e *Entry) Retrying() bool {
	return e != nil && e.Status == StatusFailed && e.NextAttemptAt != nil
}

// Summary counts entries by status.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Uploaded  int `json:"uploaded"`
	Failed    int `json:"failed"`
}

// Outstanding is the number of entries not yet delivered.
func (s Summary) Outstanding() int {
	return s.Pending + s.Uploading + s.Failed
}
