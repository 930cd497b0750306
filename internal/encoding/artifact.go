package encoding

import (
	"fmt"
	"time"
)

// Artifact is a finalized recording. It is immutable once produced.
type Artifact struct {
	Data      []byte
	Profile   string
	MIMEType  string
	Filename  string
	Duration  time.Duration
	SessionID string
	CreatedAt time.Time
}

// Size returns the artifact length in bytes.
func (a Artifact) Size() int { return len(a.Data) }

// Result is delivered once by Sink.Finalized.
type Result struct {
	Artifact Artifact
	Err      error
}

// ArtifactFilename returns the upload name for a recording created at t.
func ArtifactFilename(t time.Time, ext string) string {
	if ext == "" {
		ext = "webm"
	}
	return fmt.Sprintf("video-%d.%s", t.UnixMilli(), ext)
}
