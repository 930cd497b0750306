package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDevice        = errors.New("device error")
	ErrEncode        = errors.New("encode error")
	ErrUpload        = errors.New("upload error")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// DeviceError reports a capture device that is missing, busy, or not
// accessible. Sessions return to Idle and may retry.
type DeviceError struct {
	Device string
	Op     string
	Reason string
	Err    error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("device %s: %s", e.Device, e.Op)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDevice}
	}
	return []error{ErrDevice, e.Err}
}

// Hint returns an operator-facing next step.
func (e *DeviceError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrNotFound):
		return "connect the camera or set capture.device to an existing /dev/video node"
	case e.Reason == ReasonBusy:
		return "another session holds the camera; reset it before activating again"
	case e.Reason == ReasonPermission:
		return "add the kiosk user to the video group or fix the device permissions"
	default:
		return "check the camera connection and retry from idle"
	}
}

const (
	ReasonBusy       = "device busy"
	ReasonPermission = "permission denied"
	ReasonNoFrames   = "no frames decoded"
)

// FatalEncodeError reports that no entry of the encoding ladder is usable.
// The session is aborted and configuration must change before retrying.
type FatalEncodeError struct {
	Tried []string
	Err   error
}

func (e *FatalEncodeError) Error() string {
	msg := "no supported encoding profile"
	if len(e.Tried) > 0 {
		msg += " (tried " + strings.Join(e.Tried, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FatalEncodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEncode}
	}
	return []error{ErrEncode, e.Err}
}

func (e *FatalEncodeError) Hint() string {
	return "install an ffmpeg build with libvpx/libopus or libx264, or adjust encoding.profiles"
}

// UploadError reports an asset sink failure. The artifact stays in the outbox.
type UploadError struct {
	Op         string
	Filename   string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload %s", e.Op)
	if e.Filename != "" {
		msg += " " + e.Filename
	}
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpload}
	}
	return []error{ErrUpload, e.Err}
}

func (e *UploadError) Hint() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return "check upload.base_url and upload.token; the artifact stays queued for retry"
	}
	return "the artifact stays queued; it will be retried automatically or via `reelbooth outbox retry`"
}

// Retryable reports whether a later attempt may succeed.
func (e *UploadError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 408 || e.StatusCode == 429
}

// Hinter is implemented by errors that carry an actionable message.
type Hinter interface {
	Hint() string
}

// HintFor returns the actionable hint carried by err, if any.
func HintFor(err error) string {
	var h Hinter
	if errors.As(err, &h) {
		return h.Hint()
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return "fix the configuration file and restart"
	case errors.Is(err, ErrTimeout):
		return "retry; check system load if timeouts persist"
	case err != nil:
		return "check logs for details"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
