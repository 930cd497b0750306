package framesource

import (
	"strings"

	"reelbooth/internal/services"
)

// classifyFailure maps a decoder exit and its stderr tail to a DeviceError.
func classifyFailure(device, op, stderr string, err error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "no such file or directory"), strings.Contains(lower, "no such device"):
		return &services.DeviceError{Device: device, Op: op, Err: services.ErrNotFound}
	case strings.Contains(lower, "permission denied"):
		return &services.DeviceError{Device: device, Op: op, Reason: services.ReasonPermission, Err: err}
	case strings.Contains(lower, "device or resource busy"):
		return &services.DeviceError{Device: device, Op: op, Reason: services.ReasonBusy, Err: err}
	}
	return &services.DeviceError{Device: device, Op: op, Reason: lastLine(stderr), Err: err}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
