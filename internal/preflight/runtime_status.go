package preflight

import (
	"fmt"
	"strings"

	"reelbooth/internal/devices"
)

// CameraProbe reports what sysfs knows about the capture device.
type CameraProbe struct {
	Detected bool
	Device   string
	Name     string
	Capture  bool
}

// ProbeCamera looks the device up under sysfsRoot (the V4L2 class
// directory when empty).
func ProbeCamera(device, sysfsRoot string) CameraProbe {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "/dev/video0"
	}
	cameras, err := devices.List(sysfsRoot)
	if err != nil {
		return CameraProbe{Device: device}
	}
	for _, cam := range cameras {
		if cam.Device == device {
			return CameraProbe{Detected: true, Device: device, Name: cam.Name, Capture: cam.Capture}
		}
	}
	return CameraProbe{Device: device}
}

// Detail renders a display-friendly summary for status UIs.
func (p CameraProbe) Detail() string {
	if !p.Detected {
		return fmt.Sprintf("%s (no V4L2 entry)", p.Device)
	}
	name := p.Name
	if name == "" {
		name = "Unknown camera"
	}
	if !p.Capture {
		return fmt.Sprintf("'%s' on %s (metadata node; pick the capture node)", name, p.Device)
	}
	return fmt.Sprintf("'%s' on %s", name, p.Device)
}
