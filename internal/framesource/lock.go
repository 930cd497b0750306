package framesource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"reelbooth/internal/services"
	"reelbooth/internal/textutil"
)

// deviceLock holds an advisory lock file per physical device so one stream
// at a time can own a camera, across goroutines and processes.
type deviceLock struct {
	lock *flock.Flock
}

func lockPath(dir, device string) string {
	return filepath.Join(dir, textutil.SanitizeToken(device)+".lock")
}

func acquireDevice(dir, device string) (*deviceLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create device lock dir: %w", err)
	}
	lock := flock.New(lockPath(dir, device))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, &services.DeviceError{Device: device, Op: "lock", Err: err}
	}
	if !ok {
		return nil, &services.DeviceError{Device: device, Op: "lock", Reason: services.ReasonBusy}
	}
	return &deviceLock{lock: lock}, nil
}

func (l *deviceLock) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
