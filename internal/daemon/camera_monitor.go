package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reelbooth/internal/config"
	"reelbooth/internal/devices"
	"reelbooth/internal/logging"
	"reelbooth/internal/notifications"
)

const cameraNotifyTimeout = 15 * time.Second

// cameraWatcher turns hotplug events into notifications. handle runs on the
// netlink goroutine, so delivery happens in the background.
type cameraWatcher struct {
	device   string
	notifier notifications.Service
	logger   *slog.Logger

	wg sync.WaitGroup
}

func newCameraWatcher(cfg *config.Config, notifier notifications.Service, logger *slog.Logger) *cameraWatcher {
	return &cameraWatcher{
		device:   cfg.Capture.Device,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "camera-watcher"),
	}
}

func (w *cameraWatcher) handle(ev devices.Event) {
	if ev.Device == w.device && ev.Action == "remove" {
		logging.WarnWithContext(w.logger, "configured camera removed", "camera_removed",
			logging.Device(ev.Device),
			logging.String(logging.FieldImpact, "live sessions fail until the camera returns"),
		)
	} else if ev.Device == w.device && ev.Action == "add" {
		w.logger.Info("configured camera attached",
			logging.String(logging.FieldEventType, "camera_attached"),
			logging.Device(ev.Device),
			logging.String("name", ev.Name),
		)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cameraNotifyTimeout)
		defer cancel()
		if err := w.notifier.NotifyCameraChanged(ctx, ev.Action, ev.Device); err != nil {
			w.logger.Debug("camera notification failed", logging.Error(err))
		}
	}()
}

// wait blocks until in-flight notifications finish.
func (w *cameraWatcher) wait() {
	w.wg.Wait()
}
