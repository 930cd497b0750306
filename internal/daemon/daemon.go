package daemon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"reelbooth/internal/api"
	"reelbooth/internal/config"
	"reelbooth/internal/devices"
	"reelbooth/internal/logging"
	"reelbooth/internal/metrics"
	"reelbooth/internal/notifications"
	"reelbooth/internal/outbox"
	"reelbooth/internal/preflight"
	"reelbooth/internal/recorder"
)

// Recorder is the controller surface the daemon drives.
type Recorder interface {
	Run(ctx context.Context) error
	Activate(ctx context.Context) error
	Begin(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Edit(ctx context.Context, path string) error
	Preview(ctx context.Context) (*image.RGBA, error)
	Subscribe(buffer int) (<-chan recorder.Event, func())
	Status() recorder.Status
}

// Outbox is the delivery queue surface the daemon drives.
type Outbox interface {
	Run(ctx context.Context) error
	List(ctx context.Context, statuses ...outbox.Status) ([]*outbox.Entry, error)
	Summary(ctx context.Context) (outbox.Summary, error)
	Retry(ctx context.Context, id string) (*outbox.Entry, error)
}

// Options configures a Daemon.
type Options struct {
	Config   *config.Config
	Recorder Recorder
	Outbox   Outbox
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// LogPath is reported in status when set.
	LogPath string
	// Preflight defaults to preflight.RunAll.
	Preflight func(context.Context, *config.Config) []preflight.Result
	// SysfsRoot overrides the V4L2 class directory used for camera status.
	SysfsRoot string
}

// Daemon supervises the recorder, the outbox, the API server, and the camera
// hotplug monitor under a single-instance lock.
type Daemon struct {
	cfg       *config.Config
	recorder  Recorder
	outbox    Outbox
	notifier  notifications.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger
	logPath   string
	preflight func(context.Context, *config.Config) []preflight.Result
	sysfsRoot string

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	monitor *devices.Monitor
	watcher *cameraWatcher

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Recorder == nil || opts.Outbox == nil {
		return nil, errors.New("daemon requires config, recorder, and outbox")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	check := opts.Preflight
	if check == nil {
		check = preflight.RunAll
	}

	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:       opts.Config,
		recorder:  opts.Recorder,
		outbox:    opts.Outbox,
		notifier:  notifier,
		metrics:   opts.Metrics,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		logPath:   opts.LogPath,
		preflight: check,
		sysfsRoot: opts.SysfsRoot,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config, d, logger)
	if opts.Config.Devices.MonitorHotplug {
		d.watcher = newCameraWatcher(opts.Config, notifier, logger)
		d.monitor = devices.NewMonitor(logger, d.watcher.handle)
	}
	return d, nil
}

// Start acquires the daemon lock and launches the recorder, outbox, API
// server, and hotplug monitor. Use Wait to block until they exit.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelbooth daemon instance is already running")
	}

	d.logPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	if err := d.api.start(groupCtx, group); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	events, unsubscribe := d.recorder.Subscribe(64)
	group.Go(func() error {
		defer unsubscribe()
		d.watchEvents(groupCtx, events)
		return nil
	})
	group.Go(func() error {
		if err := d.recorder.Run(groupCtx); err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := d.outbox.Run(groupCtx); err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
		return nil
	})
	if d.monitor != nil {
		if err := d.monitor.Start(groupCtx); err != nil {
			logging.WarnWithContext(d.logger, "camera hotplug monitor unavailable", "hotplug_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "camera add/remove notifications disabled"),
			)
		}
	}

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("reelbooth daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Wait blocks until every supervised component has returned. It returns the
// first component failure, if any.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop cancels the supervised components, waits for them, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(d.logger, "daemon component exited with error", "daemon_component_failed", logging.Failure(err)...)
	}
	if d.monitor != nil {
		d.monitor.Stop()
		d.watcher.wait()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.cancel = nil
	d.group = nil
	d.running.Store(false)
	d.logger.Info("reelbooth daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the address the API server is listening on.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	summary, err := d.outbox.Summary(ctx)
	if err != nil {
		d.logger.Debug("outbox summary unavailable", logging.Error(err))
	}
	probe := preflight.ProbeCamera(d.cfg.Capture.Device, d.sysfsRoot)
	status := api.DaemonStatus{
		Running:  d.running.Load(),
		PID:      os.Getpid(),
		Recorder: d.recorder.Status(),
		Outbox:   summary,
		Camera: api.CameraStatus{
			Device:   probe.Device,
			Name:     probe.Name,
			Detected: probe.Detected,
			Capture:  probe.Capture,
		},
		HotplugMonitor: d.monitor != nil && d.monitor.Running(),
		UploadEnabled:  d.cfg.Upload.Enabled,
		LockPath:       d.lockPath,
		OutboxPath:     d.cfg.OutboxPath(),
		LogPath:        d.logPath,
	}
	if d.cfg.Upload.Enabled {
		status.UploadSink = d.cfg.Upload.Sink
	}
	return status
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range d.preflight(ctx, d.cfg) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "recording or delivery may fail until resolved"),
		)
	}
}

// watchEvents forwards recorder failures to the notifier.
func (d *Daemon) watchEvents(ctx context.Context, events <-chan recorder.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != recorder.EventError {
				continue
			}
			label := "recording"
			if ev.Mode == recorder.ModeEdit {
				label = "edit"
			}
			if err := d.notifier.NotifyError(ctx, errors.New(ev.Error), label); err != nil {
				d.logger.Debug("error notification failed", logging.Error(err))
			}
		}
	}
}
