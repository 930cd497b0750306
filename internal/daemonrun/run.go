package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reelbooth/internal/assets"
	"reelbooth/internal/assetsink"
	"reelbooth/internal/config"
	"reelbooth/internal/daemon"
	"reelbooth/internal/encoding"
	"reelbooth/internal/framesource"
	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/metrics"
	"reelbooth/internal/mixer"
	"reelbooth/internal/notifications"
	"reelbooth/internal/outbox"
	"reelbooth/internal/preflight"
	"reelbooth/internal/recorder"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelbooth daemon and blocks until a signal arrives or a
// supervised component fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, runLog, err := logging.NewRunLogger(cfg, logging.Options{
		Level:       opts.LogLevel,
		Development: opts.Development,
	}, time.Now())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.PruneOlderThan(logger, time.Now(), time.Duration(cfg.Logging.RetentionDays)*24*time.Hour,
		logging.PruneTarget{Dir: cfg.Paths.LogDir, Pattern: logging.RunLogPattern, Keep: []string{runLog.Path}},
	)
	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "reelbooth.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(signalCtx, cfg, logger, runLog.Pointer)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon setup failed", "daemon_setup_failed", logging.Failure(err)...)
		return err
	}
	defer rt.Close()

	if err := rt.Daemon.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the state directory permissions"),
		)
		return err
	}

	waitErr := rt.Daemon.Wait()
	logger.Info("reelbooth daemon shutting down")
	rt.Daemon.Stop()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// Runtime holds every component the daemon supervises.
type Runtime struct {
	Daemon   *daemon.Daemon
	Recorder *recorder.Controller
	Outbox   *outbox.Outbox
	Store    *outbox.Store
	Assets   *assets.Cache
	Metrics  *metrics.Metrics

	monitor mixer.Output
}

// Build wires the capture pipeline, outbox, and daemon from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, logPath string) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	rt := &Runtime{Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	format := media.AudioFormat{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}

	rt.Assets = assets.NewCache(logger, assets.FFmpegDecoder{Binary: cfg.Encoding.FFmpegBinary})
	if err := assets.Preload(ctx, cfg, rt.Assets); err != nil {
		return nil, fmt.Errorf("preload assets: %w", err)
	}

	rt.monitor = mixer.Discard{}
	if cfg.Audio.MonitorEnabled {
		out, err := mixer.NewCommandOutput(logger, cfg.Audio.MonitorPlayer, format)
		if err != nil {
			logging.WarnWithContext(logger, "audio monitor unavailable", "monitor_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "countdown cue and music will not play locally"),
			)
		} else {
			rt.monitor = out
		}
	}

	store, err := outbox.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	rt.Store = store

	var sink assetsink.Sink
	if cfg.Upload.Enabled {
		sink, err = assetsink.New(cfg)
		if err != nil {
			return nil, err
		}
	}
	notifier := notifications.NewService(cfg)

	rt.Outbox, err = outbox.New(outbox.Options{
		Config:   cfg,
		Store:    store,
		Sink:     sink,
		Notifier: notifier,
		Metrics:  rt.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	prober := encoding.FFmpegProber{Binary: cfg.Encoding.FFmpegBinary}
	rt.Recorder, err = recorder.New(recorder.Options{
		Config: cfg,
		Camera: &framesource.CameraOpener{
			FFmpeg:      cfg.Encoding.FFmpegBinary,
			LockDir:     cfg.DeviceLockDir(),
			OpenTimeout: time.Duration(cfg.Capture.OpenTimeout) * time.Second,
			Logger:      logger,
		},
		Files: &framesource.FileOpener{
			FFmpeg:   cfg.Encoding.FFmpegBinary,
			FFprobe:  cfg.Encoding.FFprobeBinary,
			Language: cfg.Audio.EditLanguage,
			Logger:   logger,
		},
		Encoder: &recorder.FFmpegEncoder{
			Binary: cfg.Encoding.FFmpegBinary,
			Prober: prober,
			Ladder: cfg.Encoding.Profiles,
			Logger: logger,
		},
		Assets:    rt.Assets,
		Monitor:   rt.monitor,
		Artifacts: rt.Outbox,
		Metrics:   rt.Metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create recorder: %w", err)
	}

	rt.Daemon, err = daemon.New(daemon.Options{
		Config:   cfg,
		Recorder: rt.Recorder,
		Outbox:   rt.Outbox,
		Notifier: notifier,
		Metrics:  rt.Metrics,
		Logger:   logger,
		LogPath:  logPath,
		Preflight: func(ctx context.Context, cfg *config.Config) []preflight.Result {
			results := preflight.RunAll(ctx, cfg)
			return append(results, preflight.CheckEncoder(ctx, prober, cfg.Encoding.Profiles))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create daemon: %w", err)
	}

	ok = true
	return rt, nil
}

// Close releases the monitor player and the outbox database.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.monitor != nil {
		_ = rt.monitor.Close()
		rt.monitor = nil
	}
	if rt.Store != nil {
		_ = rt.Store.Close()
		rt.Store = nil
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("upload_enabled", cfg.Upload.Enabled),
		logging.String("upload_sink", cfg.Upload.Sink),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.String("camera", cfg.Capture.Device),
	}
	for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
		key := strings.ReplaceAll(strings.ToLower(dep.Name), " ", "_")
		attrs = append(attrs, logging.Bool(key+"_available", dep.Available))
		if dep.Detail != "" {
			attrs = append(attrs, logging.String(key+"_detail", dep.Detail))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
