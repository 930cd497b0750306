package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"

	"reelbooth/internal/assetsink"
	"reelbooth/internal/config"
	"reelbooth/internal/encoding"
	"reelbooth/internal/logging"
	"reelbooth/internal/metrics"
	"reelbooth/internal/notifications"
	"reelbooth/internal/services"
	"reelbooth/internal/textutil"
)

const (
	baseBackoff = 30 * time.Second
	maxBackoff  = 30 * time.Minute
	drainBatch  = 50
)

// Options wires an Outbox.
type Options struct {
	Config   *config.Config
	Store    *Store
	Sink     assetsink.Sink
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Clock    clock.PassiveClock
	Logger   *slog.Logger
}

// Outbox persists artifacts and uploads them to the asset sink.
type Outbox struct {
	cfg      *config.Config
	store    *Store
	sink     assetsink.Sink
	notifier notifications.Service
	metrics  *metrics.Metrics
	clock    clock.PassiveClock
	logger   *slog.Logger

	kick    chan struct{}
	drainMu sync.Mutex
}

// New builds an Outbox. Sink may be nil when uploads are disabled; entries
// then accumulate until an operator enables a sink.
func New(opts Options) (*Outbox, error) {
	if opts.Config == nil || opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "outbox", "new", "config and store are required", nil)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Outbox{
		cfg:      opts.Config,
		store:    opts.Store,
		sink:     opts.Sink,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		clock:    clk,
		logger:   logging.NewComponentLogger(opts.Logger, "outbox"),
		kick:     make(chan struct{}, 1),
	}, nil
}

// HandleArtifact writes the artifact into the artifact directory, records
// it as pending, and schedules a drain.
func (o *Outbox) HandleArtifact(ctx context.Context, art encoding.Artifact) error {
	if len(art.Data) == 0 {
		return services.Wrap(services.ErrValidation, "outbox", "store artifact", "artifact is empty", nil)
	}
	name := textutil.SanitizeFileName(filepath.Base(art.Filename))
	if name == "" || name == "." {
		name = encoding.ArtifactFilename(o.clock.Now(), "")
	}
	path := filepath.Join(o.cfg.Paths.ArtifactDir, name)
	if err := writeAtomic(path, art.Data); err != nil {
		return services.Wrap(services.ErrTransient, "outbox", "store artifact", "write artifact", err)
	}

	entry, err := o.store.Add(ctx, Entry{
		SessionID:  art.SessionID,
		Path:       path,
		Filename:   name,
		MIMEType:   art.MIMEType,
		Profile:    art.Profile,
		Size:       int64(len(art.Data)),
		DurationMS: art.Duration.Milliseconds(),
		CreatedAt:  art.CreatedAt,
	})
	if err != nil {
		return err
	}
	o.logger.Info("artifact queued for upload",
		logging.String("entry_id", entry.ID),
		logging.SessionID(entry.SessionID),
		logging.String("filename", entry.Filename),
		logging.Int64("size", entry.Size),
	)
	o.refreshPending(ctx)
	o.Kick()
	return nil
}

// Kick requests a drain without blocking.
func (o *Outbox) Kick() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Run drains the outbox on the retry schedule and whenever kicked, and
// prunes delivered entries hourly. It returns when ctx is cancelled.
func (o *Outbox) Run(ctx context.Context) error {
	if n, err := o.store.ResetStuck(ctx); err != nil {
		return err
	} else if n > 0 {
		o.logger.Info("requeued interrupted uploads", logging.Int64("count", n))
	}

	sched := cron.New()
	if _, err := sched.AddFunc(o.cfg.Upload.RetrySchedule, o.Kick); err != nil {
		return services.Wrap(services.ErrConfiguration, "outbox", "schedule", "invalid upload.retry_schedule", err)
	}
	if _, err := sched.AddFunc("@hourly", func() {
		if _, err := o.Prune(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(o.logger, "outbox prune failed", "outbox_prune_failed", logging.Failure(err)...)
		}
	}); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	o.Kick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.kick:
			if _, err := o.Drain(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(o.logger, "outbox drain failed", "outbox_drain_failed", logging.Failure(err)...)
			}
		}
	}
}

// Drain attempts every due entry once and returns how many were uploaded.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	o.drainMu.Lock()
	defer o.drainMu.Unlock()
	defer o.refreshPending(ctx)

	if o.sink == nil || !o.cfg.Upload.Enabled {
		return 0, nil
	}
	due, err := o.store.Due(ctx, drainBatch)
	if err != nil {
		return 0, err
	}
	uploaded := 0
	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		claimed, err := o.store.Claim(ctx, entry.ID)
		if err != nil {
			return uploaded, err
		}
		if !claimed {
			continue
		}
		entry.Attempts++
		if o.deliver(ctx, entry) {
			uploaded++
		}
	}
	return uploaded, nil
}

// Retry forces another attempt for a failed entry.
func (o *Outbox) Retry(ctx context.Context, id string) (*Entry, error) {
	entry, err := o.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	o.logger.Info("outbox entry requeued", logging.String("entry_id", id))
	o.Kick()
	return entry, nil
}

// List returns every entry, oldest first.
func (o *Outbox) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	return o.store.List(ctx, statuses...)
}

// Summary counts entries by status.
func (o *Outbox) Summary(ctx context.Context) (Summary, error) {
	return o.store.Stats(ctx)
}

// Prune removes uploaded entries older than upload.keep_days and deletes
// their files.
func (o *Outbox) Prune(ctx context.Context) (int, error) {
	days := o.cfg.Upload.KeepDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := o.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	removed, err := o.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, entry := range removed {
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(o.logger, "artifact removal failed", "artifact_remove_failed",
				logging.String("path", entry.Path), logging.Error(err),
				logging.String(logging.FieldImpact, "delivered artifact remains on disk"))
		}
	}
	if len(removed) > 0 {
		o.logger.Info("pruned delivered artifacts", logging.Int("count", len(removed)))
	}
	return len(removed), nil
}

// deliver uploads one claimed entry and records the outcome.
func (o *Outbox) deliver(ctx context.Context, entry *Entry) bool {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		o.fail(ctx, entry, services.Wrap(marker, "outbox", "read artifact", entry.Path, err))
		return false
	}

	url := entry.URL
	if url == "" {
		url, err = o.sink.Upload(ctx, data, entry.Filename, entry.MIMEType)
		if err != nil {
			o.fail(ctx, entry, err)
			return false
		}
		if err := o.store.RecordURL(ctx, entry.ID, url); err != nil {
			logging.WarnWithContext(o.logger, "record upload url failed", "outbox_record_failed",
				logging.String("entry_id", entry.ID), logging.Error(err),
				logging.String(logging.FieldImpact, "a retry may upload the artifact again"))
		}
	}

	videoID, err := o.sink.RegisterMetadata(ctx, url, entry.CreatedAt)
	if err != nil {
		entry.URL = url
		o.fail(ctx, entry, err)
		return false
	}
	if err := o.store.MarkUploaded(ctx, entry.ID, url, videoID); err != nil {
		logging.ErrorWithContext(o.logger, "mark uploaded failed", "outbox_record_failed",
			logging.String("entry_id", entry.ID), logging.Error(err))
		return false
	}

	o.metrics.UploadResult("uploaded")
	o.logger.Info("artifact uploaded",
		logging.String("entry_id", entry.ID),
		logging.SessionID(entry.SessionID),
		logging.String("filename", entry.Filename),
		logging.String("url", url),
		logging.String("video_id", videoID),
		logging.Int("attempts", entry.Attempts),
	)
	if o.notifier != nil {
		if err := o.notifier.NotifyArtifactUploaded(ctx, entry.Filename, url); err != nil {
			o.logger.Debug("upload notification failed", logging.Error(err))
		}
	}
	return true
}

func (o *Outbox) fail(ctx context.Context, entry *Entry, cause error) {
	attrs := []logging.Attr{
		logging.String("entry_id", entry.ID),
		logging.String("filename", entry.Filename),
		logging.Int("attempts", entry.Attempts),
	}
	attrs = append(attrs, logging.Failure(cause)...)

	if retryable(cause) && entry.Attempts < o.cfg.Upload.MaxAttempts {
		next := o.clock.Now().Add(Backoff(entry.Attempts))
		if err := o.store.MarkFailed(ctx, entry.ID, cause.Error(), &next); err != nil {
			logging.ErrorWithContext(o.logger, "mark failed failed", "outbox_record_failed", logging.Error(err))
		}
		o.metrics.UploadResult("retry")
		attrs = append(attrs,
			logging.String("next_attempt", next.UTC().Format(time.RFC3339)),
			logging.String(logging.FieldImpact, "upload will be retried"))
		logging.WarnWithContext(o.logger, "artifact upload failed", "upload_retry", attrs...)
		return
	}

	if err := o.store.MarkFailed(ctx, entry.ID, cause.Error(), nil); err != nil {
		logging.ErrorWithContext(o.logger, "mark failed failed", "outbox_record_failed", logging.Error(err))
	}
	o.metrics.UploadResult("failed")
	logging.ErrorWithContext(o.logger, "artifact upload abandoned", "upload_failed", attrs...)
	if o.notifier != nil {
		if err := o.notifier.NotifyUploadFailed(ctx, entry.Filename, entry.Attempts, cause); err != nil {
			o.logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}

func (o *Outbox) refreshPending(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	summary, err := o.store.Stats(ctx)
	if err != nil {
		return
	}
	o.metrics.SetOutboxPending(summary.Outstanding())
}

// Backoff is the delay before attempt n+1: 30s doubling up to 30m.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 7 {
		return maxBackoff
	}
	return min(baseBackoff<<(attempt-1), maxBackoff)
}

func retryable(err error) bool {
	var uerr *services.UploadError
	if errors.As(err, &uerr) {
		return uerr.Retryable()
	}
	return !errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrValidation)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
