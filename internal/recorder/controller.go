package recorder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"reelbooth/internal/compositor"
	"reelbooth/internal/config"
	"reelbooth/internal/encoding"
	"reelbooth/internal/framesource"
	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/metrics"
	"reelbooth/internal/mixer"
	"reelbooth/internal/services"
)

const progressInterval = 100 * time.Millisecond

// ErrClosed is returned by commands sent after Run has returned.
var ErrClosed = errors.New("recorder stopped")

// ArtifactHandler receives every finalized artifact.
type ArtifactHandler interface {
	HandleArtifact(ctx context.Context, artifact encoding.Artifact) error
}

// Assets provides preloaded overlay images and audio clips keyed by their
// configured reference.
type Assets interface {
	compositor.ImageSource
	Clip(key string) (media.PCM, bool)
}

// Options wires the controller to its collaborators.
type Options struct {
	Config  *config.Config
	Camera  framesource.Opener
	Files   framesource.Opener
	Encoder EncoderStarter
	Assets  Assets
	// Monitor receives countdown cues and the mixed session audio.
	Monitor   mixer.Output
	Artifacts ArtifactHandler
	Metrics   *metrics.Metrics
	Clock     clock.WithTicker
	Logger    *slog.Logger
	// CompositorOptions are passed to both compositors.
	CompositorOptions []compositor.Option
}

// Status is a point-in-time view of the controller.
type Status struct {
	State              State         `json:"state"`
	SessionID          string        `json:"session_id,omitempty"`
	Mode               Mode          `json:"mode,omitempty"`
	StartedAt          time.Time     `json:"started_at,omitzero"`
	CountdownRemaining int           `json:"countdown_remaining"`
	ElapsedMS          int64         `json:"elapsed_ms"`
	MaxMS              int64         `json:"max_ms"`
	Progress           float64       `json:"progress"`
	DroppedFrames      int           `json:"dropped_frames"`
	LastError          string        `json:"last_error,omitempty"`
	LastHint           string        `json:"last_hint,omitempty"`
	LastArtifact       *ArtifactInfo `json:"last_artifact,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type commandKind int

const (
	cmdActivate commandKind = iota
	cmdBegin
	cmdStop
	cmdReset
	cmdEdit
	cmdPreview
)

func (k commandKind) String() string {
	switch k {
	case cmdActivate:
		return "activate"
	case cmdBegin:
		return "begin"
	case cmdStop:
		return "stop"
	case cmdReset:
		return "reset"
	case cmdEdit:
		return "edit"
	case cmdPreview:
		return "preview"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	path  string
	reply chan reply
}

type reply struct {
	frame *image.RGBA
	err   error
}

// Controller owns the recording lifecycle. All state is confined to the Run
// goroutine; commands are serialized through it.
type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	clock     clock.WithTicker
	camera    framesource.Opener
	files     framesource.Opener
	encoder   EncoderStarter
	monitor   mixer.Output
	artifacts ArtifactHandler
	metrics   *metrics.Metrics
	events    *Broadcaster

	liveComp *compositor.Compositor
	editComp *compositor.Compositor
	music    media.PCM
	hasMusic bool
	cue      media.PCM
	format   media.AudioFormat
	interval time.Duration

	commands chan command
	done     chan struct{}

	state State
	sess  *session

	mu     sync.RWMutex
	status Status
}

// New builds a controller. Overlay images must already be in Assets.
func New(opts Options) (*Controller, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("recorder: config is required")
	}
	if opts.Camera == nil || opts.Encoder == nil {
		return nil, errors.New("recorder: camera opener and encoder are required")
	}
	assets := opts.Assets
	if assets == nil {
		assets = noAssets{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = mixer.Discard{}
	}

	liveOverlays, err := compositor.OverlaysFromConfig(cfg.Overlays.Live, assets)
	if err != nil {
		return nil, fmt.Errorf("live overlays: %w", err)
	}
	editOverlays, err := compositor.OverlaysFromConfig(cfg.Overlays.Edit, assets)
	if err != nil {
		return nil, fmt.Errorf("edit overlays: %w", err)
	}
	liveComp, err := compositor.New(cfg.Output.Width, cfg.Output.Height, liveOverlays, opts.CompositorOptions...)
	if err != nil {
		return nil, err
	}
	editComp, err := compositor.New(cfg.Output.Width, cfg.Output.Height, editOverlays, opts.CompositorOptions...)
	if err != nil {
		liveComp.Close()
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(opts.Logger, "recorder"),
		clock:     clk,
		camera:    opts.Camera,
		files:     opts.Files,
		encoder:   opts.Encoder,
		monitor:   monitor,
		artifacts: opts.Artifacts,
		metrics:   opts.Metrics,
		events:    NewBroadcaster(),
		liveComp:  liveComp,
		editComp:  editComp,
		format:    media.AudioFormat{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
		interval:  time.Second / time.Duration(max(cfg.Output.FPS, 1)),
		commands:  make(chan command),
		done:      make(chan struct{}),
	}
	if clip, ok := assets.Clip(strings.TrimSpace(cfg.Audio.MusicPath)); ok {
		c.music, c.hasMusic = clip, true
	}
	if clip, ok := assets.Clip(strings.TrimSpace(cfg.Audio.CountdownCue)); ok {
		c.cue = clip
	}
	c.status = Status{State: Idle, UpdatedAt: clk.Now()}
	c.metrics.SetState(Idle.String())
	return c, nil
}

type noAssets struct{}

func (noAssets) Image(string) (image.Image, bool) { return nil, false }
func (noAssets) Clip(string) (media.PCM, bool)    { return media.PCM{}, false }

// Run drives the render ticker and serves commands until ctx is cancelled.
// Any session in flight is aborted on return.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)
	defer c.shutdown()

	c.logger.Info("recorder running",
		logging.String(logging.FieldEventType, "recorder_started"),
		logging.Duration("tick", c.interval),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			cmd.reply <- c.handle(ctx, cmd)
		case <-ticker.C():
			c.tick(ctx)
		case res, ok := <-c.finalized():
			c.onFinalized(ctx, res, ok)
		case <-c.sourceDone():
			c.onSourceDone(ctx)
		}
	}
}

// Activate opens the camera and enters WebcamPreview.
func (c *Controller) Activate(ctx context.Context) error {
	_, err := c.send(ctx, command{kind: cmdActivate})
	return err
}

// Begin starts the countdown.
func (c *Controller) Begin(ctx context.Context) error {
	_, err := c.send(ctx, command{kind: cmdBegin})
	return err
}

// Stop ends capture early. It is a no-op once the session is freezing or
// finalizing.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.send(ctx, command{kind: cmdStop})
	return err
}

// Reset aborts any session and returns to Idle.
func (c *Controller) Reset(ctx context.Context) error {
	_, err := c.send(ctx, command{kind: cmdReset})
	return err
}

// Edit records the media file at path with the edit overlays.
func (c *Controller) Edit(ctx context.Context, path string) error {
	_, err := c.send(ctx, command{kind: cmdEdit, path: path})
	return err
}

// Preview composes the current frame of the active session.
func (c *Controller) Preview(ctx context.Context) (*image.RGBA, error) {
	r, err := c.send(ctx, command{kind: cmdPreview})
	return r.frame, err
}

// Subscribe registers an event listener. Call cancel to unsubscribe.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.Subscribe(buffer)
}

// Status returns the latest snapshot.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	if st.LastArtifact != nil {
		info := *st.LastArtifact
		st.LastArtifact = &info
	}
	return st
}

func (c *Controller) send(ctx context.Context, cmd command) (reply, error) {
	cmd.reply = make(chan reply, 1)
	select {
	case c.commands <- cmd:
	case <-c.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-c.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (c *Controller) handle(ctx context.Context, cmd command) reply {
	c.logger.Debug("recorder command",
		logging.String("command", cmd.kind.String()),
		logging.State(c.state),
	)
	switch cmd.kind {
	case cmdActivate:
		return reply{err: c.activate(ctx)}
	case cmdBegin:
		return reply{err: c.begin(ctx)}
	case cmdStop:
		return reply{err: c.stop(ctx)}
	case cmdReset:
		c.reset()
		return reply{}
	case cmdEdit:
		return reply{err: c.edit(ctx, cmd.path)}
	case cmdPreview:
		frame, err := c.preview()
		return reply{frame: frame, err: err}
	default:
		return reply{err: fmt.Errorf("unknown command %d", cmd.kind)}
	}
}

func (c *Controller) activate(ctx context.Context) error {
	if c.state != Idle {
		return invalidState("activate", c.state)
	}
	capture := c.cfg.Capture
	stream, err := c.camera.Open(ctx, framesource.Constraints{
		Device:      capture.Device,
		Width:       capture.Width,
		Height:      capture.Height,
		FPS:         capture.FPS,
		InputFormat: capture.InputFormat,
		ReadyFrames: capture.ReadyFrames,
	})
	if err != nil {
		c.fail(err)
		return err
	}
	c.sess = c.newSession(ModeLive, stream, capture.Device)
	c.setState(WebcamPreview)
	return nil
}

func (c *Controller) begin(ctx context.Context) error {
	if c.state != WebcamPreview {
		return invalidState("begin", c.state)
	}
	now := c.clock.Now()
	s := c.sess
	s.countdownStart = now
	s.remaining = remainingSeconds(c.cfg.Countdown())
	c.setState(Countdown)
	if err := mixer.PlayCue(c.monitor, c.cue); err != nil {
		c.logger.Debug("countdown cue failed", logging.Error(err))
	}
	c.publishCountdown(s)
	c.advance(ctx, now)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	switch c.state {
	case Capturing:
		now := c.clock.Now()
		c.enterFreezing(now)
		c.advance(ctx, now)
		return nil
	case Freezing, Finalizing:
		return nil
	default:
		return invalidState("stop", c.state)
	}
}

func (c *Controller) reset() {
	if s := c.sess; s != nil {
		c.metrics.SessionFinished(string(s.mode), "reset")
		c.logger.Info("recording session reset",
			logging.String(logging.FieldEventType, "session_reset"),
			logging.SessionID(s.id),
			logging.State(c.state),
		)
		c.cleanup()
	}
	c.setState(Idle)
}

func (c *Controller) edit(ctx context.Context, path string) error {
	if c.state != Idle {
		return invalidState("edit", c.state)
	}
	if c.files == nil {
		return services.Wrap(services.ErrConfiguration, "recorder", "edit", "no file opener configured", nil)
	}
	stream, err := c.files.Open(ctx, framesource.Constraints{
		Path:        path,
		Width:       c.cfg.Output.Width,
		Height:      c.cfg.Output.Height,
		ReadyFrames: c.cfg.Capture.ReadyFrames,
		Audio:       c.format,
	})
	if err != nil {
		c.fail(err)
		return err
	}
	c.sess = c.newSession(ModeEdit, stream, path)
	now := c.clock.Now()
	c.enterCapturing()
	c.advance(ctx, now)
	return nil
}

func (c *Controller) preview() (*image.RGBA, error) {
	s := c.sess
	if s == nil {
		return nil, invalidState("preview", c.state)
	}
	size := s.comp.Size()
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	var src compositor.Source = s.live()
	t := s.elapsed(c.clock.Now())
	if s.frozen != nil {
		src = compositor.Frozen{Image: s.frozen}
		t = s.captured
	}
	if err := s.comp.Compose(dst, src, t); err != nil {
		return nil, err
	}
	return dst, nil
}

func (c *Controller) newSession(mode Mode, stream framesource.Stream, device string) *session {
	s := &session{
		id:          uuid.NewString(),
		mode:        mode,
		device:      device,
		startedAt:   c.clock.Now(),
		stream:      stream,
		comp:        c.liveComp,
		orientation: compositor.MirrorRotate,
		max:         c.cfg.MaxRecording(),
	}
	switch {
	case mode == ModeEdit:
		s.comp = c.editComp
		s.orientation = compositor.Fit
		s.max = c.cfg.EditMax()
	case c.hasMusic:
		s.track = mixer.NewTrack(c.music)
	}
	c.logger.Info("recording session created",
		logging.String(logging.FieldEventType, "session_created"),
		logging.SessionID(s.id),
		logging.String("mode", string(mode)),
		logging.Device(device),
		logging.Duration("max", s.max),
	)
	return s
}

// tick evaluates elapsed-based transitions, then renders for the resulting
// state.
func (c *Controller) tick(ctx context.Context) {
	now := c.clock.Now()
	c.advance(ctx, now)
	c.render(now)
}

func (c *Controller) advance(ctx context.Context, now time.Time) {
	for c.step(ctx, now) {
	}
}

// step applies at most one transition and reports whether it did.
func (c *Controller) step(ctx context.Context, now time.Time) bool {
	s := c.sess
	if s == nil {
		return false
	}
	switch c.state {
	case Countdown:
		left := c.cfg.Countdown() - now.Sub(s.countdownStart)
		if left <= 0 {
			s.remaining = 0
			c.enterCapturing()
			return true
		}
		if r := remainingSeconds(left); r != s.remaining {
			s.remaining = r
			c.publishCountdown(s)
		}
	case Capturing:
		if !s.armed {
			if !s.stream.Ready() {
				return false
			}
			if err := c.arm(ctx, now); err != nil {
				c.fail(err)
				return true
			}
		}
		if now.Sub(s.captureStart) >= s.max {
			c.enterFreezing(now)
			return true
		}
	case Freezing:
		if now.Sub(s.freezeStart) >= c.cfg.Freeze() {
			c.enterFinalizing()
			return true
		}
	}
	return false
}

func (c *Controller) render(now time.Time) {
	s := c.sess
	if s == nil || s.sink == nil {
		return
	}
	switch c.state {
	case Capturing:
		elapsed := s.elapsed(now)
		c.composeFrames(s, s.live(), elapsed)
		if err := s.mixer.Pump(elapsed); err != nil {
			c.logger.Debug("audio pump failed", logging.Error(err))
		}
		if elapsed-s.lastProgress >= progressInterval {
			s.lastProgress = elapsed
			c.publishProgress(s, elapsed)
		}
	case Freezing:
		c.composeFrames(s, compositor.Frozen{Image: s.frozen}, s.captured+now.Sub(s.freezeStart))
	}
}

// framesDue is how many frames cover the video timeline [0, t] at fps.
func framesDue(t time.Duration, fps int) int64 {
	if t < 0 || fps <= 0 {
		return 0
	}
	return int64(t*time.Duration(fps)/time.Second) + 1
}

// composeFrames composes the frame for media time t once and commits it as
// many times as the video timeline is behind t. The encoder reads frames at a
// fixed rate, so a late tick or a full queue must not shorten the video
// relative to the audio. Frames the sink could not take are retried on the
// next tick.
func (c *Controller) composeFrames(s *session, src compositor.Source, t time.Duration) {
	due := framesDue(t, c.cfg.Output.FPS) - s.frames
	if due <= 0 {
		return
	}
	if s.scratch == nil {
		size := s.comp.Size()
		s.scratch = image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	}
	if err := s.comp.Compose(s.scratch, src, t); err != nil {
		if !errors.Is(err, framesource.ErrNotReady) {
			c.logger.Debug("compose failed", logging.Error(err))
		}
		return
	}
	for ; due > 0; due-- {
		buf := s.sink.NextBuffer()
		if buf == nil {
			return
		}
		copy(buf.Pix, s.scratch.Pix)
		switch err := s.sink.Commit(buf); {
		case err == nil:
			s.frames++
		case errors.Is(err, encoding.ErrFrameDropped), errors.Is(err, encoding.ErrStopped):
			return
		default:
			c.logger.Debug("commit failed", logging.Error(err))
			return
		}
	}
}

func (c *Controller) enterCapturing() {
	s := c.sess
	s.armed = false
	c.setState(Capturing)
}

// arm starts the encoder and the mixer. Capture time starts here so the
// audio track and the first video frame share an origin.
func (c *Controller) arm(ctx context.Context, now time.Time) error {
	s := c.sess
	out := c.cfg.Output
	enc := c.cfg.Encoding
	sink, err := c.encoder.StartEncoder(ctx, encoding.Spec{
		Width:            out.Width,
		Height:           out.Height,
		FPS:              out.FPS,
		FlushInterval:    c.cfg.FlushInterval(),
		Audio:            c.format,
		VideoBitrateKbps: enc.VideoBitrateKbps,
		AudioBitrateKbps: enc.AudioBitrateKbps,
		BufferFrames:     enc.BufferFrames,
		SessionID:        s.id,
	})
	if err != nil {
		return err
	}
	opts := mixer.Options{
		Mode:    mixer.Music,
		Format:  c.format,
		Track:   s.track,
		Monitor: c.monitor,
		Logger:  c.logger,
	}
	if s.mode == ModeEdit {
		opts.Mode = mixer.Passthrough
		opts.Track = nil
		opts.Source = s.stream.Audio()
	}
	m := mixer.New(opts)
	if err := m.Start(sink.Audio()); err != nil {
		sink.Abort()
		return err
	}
	s.sink = sink
	s.mixer = m
	s.armed = true
	s.captureStart = now
	s.lastProgress = 0
	c.logger.Info("capture started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.SessionID(s.id),
		logging.String("audio", opts.Mode.String()),
	)
	c.publishProgress(s, 0)
	return nil
}

// enterFreezing snapshots the live layer, ends the audio at the capture
// instant and releases the source.
func (c *Controller) enterFreezing(now time.Time) {
	s := c.sess
	if !s.armed {
		c.fail(services.Wrap(services.ErrDevice, "recorder", "capture", "stopped before the source delivered frames", nil))
		return
	}
	s.captured = s.elapsed(now)
	snap, err := s.comp.Snapshot(s.live())
	if err != nil {
		logging.WarnWithContext(c.logger, "freeze snapshot failed", "freeze_snapshot_failed",
			logging.SessionID(s.id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "freeze hold shows overlays on a blank frame"),
		)
		size := s.comp.Size()
		snap = image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	}
	if err := s.mixer.Stop(s.captured); err != nil {
		logging.WarnWithContext(c.logger, "audio stop failed", "audio_stop_failed",
			logging.SessionID(s.id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "artifact audio may be truncated"),
		)
	}
	c.closeStream(s)
	s.frozen = snap
	s.freezeStart = now
	c.publishProgress(s, s.captured)
	c.setState(Freezing)
}

func (c *Controller) enterFinalizing() {
	c.sess.sink.Stop()
	c.setState(Finalizing)
}

func (c *Controller) onFinalized(ctx context.Context, res encoding.Result, ok bool) {
	s := c.sess
	if s == nil {
		return
	}
	if !ok {
		s.sink = nil
		return
	}
	if res.Err != nil {
		c.fail(res.Err)
		return
	}
	c.closeStream(s)
	art := res.Artifact
	c.metrics.ObserveArtifact(art.Size(), art.Duration)
	c.metrics.AddFrames(s.sink.Committed(), s.sink.Dropped())
	c.logger.Info("recording finalized",
		logging.String(logging.FieldEventType, "recording_finalized"),
		logging.SessionID(s.id),
		logging.String("filename", art.Filename),
		logging.Int("bytes", art.Size()),
		logging.Duration("captured", s.captured),
		logging.Int64("audio_frames", s.mixer.Frames()),
	)
	if c.artifacts != nil {
		if err := c.artifacts.HandleArtifact(ctx, art); err != nil {
			attrs := append([]logging.Attr{
				logging.SessionID(s.id),
				logging.String(logging.FieldImpact, "artifact was not queued for upload"),
			}, logging.Failure(err)...)
			logging.WarnWithContext(c.logger, "artifact handoff failed", "artifact_handoff_failed", attrs...)
		}
	}
	info := describeArtifact(art)
	c.updateStatus(func(st *Status) {
		st.LastArtifact = info
		st.LastError = ""
		st.LastHint = ""
	})
	c.publish(Event{Kind: EventArtifact, Artifact: &art, ArtifactInfo: info})
	c.metrics.SessionFinished(string(s.mode), "completed")
	c.endSession()
	c.setState(Idle)
}

func (c *Controller) onSourceDone(ctx context.Context) {
	s := c.sess
	if s == nil {
		return
	}
	err := s.stream.Err()
	if err == nil && c.state == Capturing && s.armed {
		c.logger.Info("source ended",
			logging.SessionID(s.id),
			logging.Device(s.device),
		)
		now := c.clock.Now()
		c.enterFreezing(now)
		c.advance(ctx, now)
		return
	}
	if err == nil {
		err = &services.DeviceError{Device: s.device, Op: "read", Reason: "source ended before capture"}
	}
	c.fail(err)
}

// fail aborts the session, records the error, and returns to Idle.
func (c *Controller) fail(err error) {
	event := Event{Kind: EventError, Error: err.Error(), Hint: services.HintFor(err)}
	attrs := []logging.Attr{logging.State(c.state)}
	if s := c.sess; s != nil {
		event.SessionID = s.id
		event.Mode = s.mode
		attrs = append(attrs, logging.SessionID(s.id))
		c.metrics.SessionFinished(string(s.mode), "failed")
		c.cleanup()
	}
	attrs = append(attrs, logging.Failure(err)...)
	logging.ErrorWithContext(c.logger, "recording session failed", "session_failed", attrs...)
	c.updateStatus(func(st *Status) {
		st.LastError = event.Error
		st.LastHint = event.Hint
	})
	c.publish(event)
	c.setState(Idle)
}

// cleanup discards every session resource without flushing.
func (c *Controller) cleanup() {
	s := c.sess
	if s == nil {
		return
	}
	if s.sink != nil {
		s.sink.Abort()
	}
	if s.mixer != nil {
		s.mixer.Abort()
	}
	c.endSession()
}

func (c *Controller) endSession() {
	if s := c.sess; s != nil {
		c.closeStream(s)
		if s.track != nil {
			s.track.Release()
		}
	}
	c.sess = nil
}

func (c *Controller) closeStream(s *session) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		c.logger.Debug("close source failed", logging.Error(err))
	}
}

func (c *Controller) shutdown() {
	if c.sess != nil {
		c.metrics.SessionFinished(string(c.sess.mode), "reset")
		c.cleanup()
	}
	c.setState(Idle)
	c.liveComp.Close()
	c.editComp.Close()
	c.events.Close()
	c.logger.Info("recorder stopped", logging.String(logging.FieldEventType, "recorder_stopped"))
}

func (c *Controller) finalized() <-chan encoding.Result {
	if c.sess == nil || c.sess.sink == nil {
		return nil
	}
	return c.sess.sink.Finalized()
}

func (c *Controller) sourceDone() <-chan struct{} {
	if c.sess == nil || c.sess.stream == nil {
		return nil
	}
	switch c.state {
	case WebcamPreview, Countdown, Capturing:
		return c.sess.stream.Done()
	default:
		return nil
	}
}

func (c *Controller) setState(next State) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	c.metrics.SetState(next.String())
	c.updateStatus(nil)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "state_changed"),
		logging.String("from", prev.String()),
		logging.State(next),
	}
	if c.sess != nil {
		attrs = append(attrs, logging.SessionID(c.sess.id))
	}
	c.logger.Info("recorder state changed", logging.Args(attrs...)...)
	c.publish(Event{Kind: EventState})
}

func (c *Controller) publishCountdown(s *session) {
	c.updateStatus(nil)
	c.publish(Event{Kind: EventCountdown, Remaining: s.remaining})
}

func (c *Controller) publishProgress(s *session, elapsed time.Duration) {
	c.updateStatus(func(st *Status) {
		st.ElapsedMS = elapsed.Milliseconds()
		st.Progress = s.progress(elapsed)
	})
	c.publish(Event{Kind: EventProgress, ElapsedMS: elapsed.Milliseconds(), Progress: s.progress(elapsed)})
}

// updateStatus rebuilds the session fields of the snapshot and then applies
// fn, if any.
func (c *Controller) updateStatus(fn func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := &c.status
	st.State = c.state
	st.UpdatedAt = c.clock.Now()
	if s := c.sess; s != nil {
		if st.SessionID != s.id {
			st.ElapsedMS = 0
			st.Progress = 0
		}
		st.SessionID = s.id
		st.Mode = s.mode
		st.StartedAt = s.startedAt
		st.MaxMS = s.max.Milliseconds()
		st.CountdownRemaining = 0
		if c.state == Countdown {
			st.CountdownRemaining = s.remaining
		}
		if s.sink != nil {
			st.DroppedFrames = s.sink.Dropped()
		}
	} else {
		st.SessionID = ""
		st.Mode = ""
		st.StartedAt = time.Time{}
		st.CountdownRemaining = 0
		st.ElapsedMS = 0
		st.MaxMS = 0
		st.Progress = 0
		st.DroppedFrames = 0
	}
	if fn != nil {
		fn(st)
	}
}

func (c *Controller) publish(e Event) {
	e.State = c.state
	e.Time = c.clock.Now()
	if e.SessionID == "" && c.sess != nil {
		e.SessionID = c.sess.id
		e.Mode = c.sess.mode
	}
	c.events.Publish(e)
}
