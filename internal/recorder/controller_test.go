package recorder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/draw"
	clocktesting "k8s.io/utils/clock/testing"

	"reelbooth/internal/compositor"
	"reelbooth/internal/config"
	"reelbooth/internal/encoding"
	"reelbooth/internal/framesource"
	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/services"
	"reelbooth/internal/testsupport"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

type fakeStream struct {
	mu     sync.Mutex
	frame  *image.RGBA
	ready  bool
	audio  *media.PCMQueue
	done   chan struct{}
	ended  bool
	err    error
	closes int
}

func newFakeStream(c color.RGBA) *fakeStream {
	return &fakeStream{frame: solid(8, 4, c), ready: true, done: make(chan struct{})}
}

func (s *fakeStream) setColor(c color.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = solid(8, 4, c)
}

func (s *fakeStream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.done)
}

func (s *fakeStream) CurrentFrame() (media.Frame, error) {
	var out media.Frame
	err := s.WithCurrentFrame(func(f media.Frame) error {
		out = f.Clone()
		return nil
	})
	return out, err
}

func (s *fakeStream) WithCurrentFrame(fn func(media.Frame) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return framesource.ErrNotReady
	}
	return fn(media.Frame{Image: s.frame})
}

func (s *fakeStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeStream) Size() image.Point      { return image.Pt(8, 4) }
func (s *fakeStream) Audio() *media.PCMQueue { return s.audio }
func (s *fakeStream) Done() <-chan struct{}  { return s.done }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.end(nil)
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeOpener struct {
	stream *fakeStream
	err    error
	calls  []framesource.Constraints
}

func (o *fakeOpener) Open(_ context.Context, c framesource.Constraints) (framesource.Stream, error) {
	o.calls = append(o.calls, c)
	if o.err != nil {
		return nil, o.err
	}
	return o.stream, nil
}

type audioCapture struct {
	bytes.Buffer
	closed int
}

func (a *audioCapture) Close() error {
	a.closed++
	return nil
}

type fakeSink struct {
	spec      encoding.Spec
	frames    []*image.RGBA
	states    []State
	audio     *audioCapture
	finalized chan encoding.Result
	stops     int
	aborted   bool
	stopped   bool
	rejects   int
	current   func() State
}

func (s *fakeSink) NextBuffer() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, s.spec.Width, s.spec.Height))
}

func (s *fakeSink) Release(*image.RGBA) {}

func (s *fakeSink) Commit(buf *image.RGBA) error {
	if s.stopped {
		return encoding.ErrStopped
	}
	if s.rejects > 0 {
		s.rejects--
		return encoding.ErrFrameDropped
	}
	s.frames = append(s.frames, buf)
	s.states = append(s.states, s.current())
	return nil
}

func (s *fakeSink) Audio() io.WriteCloser             { return s.audio }
func (s *fakeSink) Finalized() <-chan encoding.Result { return s.finalized }
func (s *fakeSink) Dropped() int                      { return 0 }
func (s *fakeSink) Committed() int                    { return len(s.frames) }

func (s *fakeSink) Stop() {
	s.stops++
	s.stopped = true
}

func (s *fakeSink) Abort() {
	if s.aborted {
		return
	}
	s.aborted = true
	s.stopped = true
	close(s.finalized)
}

type fakeEncoder struct {
	err   error
	sinks []*fakeSink
	ctrl  *Controller
}

func (e *fakeEncoder) StartEncoder(_ context.Context, spec encoding.Spec) (EncoderSink, error) {
	if e.err != nil {
		return nil, e.err
	}
	sink := &fakeSink{
		spec:      spec,
		audio:     &audioCapture{},
		finalized: make(chan encoding.Result, 1),
		current:   func() State { return e.ctrl.state },
	}
	e.sinks = append(e.sinks, sink)
	return sink, nil
}

func (e *fakeEncoder) last(t *testing.T) *fakeSink {
	t.Helper()
	if len(e.sinks) == 0 {
		t.Fatal("no encoder started")
	}
	return e.sinks[len(e.sinks)-1]
}

type assetMap struct {
	images map[string]image.Image
	clips  map[string]media.PCM
}

func (a assetMap) Image(key string) (image.Image, bool) {
	img, ok := a.images[key]
	return img, ok
}

func (a assetMap) Clip(key string) (media.PCM, bool) {
	clip, ok := a.clips[key]
	return clip, ok
}

type artifactRecorder struct {
	artifacts []encoding.Artifact
	err       error
}

func (r *artifactRecorder) HandleArtifact(_ context.Context, a encoding.Artifact) error {
	r.artifacts = append(r.artifacts, a)
	return r.err
}

type harness struct {
	ctrl      *Controller
	clock     *clocktesting.FakeClock
	camera    *fakeOpener
	files     *fakeOpener
	encoder   *fakeEncoder
	artifacts *artifactRecorder
	events    <-chan Event
	cfg       *config.Config
}

var testAudio = media.AudioFormat{SampleRate: 1000, Channels: 2}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSessionTiming(2, 1, 1000))
	cfg.Output = config.Output{Width: 16, Height: 32, FPS: 10}
	cfg.Audio.SampleRate = testAudio.SampleRate
	cfg.Audio.Channels = testAudio.Channels

	transparent := image.NewRGBA(image.Rect(0, 0, 4, 4))
	assets := assetMap{
		images: map[string]image.Image{
			"closeup-frame.png": transparent,
			"logo.png":          transparent,
		},
		clips: map[string]media.PCM{
			cfg.Audio.MusicPath:    {Format: testAudio, Data: bytes.Repeat([]byte{1, 0, 2, 0}, 500)},
			cfg.Audio.CountdownCue: {Format: testAudio, Data: make([]byte, 40)},
		},
	}

	h := &harness{
		clock:     clocktesting.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		camera:    &fakeOpener{stream: newFakeStream(red)},
		files:     &fakeOpener{stream: newFakeStream(red)},
		encoder:   &fakeEncoder{},
		artifacts: &artifactRecorder{},
		cfg:       cfg,
	}
	ctrl, err := New(Options{
		Config:            cfg,
		Camera:            h.camera,
		Files:             h.files,
		Encoder:           h.encoder,
		Assets:            assets,
		Artifacts:         h.artifacts,
		Clock:             h.clock,
		Logger:            logging.NewNop(),
		CompositorOptions: []compositor.Option{compositor.WithInterpolator(draw.NearestNeighbor)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctrl.liveComp.Close()
		ctrl.editComp.Close()
	})
	h.encoder.ctrl = ctrl
	h.ctrl = ctrl
	h.events, _ = ctrl.Subscribe(1024)
	return h
}

func (h *harness) do(t *testing.T, cmd command) error {
	t.Helper()
	return h.ctrl.handle(context.Background(), cmd).err
}

func (h *harness) ticks(n int) {
	for range n {
		h.clock.Step(h.ctrl.interval)
		h.ctrl.tick(context.Background())
	}
}

func (h *harness) tickUntil(t *testing.T, want State, limit int) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		h.ticks(1)
		if h.ctrl.state == want {
			return i
		}
	}
	t.Fatalf("state %s not reached within %d ticks (at %s)", want, limit, h.ctrl.state)
	return 0
}

func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func stateEvents(events []Event) []State {
	var out []State
	for _, e := range events {
		if e.Kind == EventState {
			out = append(out, e.State)
		}
	}
	return out
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func centerPixel(img *image.RGBA) color.RGBA {
	b := img.Bounds()
	return img.RGBAAt(b.Dx()/2, b.Dy()/2)
}

func TestLiveSessionProducesOneArtifact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.do(t, command{kind: cmdActivate}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := h.do(t, command{kind: cmdBegin}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if h.ctrl.state != Countdown {
		t.Fatalf("state = %s, want countdown", h.ctrl.state)
	}

	if n := h.tickUntil(t, Capturing, 20); n != 10 {
		t.Fatalf("countdown took %d ticks, want 10", n)
	}
	if n := h.tickUntil(t, Freezing, 40); n != 20 {
		t.Fatalf("capture took %d ticks, want 20", n)
	}
	sink := h.encoder.last(t)
	wantBytes := 2 * testAudio.SampleRate * testAudio.BytesPerFrame()
	if sink.audio.Len() != wantBytes {
		t.Fatalf("audio bytes = %d, want %d (2s)", sink.audio.Len(), wantBytes)
	}
	if sink.audio.closed != 1 {
		t.Fatalf("audio closed %d times, want 1", sink.audio.closed)
	}
	if h.camera.stream.closeCount() == 0 {
		t.Fatal("source should be closed on freeze")
	}

	if n := h.tickUntil(t, Finalizing, 20); n != 10 {
		t.Fatalf("freeze took %d ticks, want 10", n)
	}
	if sink.stops != 1 {
		t.Fatalf("encoder stops = %d, want 1", sink.stops)
	}

	h.ctrl.onFinalized(ctx, encoding.Result{Artifact: encoding.Artifact{
		Data:      []byte("webm"),
		Profile:   "webm-vp9",
		MIMEType:  "video/webm",
		Filename:  "video-1.webm",
		Duration:  3 * time.Second,
		SessionID: sink.spec.SessionID,
	}}, true)
	if h.ctrl.state != Idle {
		t.Fatalf("state = %s, want idle", h.ctrl.state)
	}
	if len(h.artifacts.artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(h.artifacts.artifacts))
	}

	events := h.drain()
	want := []State{WebcamPreview, Countdown, Capturing, Freezing, Finalizing, Idle}
	if got := stateEvents(events); !equalStates(got, want) {
		t.Fatalf("state events = %v, want %v", got, want)
	}
	var artifactEvents int
	for _, e := range events {
		if e.Kind == EventArtifact {
			artifactEvents++
			if e.Artifact == nil || e.ArtifactInfo.Filename != "video-1.webm" {
				t.Fatalf("artifact event = %+v", e)
			}
		}
	}
	if artifactEvents != 1 {
		t.Fatalf("artifact events = %d, want 1", artifactEvents)
	}
	if st := h.ctrl.Status(); st.LastArtifact == nil || st.SessionID != "" {
		t.Fatalf("status after finalize = %+v", st)
	}
}

func TestCountdownPublishesWholeSeconds(t *testing.T) {
	h := newHarness(t)
	h.cfg.Session.CountdownSeconds = 3
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 40)

	var got []int
	for _, e := range h.drain() {
		if e.Kind == EventCountdown {
			got = append(got, e.Remaining)
		}
	}
	want := []int{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("countdown events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("countdown events = %v, want %v", got, want)
		}
	}
}

func TestFreezeHoldsStableVideoLayer(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(5)
	if err := h.do(t, command{kind: cmdStop}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.camera.stream.setColor(blue)
	h.tickUntil(t, Finalizing, 20)

	sink := h.encoder.last(t)
	var frozen []*image.RGBA
	for i, s := range sink.states {
		if s == Freezing {
			frozen = append(frozen, sink.frames[i])
		}
	}
	if len(frozen) != 9 {
		t.Fatalf("freeze frames = %d, want 9", len(frozen))
	}
	for i, f := range frozen {
		if got := centerPixel(f); got != red {
			t.Fatalf("freeze frame %d center = %v, want %v", i, got, red)
		}
		if !bytes.Equal(f.Pix, frozen[0].Pix) {
			t.Fatalf("freeze frame %d differs from the first", i)
		}
	}
}

func TestLateTickKeepsVideoOnCaptureTimeline(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(2)

	sink := h.encoder.last(t)
	before := len(sink.frames)
	h.clock.Step(3 * h.ctrl.interval)
	h.ctrl.tick(context.Background())

	if added := len(sink.frames) - before; added != 3 {
		t.Fatalf("late tick committed %d frames, want 3", added)
	}
	elapsed := h.ctrl.sess.elapsed(h.clock.Now())
	video := time.Duration(len(sink.frames)-1) * time.Second / time.Duration(h.cfg.Output.FPS)
	if video != elapsed {
		t.Fatalf("video timeline at %v, capture at %v", video, elapsed)
	}
	for _, f := range sink.frames[before:] {
		if !bytes.Equal(f.Pix, sink.frames[before].Pix) {
			t.Fatal("catch-up frames should repeat the latest composition")
		}
	}
}

func TestRejectedFramesAreRetried(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)

	sink := h.encoder.last(t)
	before := len(sink.frames)
	sink.rejects = 1
	h.ticks(1)
	if len(sink.frames) != before {
		t.Fatalf("rejected frame was recorded: %d frames", len(sink.frames))
	}
	h.ticks(1)
	if added := len(sink.frames) - before; added != 2 {
		t.Fatalf("retry committed %d frames, want 2", added)
	}
}

func TestFreezeHoldCoversFreezeDuration(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(4)
	if err := h.do(t, command{kind: cmdStop}); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// One late tick spanning most of the hold.
	h.clock.Step(7 * h.ctrl.interval)
	h.ctrl.tick(context.Background())
	h.tickUntil(t, Finalizing, 10)

	sink := h.encoder.last(t)
	var frozen int
	for _, st := range sink.states {
		if st == Freezing {
			frozen++
		}
	}
	hold := time.Duration(frozen) * time.Second / time.Duration(h.cfg.Output.FPS)
	if want := h.cfg.Freeze(); hold < want-h.ctrl.interval || hold > want {
		t.Fatalf("freeze hold %v, want %v within one frame", hold, want)
	}
}

func TestDoubleStopFreezesOnce(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(3)
	h.drain()

	for range 2 {
		if err := h.do(t, command{kind: cmdStop}); err != nil {
			t.Fatalf("stop: %v", err)
		}
	}
	got := stateEvents(h.drain())
	if !equalStates(got, []State{Freezing}) {
		t.Fatalf("state events = %v, want one freezing", got)
	}
	sink := h.encoder.last(t)
	if want := 300 * testAudio.BytesPerFrame(); sink.audio.Len() != want {
		t.Fatalf("audio bytes = %d, want %d (300ms)", sink.audio.Len(), want)
	}
}

func TestResetFromEveryState(t *testing.T) {
	reach := map[State]func(t *testing.T, h *harness){
		Idle:          func(*testing.T, *harness) {},
		WebcamPreview: func(t *testing.T, h *harness) { _ = h.do(t, command{kind: cmdActivate}) },
		Countdown: func(t *testing.T, h *harness) {
			_ = h.do(t, command{kind: cmdActivate})
			_ = h.do(t, command{kind: cmdBegin})
		},
		Capturing: func(t *testing.T, h *harness) {
			_ = h.do(t, command{kind: cmdActivate})
			_ = h.do(t, command{kind: cmdBegin})
			h.tickUntil(t, Capturing, 20)
		},
		Freezing: func(t *testing.T, h *harness) {
			_ = h.do(t, command{kind: cmdActivate})
			_ = h.do(t, command{kind: cmdBegin})
			h.tickUntil(t, Freezing, 60)
		},
		Finalizing: func(t *testing.T, h *harness) {
			_ = h.do(t, command{kind: cmdActivate})
			_ = h.do(t, command{kind: cmdBegin})
			h.tickUntil(t, Finalizing, 80)
		},
	}
	for state, setup := range reach {
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(t)
			setup(t, h)
			if h.ctrl.state != state {
				t.Fatalf("setup reached %s, want %s", h.ctrl.state, state)
			}
			var track *mixer.Track
			if h.ctrl.sess != nil {
				track = h.ctrl.sess.track
			}
			if err := h.do(t, command{kind: cmdReset}); err != nil {
				t.Fatalf("reset: %v", err)
			}
			if h.ctrl.state != Idle || h.ctrl.sess != nil {
				t.Fatalf("after reset state=%s session=%v", h.ctrl.state, h.ctrl.sess)
			}
			if len(h.encoder.sinks) > 0 {
				sink := h.encoder.last(t)
				if !sink.aborted {
					t.Fatal("encoder should be aborted")
				}
			}
			if state != Idle && h.camera.stream.closeCount() == 0 {
				t.Fatal("source should be closed")
			}
			if track != nil && track.Playing() {
				t.Fatal("music should be released")
			}
			h.ticks(3)
			if h.ctrl.state != Idle {
				t.Fatalf("state drifted to %s after reset", h.ctrl.state)
			}
		})
	}
}

func TestEachLiveSessionOwnsItsTrack(t *testing.T) {
	h := newHarness(t)
	if err := h.do(t, command{kind: cmdActivate}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	first := h.ctrl.sess.track
	if first == nil {
		t.Fatal("live session should own a music track")
	}
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(2)
	if !first.Playing() {
		t.Fatal("music should play during capture")
	}
	_ = h.do(t, command{kind: cmdReset})
	if first.Playing() {
		t.Fatal("music should stop with its session")
	}

	if err := h.do(t, command{kind: cmdActivate}); err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if second := h.ctrl.sess.track; second == nil || second == first {
		t.Fatal("second session should get a fresh track")
	}
}

func TestActivateDeviceErrorStaysIdle(t *testing.T) {
	h := newHarness(t)
	h.camera.err = &services.DeviceError{Device: "/dev/video0", Op: "open", Reason: services.ReasonBusy}

	err := h.do(t, command{kind: cmdActivate})
	var devErr *services.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("activate err = %v, want DeviceError", err)
	}
	if h.ctrl.state != Idle {
		t.Fatalf("state = %s, want idle", h.ctrl.state)
	}
	events := h.drain()
	if len(events) != 1 || events[0].Kind != EventError || events[0].Hint == "" {
		t.Fatalf("events = %+v, want one error with hint", events)
	}
	if st := h.ctrl.Status(); st.LastError == "" {
		t.Fatal("status should carry the error")
	}
}

func TestFatalEncodeErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.encoder.err = &services.FatalEncodeError{Tried: []string{"webm-vp9", "webm-vp8", "mp4-h264"}}
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.ticks(10)

	if h.ctrl.state != Idle {
		t.Fatalf("state = %s, want idle", h.ctrl.state)
	}
	if h.camera.stream.closeCount() == 0 {
		t.Fatal("source should be closed after encode failure")
	}
	var found bool
	for _, e := range h.drain() {
		if e.Kind == EventError && e.Hint != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an error event with a hint")
	}
}

func TestEncoderFailureDuringCapture(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(2)

	h.ctrl.onFinalized(context.Background(), encoding.Result{
		Err: services.Wrap(services.ErrEncode, "encoding", "ffmpeg", "encoder exited before stop", nil),
	}, true)
	if h.ctrl.state != Idle {
		t.Fatalf("state = %s, want idle", h.ctrl.state)
	}
	if len(h.artifacts.artifacts) != 0 {
		t.Fatal("failed encode must not produce an artifact")
	}
}

func TestCaptureWaitsForReadySource(t *testing.T) {
	h := newHarness(t)
	h.camera.stream.ready = false
	_ = h.do(t, command{kind: cmdActivate})
	_ = h.do(t, command{kind: cmdBegin})
	h.tickUntil(t, Capturing, 20)
	h.ticks(5)
	if len(h.encoder.sinks) != 0 {
		t.Fatal("encoder should not start before the source is ready")
	}

	h.camera.stream.mu.Lock()
	h.camera.stream.ready = true
	h.camera.stream.mu.Unlock()
	h.ticks(1)
	if len(h.encoder.sinks) != 1 {
		t.Fatal("encoder should start once the source is ready")
	}
	if n := h.tickUntil(t, Freezing, 40); n != 20 {
		t.Fatalf("capture after arming took %d more ticks, want 20", n)
	}
}

func TestInvalidCommands(t *testing.T) {
	h := newHarness(t)
	for _, kind := range []commandKind{cmdBegin, cmdStop, cmdPreview} {
		if err := h.do(t, command{kind: kind}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s from idle: err = %v", kind, err)
		}
	}
	_ = h.do(t, command{kind: cmdActivate})
	if err := h.do(t, command{kind: cmdActivate}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second activate: err = %v", err)
	}
	if err := h.do(t, command{kind: cmdEdit, path: "clip.mp4"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("edit while previewing: err = %v", err)
	}
}

func TestEditSessionStopsAtSourceEnd(t *testing.T) {
	h := newHarness(t)
	queue := &media.PCMQueue{}
	_, _ = queue.Write(bytes.Repeat([]byte{9, 0, 9, 0}, 2000))
	h.files.stream.audio = queue

	if err := h.do(t, command{kind: cmdEdit, path: "/tmp/clip.mp4"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if h.ctrl.state != Capturing {
		t.Fatalf("state = %s, want capturing", h.ctrl.state)
	}
	if got := h.files.calls[0].Path; got != "/tmp/clip.mp4" {
		t.Fatalf("opened %q", got)
	}
	h.ticks(7)
	h.files.stream.end(nil)
	h.ctrl.onSourceDone(context.Background())
	if h.ctrl.state != Freezing {
		t.Fatalf("state = %s, want freezing", h.ctrl.state)
	}

	sink := h.encoder.last(t)
	if want := 700 * testAudio.BytesPerFrame(); sink.audio.Len() != want {
		t.Fatalf("audio bytes = %d, want %d", sink.audio.Len(), want)
	}
	if sink.audio.Bytes()[0] != 9 {
		t.Fatal("edit audio should pass the source through")
	}
	if h.ctrl.sess.max != h.cfg.EditMax() {
		t.Fatalf("edit max = %s", h.ctrl.sess.max)
	}
}

func TestSourceFailureDuringPreview(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	h.camera.stream.end(&services.DeviceError{Device: "/dev/video0", Op: "read", Reason: services.ReasonNoFrames})
	h.ctrl.onSourceDone(context.Background())
	if h.ctrl.state != Idle {
		t.Fatalf("state = %s, want idle", h.ctrl.state)
	}
}

func TestPreviewComposesCurrentFrame(t *testing.T) {
	h := newHarness(t)
	_ = h.do(t, command{kind: cmdActivate})
	r := h.ctrl.handle(context.Background(), command{kind: cmdPreview})
	if r.err != nil {
		t.Fatalf("preview: %v", r.err)
	}
	if got := centerPixel(r.frame); got != red {
		t.Fatalf("preview center = %v, want %v", got, red)
	}
}

func TestRunServesCommands(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Run(ctx) }()

	if err := h.ctrl.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if st := h.ctrl.Status(); st.State != WebcamPreview || st.Mode != ModeLive || st.SessionID == "" {
		t.Fatalf("status = %+v", st)
	}
	if err := h.ctrl.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := h.ctrl.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := h.ctrl.Activate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Activate after Run: %v", err)
	}
}
