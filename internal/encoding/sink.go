package encoding

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/services"
	"reelbooth/internal/textutil"
)

var (
	// ErrStopped is returned by Commit once the sink is stopping or aborted.
	ErrStopped = errors.New("encoder sink stopped")
	// ErrFrameDropped is returned by Commit when the encoder queue is full.
	// The buffer is back in the pool and the frame is counted as dropped.
	ErrFrameDropped = errors.New("encoder queue full")
)

const (
	defaultBufferFrames = 4
	defaultChunkBacklog = 1024
	readBlockBytes      = 32 * 1024
)

// Spec describes one encode session.
type Spec struct {
	Width            int
	Height           int
	FPS              int
	FlushInterval    time.Duration
	Audio            media.AudioFormat
	Profile          Profile
	VideoBitrateKbps int
	AudioBitrateKbps int
	// BufferFrames is the size of the frame buffer pool.
	BufferFrames int
	// ChunkBacklog bounds how many unread chunks Chunks holds.
	ChunkBacklog int
	SessionID    string
}

// Options carries process-level collaborators.
type Options struct {
	Binary string
	Logger *slog.Logger
	Clock  clock.WithTicker
}

// Chunk is a slice of container output. Chunks arrive in order and their
// concatenation equals the artifact.
type Chunk struct {
	Seq   int
	Data  []byte
	Final bool
}

// Sink is one running encoder process.
type Sink struct {
	logger    *slog.Logger
	spec      Spec
	clock     clock.WithTicker
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	audio     *audioPipe
	stderr    *textutil.Tail
	createdAt time.Time

	frames    chan *image.RGBA
	free      chan *image.RGBA
	chunks    chan Chunk
	finalized chan Result
	collected chan struct{}
	done      chan struct{}
	group     errgroup.Group

	mu         sync.Mutex
	stopping   bool
	aborted    bool
	finished   bool
	committed  int
	dropped    int
	lostChunks int
	seq        int
	pending    []byte
	output     []byte
}

// Start launches the encoder. Cancelling ctx aborts the sink.
func Start(ctx context.Context, spec Spec, opts Options) (*Sink, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return nil, services.Wrap(services.ErrValidation, "encoding", "start", fmt.Sprintf("invalid geometry %dx%d@%d", spec.Width, spec.Height, spec.FPS), nil)
	}
	if spec.Profile.Name == "" {
		return nil, services.Wrap(services.ErrValidation, "encoding", "start", "no profile negotiated", nil)
	}
	if spec.Audio.SampleRate <= 0 || spec.Audio.Channels <= 0 {
		spec.Audio = media.DefaultAudioFormat
	}
	if spec.FlushInterval <= 0 {
		spec.FlushInterval = 100 * time.Millisecond
	}
	if spec.BufferFrames <= 0 {
		spec.BufferFrames = defaultBufferFrames
	}
	if spec.ChunkBacklog <= 0 {
		spec.ChunkBacklog = defaultChunkBacklog
	}
	if spec.VideoBitrateKbps <= 0 {
		spec.VideoBitrateKbps = 2500
	}
	if spec.AudioBitrateKbps <= 0 {
		spec.AudioBitrateKbps = 128
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	audioR, audioW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("encoder audio pipe: %w", err)
	}
	cmd := exec.Command(binary, encodeArgs(spec)...) //nolint:gosec
	cmd.ExtraFiles = []*os.File{audioR}
	stderr := textutil.NewTail(0)
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = audioR.Close()
		_ = audioW.Close()
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = audioR.Close()
		_ = audioW.Close()
		return nil, fmt.Errorf("encoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = audioR.Close()
		_ = audioW.Close()
		return nil, services.Wrap(services.ErrExternalTool, "encoding", "start ffmpeg", binary, err)
	}
	_ = audioR.Close()

	s := &Sink{
		logger:    logging.NewComponentLogger(opts.Logger, "encoder"),
		spec:      spec,
		clock:     clk,
		cmd:       cmd,
		stdin:     stdin,
		audio:     newAudioPipe(audioW),
		stderr:    stderr,
		createdAt: clk.Now(),
		frames:    make(chan *image.RGBA, spec.BufferFrames),
		free:      make(chan *image.RGBA, spec.BufferFrames),
		chunks:    make(chan Chunk, spec.ChunkBacklog),
		finalized: make(chan Result, 1),
		collected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for range spec.BufferFrames {
		s.free <- image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	}

	s.group.Go(s.writeVideo)
	s.group.Go(s.audio.run)
	s.group.Go(func() error { return s.collect(stdout) })
	s.group.Go(s.flushLoop)
	go s.supervise()
	go func() {
		select {
		case <-ctx.Done():
			s.Abort()
		case <-s.done:
		}
	}()

	s.logger.Info("encoder started",
		logging.String(logging.FieldEventType, "encoder_started"),
		logging.SessionID(spec.SessionID),
		logging.String("profile", spec.Profile.Name),
		logging.Int("width", spec.Width),
		logging.Int("height", spec.Height),
		logging.Int("fps", spec.FPS),
	)
	return s, nil
}

func encodeArgs(spec Spec) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", strconv.Itoa(spec.FPS),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(spec.Audio.SampleRate),
		"-ac", strconv.Itoa(spec.Audio.Channels),
		"-i", "pipe:3",
		"-map", "0:v:0", "-map", "1:a:0",
	}
	return append(args, spec.Profile.outputArgs(spec)...)
}

// Profile returns the negotiated profile.
func (s *Sink) Profile() Profile { return s.spec.Profile }

// Audio returns the PCM destination for the mixer. Closing it ends the
// audio track.
func (s *Sink) Audio() io.WriteCloser { return s.audio }

// NextBuffer hands out an exclusive frame buffer, or nil when every buffer is
// still queued for the encoder. A nil return is counted as a dropped frame.
func (s *Sink) NextBuffer() *image.RGBA {
	select {
	case buf := <-s.free:
		return buf
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return nil
	}
}

// Commit transfers ownership of buf to the encoder.
func (s *Sink) Commit(buf *image.RGBA) error {
	if buf == nil {
		return nil
	}
	if buf.Rect.Dx() != s.spec.Width || buf.Rect.Dy() != s.spec.Height {
		return fmt.Errorf("commit %dx%d frame to %dx%d encoder", buf.Rect.Dx(), buf.Rect.Dy(), s.spec.Width, s.spec.Height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping || s.aborted {
		s.release(buf)
		return ErrStopped
	}
	select {
	case s.frames <- buf:
		s.committed++
		return nil
	default:
		s.dropped++
		s.release(buf)
		return ErrFrameDropped
	}
}

// Release returns an uncommitted buffer to the pool.
func (s *Sink) Release(buf *image.RGBA) {
	if buf == nil {
		return
	}
	s.release(buf)
}

func (s *Sink) release(buf *image.RGBA) {
	select {
	case s.free <- buf:
	default:
	}
}

// Dropped returns how many frames were skipped because the encoder lagged.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Committed returns how many frames were handed to the encoder.
func (s *Sink) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Chunks delivers output chunks in order and is closed after the final one.
func (s *Sink) Chunks() <-chan Chunk { return s.chunks }

// LostChunks returns how many chunks were discarded because nobody drained
// Chunks in time.
func (s *Sink) LostChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lostChunks
}

// Finalized delivers exactly one Result and is then closed. After Abort it
// is closed without a value.
func (s *Sink) Finalized() <-chan Result { return s.finalized }

// Stop ends input so the encoder can flush. It returns immediately; repeated
// calls are no-ops.
func (s *Sink) Stop() {
	s.mu.Lock()
	if s.stopping || s.aborted {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	close(s.frames)
	committed := s.committed
	s.mu.Unlock()

	_ = s.audio.Close()
	s.logger.Debug("encoder stopping",
		logging.SessionID(s.spec.SessionID),
		logging.Int("frames", committed),
	)
}

// Abort kills the encoder and discards its output. Nothing further is
// emitted.
func (s *Sink) Abort() {
	s.mu.Lock()
	if s.aborted || s.finished {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	if !s.stopping {
		s.stopping = true
		close(s.frames)
	}
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.audio.abort()
	s.logger.Info("encoder aborted",
		logging.String(logging.FieldEventType, "encoder_aborted"),
		logging.SessionID(s.spec.SessionID),
	)
}

// Done is closed once the process has exited and its goroutines returned.
func (s *Sink) Done() <-chan struct{} { return s.done }

func (s *Sink) writeVideo() error {
	defer s.stdin.Close()
	broken := false
	for {
		select {
		case buf, ok := <-s.frames:
			if !ok {
				return nil
			}
			if !broken {
				if _, err := s.stdin.Write(buf.Pix); err != nil {
					broken = true
					s.logger.Debug("encoder stdin closed", logging.Error(err))
				}
			}
			s.release(buf)
		case <-s.collected:
			return nil
		}
	}
}

func (s *Sink) collect(r io.Reader) error {
	defer func() {
		close(s.collected)
		_ = s.audio.Close()
	}()
	buf := make([]byte, readBlockBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pending = append(s.pending, buf[:n]...)
			s.output = append(s.output, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read encoder output: %w", err)
		}
	}
}

func (s *Sink) flushLoop() error {
	ticker := s.clock.NewTicker(s.spec.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.collected:
			return nil
		case <-ticker.C():
			s.emit(false)
		}
	}
}

func (s *Sink) emit(final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		s.pending = nil
		return
	}
	if len(s.pending) == 0 && !final {
		return
	}
	chunk := Chunk{Seq: s.seq, Data: s.pending, Final: final}
	s.pending = nil
	s.seq++
	select {
	case s.chunks <- chunk:
	default:
		s.lostChunks++
	}
}

func (s *Sink) supervise() {
	defer close(s.done)
	groupErr := s.group.Wait()
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	aborted := s.aborted
	stopping := s.stopping
	s.finished = true
	s.mu.Unlock()

	if aborted {
		close(s.chunks)
		close(s.finalized)
		return
	}
	s.emit(true)
	close(s.chunks)

	result := s.result(stopping, errors.Join(waitErr, groupErr))
	if result.Err != nil {
		logging.ErrorWithContext(s.logger, "encoder failed", "encoder_failed",
			append(logging.Failure(result.Err), logging.SessionID(s.spec.SessionID))...,
		)
	} else {
		s.logger.Info("encoder finalized",
			logging.String(logging.FieldEventType, "encoder_finalized"),
			logging.SessionID(s.spec.SessionID),
			logging.String("filename", result.Artifact.Filename),
			logging.Int("bytes", result.Artifact.Size()),
			logging.Duration("duration", result.Artifact.Duration),
			logging.Int("dropped_frames", s.Dropped()),
		)
	}
	if lost := s.LostChunks(); lost > 0 {
		logging.WarnWithContext(s.logger, "encoder chunks not consumed", "encoder_chunks_lost",
			logging.SessionID(s.spec.SessionID),
			logging.Int("lost_chunks", lost),
			logging.String(logging.FieldImpact, "chunk stream is incomplete; the finalized artifact is unaffected"),
		)
	}
	s.finalized <- result
	close(s.finalized)
}

func (s *Sink) result(stopping bool, err error) Result {
	if err != nil {
		return Result{Err: services.Wrap(services.ErrEncode, "encoding", "ffmpeg", s.stderr.LastLine(), err)}
	}
	if !stopping {
		return Result{Err: services.Wrap(services.ErrEncode, "encoding", "ffmpeg", "encoder exited before stop", nil)}
	}
	s.mu.Lock()
	data := s.output
	committed := s.committed
	s.output = nil
	s.mu.Unlock()
	if len(data) == 0 {
		return Result{Err: services.Wrap(services.ErrEncode, "encoding", "finalize", "encoder produced no output", nil)}
	}
	return Result{Artifact: Artifact{
		Data:      data,
		Profile:   s.spec.Profile.Name,
		MIMEType:  s.spec.Profile.MIMEType,
		Filename:  ArtifactFilename(s.createdAt, s.spec.Profile.Extension),
		Duration:  time.Duration(committed) * time.Second / time.Duration(s.spec.FPS),
		SessionID: s.spec.SessionID,
		CreatedAt: s.createdAt,
	}}
}
