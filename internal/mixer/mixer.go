package mixer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
)

// Mode selects what the mixer routes to the encoder.
type Mode int

const (
	// Music routes only the background track.
	Music Mode = iota
	// Passthrough routes the source's embedded audio unchanged.
	Passthrough
)

func (m Mode) String() string {
	if m == Passthrough {
		return "passthrough"
	}
	return "music"
}

var (
	// ErrNotStarted is returned by Pump before Start.
	ErrNotStarted = errors.New("mixer not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("mixer already started")
)

// Options configures a Mixer.
type Options struct {
	Mode   Mode
	Format media.AudioFormat
	// Track is the background music for Music mode.
	Track *Track
	// Source is the embedded audio for Passthrough mode; nil yields silence.
	Source  *media.PCMQueue
	Monitor Output
	Logger  *slog.Logger
}

// Mixer pulls audio against capture elapsed time. It is driven from a single
// goroutine; Frames may be read from others.
type Mixer struct {
	logger  *slog.Logger
	mode    Mode
	format  media.AudioFormat
	track   *Track
	source  *media.PCMQueue
	monitor Output

	mu       sync.Mutex
	dst      io.WriteCloser
	written  int64
	underrun int64
	started  bool
	stopped  bool
	buf      []byte
}

// New returns a mixer. A nil Monitor discards monitor audio.
func New(opts Options) *Mixer {
	format := opts.Format
	if format.SampleRate <= 0 || format.Channels <= 0 {
		format = media.DefaultAudioFormat
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = Discard{}
	}
	return &Mixer{
		logger:  logging.NewComponentLogger(opts.Logger, "mixer"),
		mode:    opts.Mode,
		format:  format,
		track:   opts.Track,
		source:  opts.Source,
		monitor: monitor,
	}
}

// Mode returns the routing mode.
func (m *Mixer) Mode() Mode { return m.mode }

// Start begins routing to dst. In Music mode the background track is rewound
// and unmuted at this instant.
func (m *Mixer) Start(dst io.WriteCloser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.dst = dst
	if m.mode == Music && m.track != nil {
		m.track.Start()
	}
	m.logger.Debug("mixer started", logging.String("mode", m.mode.String()))
	return nil
}

// Pump writes the samples due between the last call and elapsed.
func (m *Mixer) Pump(elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	if m.stopped {
		return nil
	}
	return m.pumpLocked(elapsed)
}

// Stop writes the remaining samples up to elapsed, mutes the track and
// closes the encode destination. Later calls are no-ops.
func (m *Mixer) Stop(elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		m.stopTrack()
		return nil
	}
	err := m.pumpLocked(elapsed)
	m.stopped = true
	m.stopTrack()
	if m.dst != nil {
		if cerr := m.dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close audio destination: %w", cerr)
		}
	}
	m.logger.Debug("mixer stopped",
		logging.Int64("frames", m.written),
		logging.Duration("duration", m.format.Duration(m.written)),
		logging.Int64("underrun_frames", m.underrun),
	)
	return err
}

// Abort stops routing without writing the remainder and without closing the
// destination, which the caller discards.
func (m *Mixer) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.stopTrack()
}

// Frames returns the number of sample frames written to the encoder.
func (m *Mixer) Frames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// Duration returns the audio written so far as wall time.
func (m *Mixer) Duration() time.Duration {
	return m.format.Duration(m.Frames())
}

// PlayCue sends clip to the monitor only.
func (m *Mixer) PlayCue(clip media.PCM) error {
	return PlayCue(m.monitor, clip)
}

// PlayCue sends clip to out. Cues never reach an encoder.
func PlayCue(out Output, clip media.PCM) error {
	if out == nil || len(clip.Data) == 0 {
		return nil
	}
	if _, err := out.Write(clip.Data); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

func (m *Mixer) stopTrack() {
	if m.mode == Music && m.track != nil {
		m.track.Stop()
	}
}

func (m *Mixer) pumpLocked(elapsed time.Duration) error {
	due := m.format.FramesAt(elapsed) - m.written
	if due <= 0 {
		return nil
	}
	size := int(due) * m.format.BytesPerFrame()
	if cap(m.buf) < size {
		m.buf = make([]byte, size)
	}
	block := m.buf[:size]
	m.fill(block)

	if m.dst != nil {
		if _, err := m.dst.Write(block); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	m.written += due
	if _, err := m.monitor.Write(block); err != nil {
		m.logger.Debug("monitor write failed", logging.Error(err))
	}
	return nil
}

func (m *Mixer) fill(block []byte) {
	switch m.mode {
	case Passthrough:
		n := 0
		if m.source != nil {
			bpf := m.format.BytesPerFrame()
			avail := m.source.Len()
			n = m.source.ReadAvailable(block[:min(len(block), avail-avail%bpf)])
		}
		if n < len(block) {
			clear(block[n:])
			m.underrun += int64((len(block) - n) / m.format.BytesPerFrame())
		}
	default:
		if m.track == nil {
			clear(block)
			return
		}
		m.track.Fill(block)
	}
}
