package mixer

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
)

// Output receives monitor audio. Writes must not block the caller for longer
// than it takes to queue the data.
type Output interface {
	io.WriteCloser
}

// Discard is an Output for headless kiosks.
type Discard struct{}

func (Discard) Write(p []byte) (int, error) { return len(p), nil }
func (Discard) Close() error                { return nil }

const (
	monitorQueueDepth = 64
	monitorExitGrace  = 2 * time.Second
)

// CommandOutput plays raw PCM through a player process reading stdin.
// Blocks are queued and dropped when the player falls behind.
type CommandOutput struct {
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	queue  chan []byte
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewCommandOutput starts player for the given format. ffplay and aplay are
// recognized by base name; any other binary receives ffplay-style flags.
func NewCommandOutput(logger *slog.Logger, player string, format media.AudioFormat) (*CommandOutput, error) {
	cmd := exec.Command(player, playerArgs(player, format)...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("monitor stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start monitor %s: %w", player, err)
	}
	out := &CommandOutput{
		logger: logging.NewComponentLogger(logger, "monitor"),
		cmd:    cmd,
		stdin:  stdin,
		queue:  make(chan []byte, monitorQueueDepth),
		done:   make(chan struct{}),
	}
	go out.run()
	return out, nil
}

func playerArgs(player string, format media.AudioFormat) []string {
	rate := strconv.Itoa(format.SampleRate)
	channels := strconv.Itoa(format.Channels)
	if filepath.Base(player) == "aplay" {
		return []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", channels, "-"}
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit",
		"-f", "s16le", "-ar", rate, "-ch_layout", channelLayout(format.Channels),
		"-i", "pipe:0",
	}
}

func channelLayout(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

func (o *CommandOutput) run() {
	defer close(o.done)
	for block := range o.queue {
		if _, err := o.stdin.Write(block); err != nil {
			logging.WarnWithContext(o.logger, "monitor playback stopped", "monitor_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "local audio monitoring is silent until restart"),
			)
			for range o.queue {
			}
			return
		}
	}
}

// Write queues a copy of p.
func (o *CommandOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, io.ErrClosedPipe
	}
	block := append([]byte(nil), p...)
	select {
	case o.queue <- block:
	default:
		o.dropped++
	}
	return len(p), nil
}

// Dropped returns how many blocks were discarded because the player lagged.
func (o *CommandOutput) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Close drains queued audio and stops the player.
func (o *CommandOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	<-o.done
	_ = o.stdin.Close()
	exited := make(chan struct{})
	go func() {
		_ = o.cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(monitorExitGrace):
		_ = o.cmd.Process.Kill()
		<-exited
	}
	return nil
}
