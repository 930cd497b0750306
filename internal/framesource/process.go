package framesource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"reelbooth/internal/textutil"
)

// decoder is a running ffmpeg process producing raw frames on stdout.
type decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *textutil.Tail
	audio  *os.File

	waitOnce sync.Once
	waitErr  error
}

func startDecoder(binary string, args []string, withAudio bool) (*decoder, error) {
	cmd := exec.Command(binary, args...)
	d := &decoder{cmd: cmd, stderr: textutil.NewTail(0)}
	cmd.Stderr = d.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}
	d.stdout = stdout

	var audioWrite *os.File
	if withAudio {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("decoder audio pipe: %w", err)
		}
		d.audio = r
		audioWrite = w
		cmd.ExtraFiles = []*os.File{w}
	}

	if err := cmd.Start(); err != nil {
		if d.audio != nil {
			d.audio.Close()
			audioWrite.Close()
		}
		return nil, err
	}
	if audioWrite != nil {
		audioWrite.Close()
	}
	return d, nil
}

func (d *decoder) wait() error {
	d.waitOnce.Do(func() {
		d.waitErr = d.cmd.Wait()
	})
	return d.waitErr
}

// stop kills the process and reaps it. Exit errors caused by the kill are
// not reported.
func (d *decoder) stop() error {
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	done := make(chan struct{})
	go func() {
		_ = d.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return errors.New("decoder did not exit after kill")
	}
	if d.audio != nil {
		d.audio.Close()
	}
	return nil
}
