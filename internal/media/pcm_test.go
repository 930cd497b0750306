package media

import (
	"testing"
	"time"
)

func TestFramesAtRoundsDown(t *testing.T) {
	f := AudioFormat{SampleRate: 48000, Channels: 2}
	cases := []struct {
		elapsed time.Duration
		want    int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Second, 48000},
		{2 * time.Second, 96000},
		{33 * time.Millisecond, 1584},
		{time.Microsecond, 0},
	}
	for _, tc := range cases {
		if got := f.FramesAt(tc.elapsed); got != tc.want {
			t.Fatalf("FramesAt(%s) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestPCMDuration(t *testing.T) {
	p := PCM{Format: AudioFormat{SampleRate: 8000, Channels: 1}, Data: make([]byte, 16000)}
	if p.Frames() != 8000 {
		t.Fatalf("expected 8000 frames, got %d", p.Frames())
	}
	if p.Duration() != time.Second {
		t.Fatalf("expected 1s, got %s", p.Duration())
	}
}

func TestFrameClone(t *testing.T) {
	f := Frame{Seq: 3}
	if f.Clone().Image != nil {
		t.Fatal("expected nil image clone")
	}
}

func TestPCMQueueReadAvailable(t *testing.T) {
	var q PCMQueue
	if _, err := q.Write([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := make([]byte, 3)
	if n := q.ReadAvailable(p); n != 3 || p[0] != 1 || p[2] != 3 {
		t.Fatalf("unexpected read %d %v", n, p)
	}
	big := make([]byte, 10)
	if n := q.ReadAvailable(big); n != 2 || big[0] != 4 {
		t.Fatalf("unexpected tail read %d %v", n, big[:n])
	}
	if n := q.ReadAvailable(big); n != 0 {
		t.Fatalf("expected empty queue, read %d", n)
	}
	q.Close()
	_, _ = q.Write([]byte{9})
	if q.Len() != 0 || q.Total() != 5 {
		t.Fatalf("expected writes after close to be dropped, len=%d total=%d", q.Len(), q.Total())
	}
}
