package assets

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"reelbooth/internal/config"
	"reelbooth/internal/logging"
	"reelbooth/internal/media"
	"reelbooth/internal/testsupport"
)

type fakeDecoder struct {
	calls int
	data  []byte
}

func (d *fakeDecoder) Decode(_ context.Context, _ string, format media.AudioFormat) (media.PCM, error) {
	d.calls++
	return media.PCM{Format: format, Data: d.data}, nil
}

func writeMP3(t *testing.T, path string) {
	t.Helper()
	data := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mp3: %v", err)
	}
}

func TestLoadImageCachesDecodedRGBA(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	testsupport.WritePNG(t, path, 4, 8, color.NRGBA{R: 255, A: 255})

	cache := NewCache(logging.NewNop(), nil)
	img, err := cache.LoadImage("frame.png", path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	again, err := cache.LoadImage("frame.png", path)
	if err != nil {
		t.Fatalf("expected cached image after file removal: %v", err)
	}
	if again != img {
		t.Fatal("expected same cached image")
	}
}

func TestLoadImageRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, []byte("definitely text"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewCache(logging.NewNop(), nil).LoadImage("frame.png", path)
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestLoadClipDecodesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.mp3")
	writeMP3(t, path)
	dec := &fakeDecoder{data: make([]byte, 400)}
	cache := NewCache(logging.NewNop(), dec)
	format := media.AudioFormat{SampleRate: 100, Channels: 2}

	for i := 0; i < 2; i++ {
		clip, err := cache.LoadClip(context.Background(), "bg.mp3", path, format)
		if err != nil {
			t.Fatalf("LoadClip: %v", err)
		}
		if clip.Frames() != 100 {
			t.Fatalf("unexpected frames %d", clip.Frames())
		}
	}
	if dec.calls != 1 {
		t.Fatalf("expected one decode, got %d", dec.calls)
	}
}

func TestLoadClipRejectsNonAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.mp3")
	if err := os.WriteFile(path, []byte("plain text, not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewCache(logging.NewNop(), &fakeDecoder{}).LoadClip(context.Background(), "bg", path, media.DefaultAudioFormat)
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestFFmpegDecoderTrimsPartialFrames(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nhead -c 10 /dev/zero\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	clip, err := FFmpegDecoder{Binary: stub}.Decode(context.Background(), "in.mp3", media.AudioFormat{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(clip.Data) != 8 {
		t.Fatalf("expected 8 bytes after trimming, got %d", len(clip.Data))
	}
}

func TestPreloadLoadsConfiguredAssets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, cfg.ResolveAsset("closeup-frame.png"), 8, 8, color.White)
	testsupport.WritePNG(t, cfg.ResolveAsset("logo.png"), 4, 2, color.Black)
	writeMP3(t, cfg.ResolveAsset("bg_music.mp3"))
	writeMP3(t, cfg.ResolveAsset("countdown.mp3"))

	cache := NewCache(logging.NewNop(), &fakeDecoder{data: make([]byte, 16)})
	if err := Preload(context.Background(), cfg, cache); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	images, clips := cache.Stats()
	if images != 2 || clips != 2 {
		t.Fatalf("expected 2 images and 2 clips, got %d/%d", images, clips)
	}
}

func TestPreloadMissingImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Overlays = config.Overlays{Live: []config.Overlay{{Image: "missing.png"}}}
	if err := Preload(context.Background(), cfg, NewCache(logging.NewNop(), nil)); err == nil {
		t.Fatal("expected error for missing overlay image")
	}
}
