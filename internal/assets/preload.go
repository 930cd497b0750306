package assets

import (
	"context"
	"fmt"
	"strings"

	"reelbooth/internal/config"
	"reelbooth/internal/logging"
	"reelbooth/internal/media"
)

// Preload decodes every overlay image and audio clip referenced by cfg.
// Keys are the references as written in the configuration.
func Preload(ctx context.Context, cfg *config.Config, cache *Cache) error {
	seen := map[string]struct{}{}
	for _, group := range [][]config.Overlay{cfg.Overlays.Live, cfg.Overlays.Edit} {
		for _, o := range group {
			ref := strings.TrimSpace(o.Image)
			if ref == "" {
				continue
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			if _, err := cache.LoadImage(ref, cfg.ResolveAsset(ref)); err != nil {
				return fmt.Errorf("overlay %s: %w", ref, err)
			}
		}
	}

	format := media.AudioFormat{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}
	for _, ref := range []string{cfg.Audio.MusicPath, cfg.Audio.CountdownCue} {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, err := cache.LoadClip(ctx, ref, cfg.ResolveAsset(ref), format); err != nil {
			return fmt.Errorf("audio %s: %w", ref, err)
		}
	}
	images, clips := cache.Stats()
	cache.logger.Info("assets preloaded",
		logging.Int("images", images),
		logging.Int("clips", clips),
		logging.String(logging.FieldEventType, "assets_preloaded"),
	)
	return nil
}
