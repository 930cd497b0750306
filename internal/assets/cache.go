package assets

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"reelbooth/internal/logging"
	"reelbooth/internal/media"
)

// Cache holds decoded overlay images and audio clips for the process
// lifetime. Entries are keyed by the reference used to load them.
type Cache struct {
	logger  *slog.Logger
	decoder AudioDecoder

	mu     sync.RWMutex
	images map[string]image.Image
	clips  map[string]media.PCM
}

// NewCache returns an empty cache. decoder converts audio files to PCM.
func NewCache(logger *slog.Logger, decoder AudioDecoder) *Cache {
	return &Cache{
		logger:  logging.NewComponentLogger(logger, "assets"),
		decoder: decoder,
		images:  make(map[string]image.Image),
		clips:   make(map[string]media.PCM),
	}
}

// LoadImage decodes path once and stores it under key.
func (c *Cache) LoadImage(key, path string) (image.Image, error) {
	if img, ok := c.Image(key); ok {
		return img, nil
	}
	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
	c.logger.Debug("image cached",
		logging.String("key", key),
		logging.Int("width", img.Bounds().Dx()),
		logging.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}

// LoadClip decodes path to PCM once and stores it under key.
func (c *Cache) LoadClip(ctx context.Context, key, path string, format media.AudioFormat) (media.PCM, error) {
	if clip, ok := c.Clip(key); ok {
		return clip, nil
	}
	if c.decoder == nil {
		return media.PCM{}, fmt.Errorf("load clip %s: no audio decoder configured", key)
	}
	if err := sniffAudio(path); err != nil {
		return media.PCM{}, err
	}
	clip, err := c.decoder.Decode(ctx, path, format)
	if err != nil {
		return media.PCM{}, fmt.Errorf("decode clip %s: %w", key, err)
	}
	c.mu.Lock()
	c.clips[key] = clip
	c.mu.Unlock()
	c.logger.Debug("clip cached",
		logging.String("key", key),
		logging.Duration("duration", clip.Duration()),
	)
	return clip, nil
}

// PutImage stores an already decoded image.
func (c *Cache) PutImage(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[key] = img
}

// PutClip stores already decoded PCM.
func (c *Cache) PutClip(key string, clip media.PCM) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clips[key] = clip
}

func (c *Cache) Image(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *Cache) Clip(key string) (media.PCM, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clip, ok := c.clips[key]
	return clip, ok
}

// Stats reports how many entries are cached.
func (c *Cache) Stats() (images, clips int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images), len(c.clips)
}
