package assetsink

import (
	"context"
	"fmt"
	"time"

	"reelbooth/internal/config"
	"reelbooth/internal/services"
)

// Sink stores an artifact and records its metadata.
type Sink interface {
	// Upload stores data under filename and returns the public URL.
	Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error)
	// RegisterMetadata records an uploaded URL and returns the video id.
	RegisterMetadata(ctx context.Context, videoURL string, createdAt time.Time) (string, error)
	// Name identifies the sink in logs.
	Name() string
}

// New builds the sink selected by cfg.Upload.Sink.
func New(cfg *config.Config) (Sink, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "assetsink", "new", "missing configuration", nil)
	}
	switch cfg.Upload.Sink {
	case config.SinkHTTP, "":
		return NewHTTPSink(cfg.Upload), nil
	case config.SinkDir:
		return NewDirSink(cfg.Upload.Dir), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "assetsink", "new",
			fmt.Sprintf("unsupported sink %q", cfg.Upload.Sink), nil)
	}
}
