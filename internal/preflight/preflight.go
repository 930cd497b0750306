package preflight

import (
	"context"

	"reelbooth/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
	}

	if cfg.Paths.AssetDir != "" {
		results = append(results, CheckReadableDirectory("Asset directory", cfg.Paths.AssetDir))
	}

	results = append(results, CheckCamera(cfg.Capture.Device))

	if cfg.Upload.Enabled {
		switch cfg.Upload.Sink {
		case config.SinkDir:
			results = append(results, CheckDirectoryAccess("Upload directory", cfg.Upload.Dir))
		default:
			results = append(results, CheckUploadEndpoint(ctx, cfg.Upload.BaseURL, cfg.Upload.Token))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
