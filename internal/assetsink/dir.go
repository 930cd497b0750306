package assetsink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"reelbooth/internal/config"
	"reelbooth/internal/services"
	"reelbooth/internal/textutil"
)

// DirSink copies artifacts into a local directory.
type DirSink struct {
	dir string
}

// NewDirSink returns a sink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Name() string { return config.SinkDir }

// Upload writes data into the directory and returns its file:// URL. The
// declared mime type must agree with the content.
func (s *DirSink) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}
	name := textutil.SanitizeFileName(filepath.Base(filename))
	if name == "" || name == "." {
		return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: 400, Err: errors.New("invalid filename")}
	}
	if len(data) == 0 {
		return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: 400, Err: errors.New("empty artifact")}
	}
	if mimeType != "" {
		detected := mimetype.Detect(data)
		declared := strings.SplitN(mimeType, ";", 2)[0]
		if !detected.Is(declared) && !sameContainer(detected, declared) {
			return "", &services.UploadError{Op: "upload", Filename: filename, StatusCode: 415,
				Err: fmt.Errorf("content is %s, declared %s", detected.String(), declared)}
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", &services.UploadError{Op: "upload", Filename: filename, Err: err}
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

// RegisterMetadata derives a stable id from the stored file name.
func (s *DirSink) RegisterMetadata(ctx context.Context, videoURL string, _ time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &services.UploadError{Op: "register", Err: err}
	}
	parsed, err := url.Parse(videoURL)
	if err != nil || parsed.Path == "" {
		return "", &services.UploadError{Op: "register", StatusCode: 400, Err: fmt.Errorf("invalid url %q", videoURL)}
	}
	base := filepath.Base(parsed.Path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// sameContainer accepts audio/video variants of one container, since
// sniffing a short clip cannot tell them apart.
func sameContainer(detected *mimetype.MIME, declared string) bool {
	_, dSub, _ := strings.Cut(detected.String(), "/")
	_, sub, _ := strings.Cut(declared, "/")
	return dSub != "" && dSub == sub
}
