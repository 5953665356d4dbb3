// Package download fetches release files over HTTP into the local cache.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/selfcustody/krux-installer/internal/checksum"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

// Downloader downloads one URL next to one local path.
type Downloader interface {
	// Download writes url to a part file in the directory of destPath and
	// returns the part path. destPath itself is left untouched until the
	// part is passed to Commit.
	Download(ctx context.Context, url, destPath string) (string, error)
}

// Commit renames a part file returned by Download onto destPath.
func Commit(partPath, destPath string) error {
	if err := os.Rename(partPath, destPath); err != nil {
		return kerrors.NewAccessDenied(destPath, err)
	}
	slog.Debug("download committed", "path", destPath)
	return nil
}

// Discard removes part files that will not be committed.
func Discard(partPaths ...string) {
	for _, p := range partPaths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove part file", "path", p, "error", err)
		}
	}
}

type httpDownloader struct {
	client *http.Client
}

// NewDownloader creates a Downloader with the default HTTP client.
func NewDownloader() Downloader {
	return NewDownloaderWithClient(nil)
}

// NewDownloaderWithClient creates a Downloader with the given HTTP client.
func NewDownloaderWithClient(client *http.Client) Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpDownloader{client: client}
}

// Download fetches url into a temporary part file next to destPath. The part
// file is removed on any failure, including cancellation. Progress is
// reported through callbacks stored in ctx.
func (d *httpDownloader) Download(ctx context.Context, url, destPath string) (string, error) {
	slog.Debug("downloading file", "url", url, "dest", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", kerrors.NewDownloadFailed(url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", kerrors.NewDownloadFailed(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", kerrors.NewHTTPError(url, resp.StatusCode)
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", kerrors.NewAccessDenied(dir, err)
	}

	// Several releases share the signing key, so part names must not collide.
	f, err := os.CreateTemp(dir, filepath.Base(destPath)+".*.part")
	if err != nil {
		return "", kerrors.NewAccessDenied(dir, err)
	}
	partPath := f.Name()
	complete := false
	defer func() {
		if !complete {
			f.Close()
			os.Remove(partPath)
		}
	}()

	name := filepath.Base(destPath)
	total := resp.ContentLength
	if start := CallbackFromContext[StartCallback](ctx); start != nil {
		start(name, total)
	}

	counter := &progressReader{
		name:     name,
		reader:   resp.Body,
		total:    total,
		callback: CallbackFromContext[ProgressCallback](ctx),
	}

	if _, err := checksum.CopyWithContext(ctx, f, counter); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", kerrors.NewDownloadFailed(url, err)
	}

	if err := f.Close(); err != nil {
		return "", kerrors.NewDownloadFailed(url, fmt.Errorf("failed to close part file: %w", err))
	}

	complete = true

	if done := CallbackFromContext[CompleteCallback](ctx); done != nil {
		done(name, counter.downloaded)
	}

	slog.Debug("download completed", "part", partPath)
	return partPath, nil
}

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	name       string
	reader     io.Reader
	total      int64
	downloaded int64
	callback   ProgressCallback
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.downloaded += int64(n)
	if n > 0 && r.callback != nil {
		r.callback(r.name, r.downloaded, r.total)
	}
	return n, err
}
