package download

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/selfcustody/krux-installer/internal/locator"
)

// ReleaseFetcher downloads a release archive together with the files
// needed to verify it.
type ReleaseFetcher struct {
	downloader Downloader
	locator    *locator.Locator
	guard      *Guard
}

// FetcherOption configures a ReleaseFetcher.
type FetcherOption func(*ReleaseFetcher)

// WithDownloader replaces the HTTP downloader.
func WithDownloader(d Downloader) FetcherOption {
	return func(f *ReleaseFetcher) {
		f.downloader = d
	}
}

// WithGuard shares a Guard between fetchers.
func WithGuard(g *Guard) FetcherOption {
	return func(f *ReleaseFetcher) {
		f.guard = g
	}
}

// NewFetcher creates a ReleaseFetcher for the layout of loc.
func NewFetcher(loc *locator.Locator, opts ...FetcherOption) *ReleaseFetcher {
	f := &ReleaseFetcher{
		downloader: NewDownloader(),
		locator:    loc,
		guard:      NewGuard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Guard returns the guard used to serialize downloads.
func (f *ReleaseFetcher) Guard() *Guard {
	return f.guard
}

// Fetch downloads the archive of entry and its sidecars, replacing any
// cached copies, and returns entry with a refreshed presence check.
// The per-release guard is held for the whole operation.
func (f *ReleaseFetcher) Fetch(ctx context.Context, entry locator.CacheEntry) (locator.CacheEntry, error) {
	release, err := f.acquire(entry)
	if err != nil {
		return entry, err
	}
	defer release()

	sidecars := f.locator.Sidecars(entry)
	assets := append([]locator.Asset{{
		Name:      entry.Release.ArchiveName,
		LocalPath: entry.LocalPath,
		RemoteURL: entry.RemoteURL,
	}}, sidecars.All()...)

	slog.Info("fetching release", "release", entry.Release.ID(), "files", len(assets))
	if err := f.downloadAll(ctx, assets); err != nil {
		return entry, err
	}

	return f.locator.Refresh(entry)
}

// FetchSidecars downloads only the sidecars of entry that are not cached yet.
func (f *ReleaseFetcher) FetchSidecars(ctx context.Context, entry locator.CacheEntry) error {
	var missing []locator.Asset
	for _, asset := range f.locator.Sidecars(entry).All() {
		_, err := os.Stat(asset.LocalPath)
		switch {
		case err == nil:
			continue
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, asset)
		default:
			return err
		}
	}
	if len(missing) == 0 {
		return nil
	}

	release, err := f.acquire(entry)
	if err != nil {
		return err
	}
	defer release()

	slog.Debug("fetching missing sidecars", "release", entry.Release.ID(), "files", len(missing))
	return f.downloadAll(ctx, missing)
}

func (f *ReleaseFetcher) acquire(entry locator.CacheEntry) (func(), error) {
	lockFile := f.locator.Paths().DownloadLockFile(entry.Release.Version)
	return f.guard.Acquire(entry.Release.ID(), lockFile)
}

// downloadAll stages every asset and commits them only once all of them
// were received. On failure no cached file is replaced.
func (f *ReleaseFetcher) downloadAll(ctx context.Context, assets []locator.Asset) error {
	parts := make([]string, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		g.Go(func() error {
			part, err := f.downloader.Download(gctx, asset.RemoteURL, asset.LocalPath)
			parts[i] = part
			return err
		})
	}
	if err := g.Wait(); err != nil {
		Discard(parts...)
		return err
	}

	// The archive leads assets and is committed last, so it never appears
	// without its sidecars.
	for i := len(assets) - 1; i >= 0; i-- {
		if err := Commit(parts[i], assets[i].LocalPath); err != nil {
			Discard(parts[:i+1]...)
			return err
		}
	}
	return nil
}
