package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/release"
)

type releaseServer struct {
	*httptest.Server
	files map[string]string
	hits  atomic.Int32
}

func newReleaseServer(t *testing.T, files map[string]string) *releaseServer {
	t.Helper()

	rs := &releaseServer{files: files}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		body, ok := rs.files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func hostOS() platform.OS {
	if filepath.Separator == '\\' {
		return platform.Win32
	}
	return platform.Linux
}

func newTestFetcher(t *testing.T, baseURL string) (*ReleaseFetcher, *locator.Locator, locator.CacheEntry) {
	t.Helper()

	profile := platform.Profile{OS: hostOS(), Locale: platform.English, DocumentsRoot: t.TempDir()}
	loc := locator.New(path.New(profile), locator.WithPublicKeyURL(baseURL+"/main/selfcustody.pem"))
	r := release.New("v22.08.2", release.WithRemoteBaseURL(baseURL))

	entry, err := loc.Locate(r)
	require.NoError(t, err)
	require.False(t, entry.Exists)

	return NewFetcher(loc), loc, entry
}

func releaseFiles() map[string]string {
	return map[string]string{
		"/v22.08.2/krux-v22.08.2.zip":            "archive",
		"/v22.08.2/krux-v22.08.2.zip.sha256.txt": "abc  krux-v22.08.2.zip\n",
		"/v22.08.2/krux-v22.08.2.zip.sig":        "sig",
		"/main/selfcustody.pem":                  "pem",
	}
}

func TestReleaseFetcher_Fetch(t *testing.T) {
	t.Parallel()

	srv := newReleaseServer(t, releaseFiles())
	f, loc, entry := newTestFetcher(t, srv.URL)

	got, err := f.Fetch(context.Background(), entry)
	require.NoError(t, err)

	assert.True(t, got.Exists)
	assert.Equal(t, int64(len("archive")), got.SizeBytes)
	assert.Equal(t, entry.LocalPath, got.LocalPath)
	assert.Equal(t, entry.RemoteURL, got.RemoteURL)
	assert.Equal(t, int32(4), srv.hits.Load())

	for _, asset := range loc.Sidecars(entry).All() {
		assert.FileExists(t, asset.LocalPath)
	}
	assert.False(t, f.Guard().Busy(entry.Release.ID()))
}

func TestReleaseFetcher_FetchReplacesCachedArchive(t *testing.T) {
	t.Parallel()

	srv := newReleaseServer(t, releaseFiles())
	f, _, entry := newTestFetcher(t, srv.URL)

	require.NoError(t, os.MkdirAll(filepath.Dir(entry.LocalPath), 0755))
	require.NoError(t, os.WriteFile(entry.LocalPath, []byte("stale archive bytes"), 0644))

	got, err := f.Fetch(context.Background(), entry)
	require.NoError(t, err)

	content, err := os.ReadFile(got.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(content))
}

func TestReleaseFetcher_FetchMissingSidecar(t *testing.T) {
	t.Parallel()

	files := releaseFiles()
	delete(files, "/v22.08.2/krux-v22.08.2.zip.sig")
	srv := newReleaseServer(t, files)
	f, loc, entry := newTestFetcher(t, srv.URL)

	got, err := f.Fetch(context.Background(), entry)
	require.ErrorIs(t, err, kerrors.ErrDownloadFailed)
	assert.Equal(t, entry.LocalPath, got.LocalPath)
	assert.False(t, got.Exists)
	assert.False(t, f.Guard().Busy(entry.Release.ID()))

	assert.NoFileExists(t, entry.LocalPath)
	for _, asset := range loc.Sidecars(entry).All() {
		assert.NoFileExists(t, asset.LocalPath)
		assertNoPartFiles(t, filepath.Dir(asset.LocalPath))
	}
	assertNoPartFiles(t, filepath.Dir(entry.LocalPath))
}

func TestReleaseFetcher_FailedRefetchKeepsCache(t *testing.T) {
	t.Parallel()

	files := releaseFiles()
	delete(files, "/v22.08.2/krux-v22.08.2.zip.sig")
	srv := newReleaseServer(t, files)
	f, loc, entry := newTestFetcher(t, srv.URL)
	sidecars := loc.Sidecars(entry)

	cached := map[string]string{
		entry.LocalPath:              "cached archive",
		sidecars.Checksum.LocalPath:  "cached manifest",
		sidecars.Signature.LocalPath: "cached sig",
		sidecars.PublicKey.LocalPath: "cached pem",
	}
	for p, content := range cached {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	_, err := f.Fetch(context.Background(), entry)
	require.ErrorIs(t, err, kerrors.ErrDownloadFailed)

	for p, want := range cached {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, want, string(got), p)
		assertNoPartFiles(t, filepath.Dir(p))
	}
}

func TestReleaseFetcher_RejectsConcurrentFetch(t *testing.T) {
	t.Parallel()

	srv := newReleaseServer(t, releaseFiles())
	f, loc, entry := newTestFetcher(t, srv.URL)

	unlock, err := f.Guard().Acquire(entry.Release.ID(), loc.Paths().DownloadLockFile(entry.Release.Version))
	require.NoError(t, err)
	defer unlock()

	_, err = f.Fetch(context.Background(), entry)
	require.ErrorIs(t, err, kerrors.ErrConcurrentDownloadRejected)
	assert.Zero(t, srv.hits.Load())
}

func TestReleaseFetcher_FetchSidecars(t *testing.T) {
	t.Parallel()

	srv := newReleaseServer(t, releaseFiles())
	f, loc, entry := newTestFetcher(t, srv.URL)
	sidecars := loc.Sidecars(entry)

	require.NoError(t, os.MkdirAll(filepath.Dir(sidecars.PublicKey.LocalPath), 0755))
	require.NoError(t, os.WriteFile(sidecars.PublicKey.LocalPath, []byte("cached pem"), 0644))

	require.NoError(t, f.FetchSidecars(context.Background(), entry))
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.FileExists(t, sidecars.Checksum.LocalPath)
	assert.FileExists(t, sidecars.Signature.LocalPath)

	pem, err := os.ReadFile(sidecars.PublicKey.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "cached pem", string(pem))

	require.NoError(t, f.FetchSidecars(context.Background(), entry))
	assert.Equal(t, int32(2), srv.hits.Load())
}
