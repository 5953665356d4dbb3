// Package locator computes where a release archive lives locally and remotely
// and checks whether it is already cached.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/release"
)

// CacheEntry is the local view of one release archive.
// LocalPath and RemoteURL are computed together and never recomputed apart.
type CacheEntry struct {
	Release      release.Release `json:"release"`
	LocalPath    string          `json:"localPath"`
	RemoteURL    string          `json:"remoteUrl"`
	Exists       bool            `json:"exists"`
	SizeBytes    int64           `json:"sizeBytes,omitempty"`
	ModTime      time.Time       `json:"modTime,omitzero"`
	LastVerified time.Time       `json:"lastVerified,omitzero"`
}

// Asset is a sidecar file published next to the archive.
type Asset struct {
	Name      string `json:"name"`
	LocalPath string `json:"localPath"`
	RemoteURL string `json:"remoteUrl"`
}

// Sidecars are the files needed to verify an archive.
type Sidecars struct {
	Checksum  Asset `json:"checksum"`
	Signature Asset `json:"signature"`
	PublicKey Asset `json:"publicKey"`
}

// Locator resolves CacheEntries for one platform profile.
type Locator struct {
	paths  *path.Paths
	stat   func(name string) (os.FileInfo, error)
	keyURL string
}

// Option configures a Locator.
type Option func(*Locator)

// WithStat replaces os.Stat for presence checks.
func WithStat(f func(string) (os.FileInfo, error)) Option {
	return func(l *Locator) {
		l.stat = f
	}
}

// WithPublicKeyURL overrides the signing key URL.
func WithPublicKeyURL(url string) Option {
	return func(l *Locator) {
		l.keyURL = url
	}
}

// New creates a Locator.
func New(paths *path.Paths, opts ...Option) *Locator {
	l := &Locator{
		paths:  paths,
		stat:   os.Stat,
		keyURL: release.PublicKeyURL(release.DefaultOwner, release.DefaultRepo),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate is a shorthand for New(path.New(profile)).Locate(r).
func Locate(profile platform.Profile, r release.Release) (CacheEntry, error) {
	return New(path.New(profile)).Locate(r)
}

// Paths returns the layout used by the locator.
func (l *Locator) Paths() *path.Paths {
	return l.paths
}

// Locate computes the entry of r and checks whether the archive is present.
// A missing archive is not an error. A permission failure is AccessDenied,
// and a version that is not a release tag is InvalidVersion.
func (l *Locator) Locate(r release.Release) (CacheEntry, error) {
	if err := release.ValidateVersion(r.Version); err != nil {
		return CacheEntry{Release: r}, err
	}
	entry := CacheEntry{
		Release:   r,
		LocalPath: l.paths.ArchivePath(r),
		RemoteURL: r.RemoteURL(),
	}
	return l.Refresh(entry)
}

// Refresh re-runs the presence check of entry without recomputing its paths.
func (l *Locator) Refresh(entry CacheEntry) (CacheEntry, error) {
	entry.Exists = false
	entry.SizeBytes = 0
	entry.ModTime = time.Time{}

	info, err := l.stat(entry.LocalPath)
	switch {
	case err == nil:
		if info.IsDir() {
			return entry, fmt.Errorf("%s is a directory", entry.LocalPath)
		}
		entry.Exists = true
		entry.SizeBytes = info.Size()
		entry.ModTime = info.ModTime()
		return entry, nil
	case errors.Is(err, fs.ErrNotExist):
		return entry, nil
	case errors.Is(err, fs.ErrPermission):
		return entry, kerrors.NewAccessDenied(entry.LocalPath, err)
	default:
		return entry, fmt.Errorf("failed to check %s: %w", entry.LocalPath, err)
	}
}

// Sidecars returns the checksum, signature and key assets of entry.
func (l *Locator) Sidecars(entry CacheEntry) Sidecars {
	r := entry.Release
	return Sidecars{
		Checksum: Asset{
			Name:      r.ChecksumName(),
			LocalPath: l.paths.AssetPath(r, r.ChecksumName()),
			RemoteURL: r.AssetURL(r.ChecksumName()),
		},
		Signature: Asset{
			Name:      r.SignatureName(),
			LocalPath: l.paths.AssetPath(r, r.SignatureName()),
			RemoteURL: r.AssetURL(r.SignatureName()),
		},
		PublicKey: Asset{
			Name:      release.PublicKeyName,
			LocalPath: l.paths.PublicKeyPath(),
			RemoteURL: l.keyURL,
		},
	}
}

// All returns the sidecars as a slice.
func (s Sidecars) All() []Asset {
	return []Asset{s.Checksum, s.Signature, s.PublicKey}
}
