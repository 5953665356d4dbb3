// Package path computes the on-disk layout of the krux-installer cache.
//
//	<documentsRoot>/krux-installer/
//	├── state.json, state.lock
//	├── main/selfcustody.pem
//	└── <version>/
//	    ├── .download.lock
//	    ├── krux-<version>.zip (+ .sha256.txt, .sig)
//	    └── krux-<version>/maixpy_<device>/kboot.kfpkg
package path

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/release"
)

// ResourcesDirName is the folder created under the documents root.
const ResourcesDirName = "krux-installer"

const (
	stateFileName        = "state.json"
	stateLockFileName    = "state.lock"
	downloadLockFileName = ".download.lock"
	devicePrefix         = "maixpy_"
)

// Paths holds the cache layout for one platform profile.
// Every path is joined with the separator of the profile OS.
type Paths struct {
	os           platform.OS
	resourcesDir string
}

// Option is a functional option for configuring Paths.
type Option func(*Paths)

// WithResourcesDir replaces <documentsRoot>/krux-installer.
func WithResourcesDir(dir string) Option {
	return func(p *Paths) {
		p.resourcesDir = dir
	}
}

// New creates Paths for profile.
func New(profile platform.Profile, opts ...Option) *Paths {
	p := &Paths{
		os:           profile.OS,
		resourcesDir: profile.Join(profile.DocumentsRoot, ResourcesDirName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Paths) join(elem ...string) string {
	return platform.Join(p.os, elem...)
}

// ResourcesDir returns <documentsRoot>/krux-installer.
func (p *Paths) ResourcesDir() string {
	return p.resourcesDir
}

// ReleaseDir returns <resources>/<version>.
func (p *Paths) ReleaseDir(version string) string {
	return p.join(p.resourcesDir, version)
}

// ArchivePath returns <resources>/<version>/<archive>.
func (p *Paths) ArchivePath(r release.Release) string {
	return p.AssetPath(r, r.ArchiveName)
}

// AssetPath returns the local path of a file published with r.
func (p *Paths) AssetPath(r release.Release, name string) string {
	return p.join(p.ReleaseDir(r.Version), name)
}

// DownloadLockFile returns <resources>/<version>/.download.lock.
func (p *Paths) DownloadLockFile(version string) string {
	return p.join(p.ReleaseDir(version), downloadLockFileName)
}

// PublicKeyPath returns <resources>/main/selfcustody.pem.
func (p *Paths) PublicKeyPath() string {
	return p.join(p.resourcesDir, release.PublicKeyBranch, release.PublicKeyName)
}

// ExtractDir returns <resources>/<version>/<archive-stem>/maixpy_<device>.
func (p *Paths) ExtractDir(r release.Release, device string) string {
	return p.join(p.ReleaseDir(r.Version), r.Stem(), devicePrefix+device)
}

// StateFile returns <resources>/state.json.
func (p *Paths) StateFile() string {
	return p.join(p.resourcesDir, stateFileName)
}

// StateLockFile returns <resources>/state.lock.
func (p *Paths) StateLockFile() string {
	return p.join(p.resourcesDir, stateLockFileName)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Expand expands ~ to the home directory.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	return path, nil
}
