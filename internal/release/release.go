// Package release describes a Krux firmware release and the assets published
// alongside it.
package release

import (
	"fmt"
	"strings"
)

const (
	DefaultOwner = "selfcustody"
	DefaultRepo  = "krux"

	// PublicKeyName is the PEM file holding the release signing key.
	PublicKeyName = "selfcustody.pem"

	// PublicKeyBranch is the branch the signing key is read from.
	PublicKeyBranch = "main"

	checksumSuffix  = ".sha256.txt"
	signatureSuffix = ".sig"
	archiveExt      = ".zip"
)

// Description is the human-readable purpose shown when inspecting an archive.
const Description = "This file is the official release with all necessary contents to flash or update krux firmware on your Kendryte K210 device, including the firmware signature that prove the firmware's authenticity"

// Devices lists the K210 boards that have a firmware folder in the release archive.
var Devices = []string{
	"m5stickv",
	"amigo",
	"amigo_tft",
	"amigo_ips",
	"dock",
	"bit",
	"yahboom",
	"cube",
	"wonder_mv",
}

// IsDevice reports whether name is a known device.
func IsDevice(name string) bool {
	for _, d := range Devices {
		if d == name {
			return true
		}
	}
	return false
}

// Release identifies one archive of one firmware version.
// It is a value type and never changes after New.
type Release struct {
	Version       string `json:"version"`
	ArchiveName   string `json:"archiveName"`
	RemoteBaseURL string `json:"remoteBaseUrl"`
}

// Option configures a Release.
type Option func(*Release)

// WithRemoteBaseURL overrides the release download base URL.
func WithRemoteBaseURL(url string) Option {
	return func(r *Release) {
		r.RemoteBaseURL = strings.TrimRight(url, "/")
	}
}

// New creates a Release for version.
func New(version string, opts ...Option) Release {
	r := Release{
		Version:       version,
		ArchiveName:   ArchiveName(version),
		RemoteBaseURL: DownloadBaseURL(DefaultOwner, DefaultRepo),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// ArchiveName returns the conventional archive name for version.
func ArchiveName(version string) string {
	return "krux-" + version + archiveExt
}

// DownloadBaseURL returns the GitHub release download prefix of owner/repo.
func DownloadBaseURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download", owner, repo)
}

// PublicKeyURL returns the raw URL of the signing key of owner/repo.
func PublicKeyURL(owner, repo string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, repo, PublicKeyBranch, PublicKeyName)
}

// ID returns <version>/<archive>, the identity used for locking and display.
func (r Release) ID() string {
	return r.Version + "/" + r.ArchiveName
}

// RemoteURL returns <base>/<version>/<archive>.
func (r Release) RemoteURL() string {
	return r.AssetURL(r.ArchiveName)
}

// AssetURL returns the download URL of a file published with this release.
func (r Release) AssetURL(name string) string {
	return r.RemoteBaseURL + "/" + r.Version + "/" + name
}

// ChecksumName returns the name of the sha256 manifest.
func (r Release) ChecksumName() string {
	return r.ArchiveName + checksumSuffix
}

// SignatureName returns the name of the detached signature.
func (r Release) SignatureName() string {
	return r.ArchiveName + signatureSuffix
}

// Stem returns the archive name without its .zip extension.
func (r Release) Stem() string {
	return strings.TrimSuffix(r.ArchiveName, archiveExt)
}

// String implements fmt.Stringer.
func (r Release) String() string {
	return r.ID()
}
