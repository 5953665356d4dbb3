// Package state keeps a ledger of downloaded and verified releases in
// <resources>/state.json. The ledger is informational: a recorded
// verification is never used in place of verifying the archive again.
package state

import (
	"maps"
	"slices"
	"time"

	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/verify"
)

// Version is the current state file format version.
const Version = "1"

// State is the content of state.json.
type State struct {
	Version  string                    `json:"version"`
	Releases map[string]*ReleaseRecord `json:"releases,omitempty"`
}

// ReleaseRecord is what is known about one cached archive.
type ReleaseRecord struct {
	Version      string    `json:"version"`
	ArchiveName  string    `json:"archiveName"`
	LocalPath    string    `json:"localPath"`
	RemoteURL    string    `json:"remoteUrl,omitempty"`
	SizeBytes    int64     `json:"sizeBytes,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt,omitzero"`
	LastVerified time.Time `json:"lastVerified,omitzero"`
	Verified     bool      `json:"verified"`
	Backend      string    `json:"backend,omitempty"`
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		Version:  Version,
		Releases: make(map[string]*ReleaseRecord),
	}
}

// Record returns the record of the release id (<version>/<archive>), or nil.
func (s *State) Record(id string) *ReleaseRecord {
	if s.Releases == nil {
		return nil
	}
	return s.Releases[id]
}

// IDs returns the recorded release ids in sorted order.
func (s *State) IDs() []string {
	return slices.Sorted(maps.Keys(s.Releases))
}

func (s *State) record(entry locator.CacheEntry) *ReleaseRecord {
	if s.Releases == nil {
		s.Releases = make(map[string]*ReleaseRecord)
	}
	id := entry.Release.ID()
	rec, ok := s.Releases[id]
	if !ok {
		rec = &ReleaseRecord{}
		s.Releases[id] = rec
	}
	rec.Version = entry.Release.Version
	rec.ArchiveName = entry.Release.ArchiveName
	rec.LocalPath = entry.LocalPath
	rec.RemoteURL = entry.RemoteURL
	return rec
}

// RecordDownload notes that entry was freshly downloaded at. The previous
// verification no longer applies to the new bytes.
func (s *State) RecordDownload(entry locator.CacheEntry, at time.Time) {
	rec := s.record(entry)
	rec.SizeBytes = entry.SizeBytes
	rec.DownloadedAt = at
	rec.SHA256 = ""
	rec.Verified = false
	rec.LastVerified = time.Time{}
	rec.Backend = ""
}

// RecordVerification stores the outcome of verifying entry.
func (s *State) RecordVerification(entry locator.CacheEntry, result verify.Result, at time.Time) {
	rec := s.record(entry)
	rec.SizeBytes = result.Size
	rec.SHA256 = result.Computed
	rec.Verified = result.Verified
	rec.LastVerified = at
	rec.Backend = result.Backend
}

// Forget removes the record of id.
func (s *State) Forget(id string) {
	delete(s.Releases, id)
}
