package workflow

import (
	"strings"

	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/release"
)

// DetailsTitle is the heading of the provenance overlay.
const DetailsTitle = "Resource details"

// Details is the provenance of one cached archive.
type Details struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Remote      string `json:"remote"`
	Local       string `json:"local"`
	Description string `json:"description"`
}

// NewDetails builds Details from entry. Remote and Local are never
// recomputed apart from the entry.
func NewDetails(entry locator.CacheEntry) Details {
	return Details{
		Title:       DetailsTitle,
		Subtitle:    entry.Release.ID(),
		Remote:      entry.RemoteURL,
		Local:       entry.LocalPath,
		Description: release.Description,
	}
}

// Fields returns the three labelled blocks shown to the user, in order.
func (d Details) Fields() []string {
	return []string{
		"Remote:\n" + d.Remote,
		"Local:\n" + d.Local,
		"Description:\n" + d.Description,
	}
}

// String renders the fields separated by blank lines.
func (d Details) String() string {
	return strings.Join(d.Fields(), "\n\n")
}
