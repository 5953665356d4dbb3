package release

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

// ParseVersion parses a release tag such as v22.08.2.
// Leading zeros in the month field are accepted.
func ParseVersion(tag string) (*semver.Version, error) {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid release version %q: %w", tag, err)
	}
	return v, nil
}

// ValidateVersion checks that version is a release tag usable as a single
// path element and URL segment.
func ValidateVersion(version string) error {
	if version == "" || strings.Contains(version, "..") || strings.ContainsAny(version, `/\:`) {
		return kerrors.NewInvalidVersion(version, nil)
	}
	if _, err := ParseVersion(version); err != nil {
		return kerrors.NewInvalidVersion(version, err)
	}
	return nil
}

// SortVersions returns the parseable tags ordered newest first.
// Tags that are not versions are dropped.
func SortVersions(tags []string) []string {
	versions := make([]*semver.Version, 0, len(tags))
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			slog.Debug("skipping non-semver tag", "tag", tag)
			continue
		}
		versions = append(versions, v)
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.Original()
	}
	return out
}

// FilterVersions keeps tags satisfying constraint, preserving order.
// An empty constraint keeps every parseable tag.
func FilterVersions(tags []string, constraint string) ([]string, error) {
	var c *semver.Constraints
	if constraint != "" {
		var err error
		c, err = semver.NewConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
	}

	var out []string
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if c == nil || c.Check(v) {
			out = append(out, tag)
		}
	}
	return out, nil
}
