// Package printer renders the state ledger and release listings as tables.
package printer

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/selfcustody/krux-installer/internal/state"
	"github.com/selfcustody/krux-installer/internal/ui"
)

// rowFormatter converts a named entry into table columns.
type rowFormatter[T any] interface {
	// Headers returns the column header names.
	Headers(wide bool) []string
	// FormatRow converts a single entry into column values.
	FormatRow(name string, item T, wide bool) []string
}

// printTable is the table pipeline shared by every listing:
// filter → header → rows → flush. names must already be sorted.
func printTable[T any](w io.Writer, names []string, get func(string) T, filter string, wide bool, f rowFormatter[T], empty string) {
	if filter != "" {
		names = slices.DeleteFunc(slices.Clone(names), func(n string) bool {
			return !matches(n, filter)
		})
	}
	if len(names) == 0 {
		fmt.Fprintln(w, empty)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(f.Headers(wide), "\t"))
	for _, n := range names {
		fmt.Fprintln(tw, strings.Join(f.FormatRow(n, get(n), wide), "\t"))
	}
	tw.Flush()
}

// matches reports whether the release id belongs to version or equals filter.
func matches(id, filter string) bool {
	return id == filter || strings.HasPrefix(id, filter+"/")
}

// Ledger prints the releases recorded in st. A non-empty version keeps only
// the records of that version (or the exact <version>/<archive> id).
func Ledger(w io.Writer, st *state.State, version string, wide bool) {
	printTable(w, st.IDs(), st.Record, version, wide, ledgerFormatter{style: ui.NewStyle()}, "No releases downloaded")
}

// Releases prints published versions, newest first as given.
func Releases(w io.Writer, versions []string, cached *state.State) {
	f := releaseFormatter{style: ui.NewStyle(), cached: cached}
	printTable(w, versions, func(v string) string { return v }, "", false, f, "No releases published")
}

const (
	colRelease = "RELEASE"
	colVersion = "VERSION"
	none       = "-"
)

// ledgerFormatter formats ReleaseRecord entries.
type ledgerFormatter struct {
	style *ui.Style
}

func (ledgerFormatter) Headers(wide bool) []string {
	h := []string{colRelease, "DOWNLOADED", "VERIFIED", "PATH"}
	if wide {
		h = append(h, "SIZE", "SHA256", "BACKEND")
	}
	return h
}

func (f ledgerFormatter) FormatRow(id string, rec *state.ReleaseRecord, wide bool) []string {
	row := []string{id, formatTime(rec.DownloadedAt), f.verified(rec), rec.LocalPath}
	if wide {
		row = append(row, formatSize(rec.SizeBytes), orNone(rec.SHA256), orNone(rec.Backend))
	}
	return row
}

func (f ledgerFormatter) verified(rec *state.ReleaseRecord) string {
	if rec.LastVerified.IsZero() {
		return none
	}
	mark := f.style.FailMark
	if rec.Verified {
		mark = f.style.SuccessMark
	}
	return mark + " " + formatTime(rec.LastVerified)
}

// releaseFormatter formats published versions with their cache status.
type releaseFormatter struct {
	style  *ui.Style
	cached *state.State
}

func (releaseFormatter) Headers(_ bool) []string {
	return []string{colVersion, "CACHED"}
}

func (f releaseFormatter) FormatRow(version, _ string, _ bool) []string {
	if f.cached != nil {
		for _, id := range f.cached.IDs() {
			if matches(id, version) {
				return []string{version, f.style.CachedMark + " " + id}
			}
		}
	}
	return []string{version, none}
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return none
	}
	return t.Format(time.DateTime)
}

func formatSize(n int64) string {
	if n <= 0 {
		return none
	}
	return strconv.FormatInt(n, 10)
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}
