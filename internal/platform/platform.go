// Package platform resolves the host operating system and locale into the
// documents root under which krux-installer keeps its release cache.
package platform

import (
	"os"
	"strings"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

// OS is a supported operating system, named as in the release assets.
type OS string

const (
	Linux  OS = "linux"
	Darwin OS = "darwin"
	Win32  OS = "win32"
)

// Locale is a supported locale family.
type Locale string

const (
	English    Locale = "en"
	Portuguese Locale = "pt"
)

// documentsFolders maps a locale prefix to the name of the user documents folder.
var documentsFolders = []struct {
	locale Locale
	folder string
}{
	{English, "Documents"},
	{Portuguese, "Documentos"},
}

// ciRoots are the fixed GitHub Actions runner directories per OS.
var ciRoots = map[OS]string{
	Linux:  "/home/runner",
	Darwin: "/Users/runner/Documents",
	Win32:  `C:\Users\runneradmin\Documents`,
}

// Profile is the resolved platform for a session.
type Profile struct {
	OS            OS     `json:"os"`
	Locale        Locale `json:"locale,omitempty"`
	DocumentsRoot string `json:"documentsRoot"`
	CI            bool   `json:"ci"`
}

// Separator returns the path separator of the profile OS.
func (p Profile) Separator() string {
	return Separator(p.OS)
}

// Join joins path elements with the separator of the profile OS.
func (p Profile) Join(elem ...string) string {
	return Join(p.OS, elem...)
}

// Separator returns the path separator used on target.
func Separator(target OS) string {
	if target == Win32 {
		return `\`
	}
	return "/"
}

// Join joins elements with the separator of target, collapsing separators at the
// element boundaries. Empty elements are skipped.
func Join(target OS, elem ...string) string {
	sep := Separator(target)
	var sb strings.Builder
	for _, e := range elem {
		if e == "" {
			continue
		}
		if sb.Len() == 0 {
			sb.WriteString(strings.TrimRight(e, sep))
			if sb.Len() == 0 {
				// root element such as "/"
				sb.WriteString(sep)
			}
			continue
		}
		if !strings.HasSuffix(sb.String(), sep) {
			sb.WriteString(sep)
		}
		sb.WriteString(strings.Trim(e, sep))
	}
	return sb.String()
}

// ParseOS validates an OS name.
func ParseOS(name string) (OS, error) {
	switch OS(name) {
	case Linux, Darwin, Win32:
		return OS(name), nil
	default:
		return "", kerrors.NewUnsupportedPlatform(name)
	}
}

// ParseLocale matches the raw locale against the known prefixes.
// Matching is case-insensitive; en_US.UTF-8, en-GB and EN all map to English.
func ParseLocale(raw string) (Locale, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, f := range documentsFolders {
		if strings.HasPrefix(lower, string(f.locale)) {
			return f.locale, nil
		}
	}
	return "", kerrors.NewUnsupportedLocale(raw, SupportedLocales())
}

// DocumentsFolder returns the documents folder name for l.
func DocumentsFolder(l Locale) string {
	for _, f := range documentsFolders {
		if f.locale == l {
			return f.folder
		}
	}
	return ""
}

// SupportedLocales returns the known locale prefixes.
func SupportedLocales() []string {
	out := make([]string, 0, len(documentsFolders))
	for _, f := range documentsFolders {
		out = append(out, string(f.locale))
	}
	return out
}

// CIRoot returns the fixed CI documents root for target.
func CIRoot(target OS) string {
	return ciRoots[target]
}

// Resolver computes Profiles.
type Resolver struct {
	home          func() (string, error)
	ci            bool
	documentsRoot string
}

// Option is a functional option for configuring a Resolver.
type Option func(*Resolver)

// WithHome sets the home directory instead of os.UserHomeDir.
func WithHome(home string) Option {
	return func(r *Resolver) {
		r.home = func() (string, error) { return home, nil }
	}
}

// WithCI switches the resolver to the fixed CI roots.
func WithCI(ci bool) Option {
	return func(r *Resolver) {
		r.ci = ci
	}
}

// WithDocumentsRoot replaces the computed documents root.
func WithDocumentsRoot(root string) Option {
	return func(r *Resolver) {
		r.documentsRoot = root
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{home: os.UserHomeDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps os and rawLocale to a Profile.
//
// Precedence: an explicit documents root, then the CI roots, then the
// locale-derived <home>/<Documents folder>. The locale is only validated
// when it is used.
func (r *Resolver) Resolve(osName, rawLocale string) (Profile, error) {
	target, err := ParseOS(osName)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{OS: target, CI: r.ci}

	switch {
	case r.documentsRoot != "":
		profile.DocumentsRoot = r.documentsRoot
		if l, err := ParseLocale(rawLocale); err == nil {
			profile.Locale = l
		}
	case r.ci:
		profile.DocumentsRoot = ciRoots[target]
		if l, err := ParseLocale(rawLocale); err == nil {
			profile.Locale = l
		}
	default:
		locale, err := ParseLocale(rawLocale)
		if err != nil {
			return Profile{}, err
		}
		home, err := r.home()
		if err != nil {
			return Profile{}, err
		}
		profile.Locale = locale
		profile.DocumentsRoot = Join(target, home, DocumentsFolder(locale))
	}

	return profile, nil
}

// Resolve is a shorthand for NewResolver(opts...).Resolve(osName, rawLocale).
func Resolve(osName, rawLocale string, opts ...Option) (Profile, error) {
	return NewResolver(opts...).Resolve(osName, rawLocale)
}

// Ensure checks that the documents root is an existing writable directory.
func Ensure(p Profile) error {
	info, err := os.Stat(p.DocumentsRoot)
	if err != nil {
		return kerrors.NewAccessDenied(p.DocumentsRoot, err)
	}
	if !info.IsDir() {
		return kerrors.NewAccessDenied(p.DocumentsRoot, &os.PathError{Op: "stat", Path: p.DocumentsRoot, Err: os.ErrInvalid})
	}

	probe, err := os.CreateTemp(p.DocumentsRoot, ".krux-installer-*")
	if err != nil {
		return kerrors.NewAccessDenied(p.DocumentsRoot, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
