package config

import (
	"runtime"
	"strings"
)

// Env variables read by krux-installer.
const (
	EnvCI           = "CI"
	EnvGitHubAction = "GITHUB_ACTION"
	EnvConfigDir    = "KRUX_INSTALLER_CONFIG_DIR"
	EnvGitHubToken  = "GITHUB_TOKEN"
	EnvGHToken      = "GH_TOKEN"
	EnvLanguage     = "LANGUAGE"
	EnvLCAll        = "LC_ALL"
	EnvLCMessages   = "LC_MESSAGES"
	EnvLang         = "LANG"
)

// Env represents the host environment relevant to path resolution.
type Env struct {
	// OS uses the release naming: linux, darwin or win32.
	OS string `json:"os"`

	// Locale is the raw locale string, e.g. en_US.UTF-8.
	Locale string `json:"locale"`

	// CI is true when both CI and GITHUB_ACTION are set.
	CI bool `json:"ci"`

	ConfigDir string `json:"-"`
	Token     string `json:"-"`
}

// DetectEnv detects the current environment using getenv for lookups.
func DetectEnv(getenv func(string) string) *Env {
	return &Env{
		OS:        HostOS(runtime.GOOS),
		Locale:    detectLocale(getenv),
		CI:        IsCI(getenv),
		ConfigDir: getenv(EnvConfigDir),
		Token:     detectToken(getenv),
	}
}

// HostOS maps a GOOS value to the release platform naming.
func HostOS(goos string) string {
	if goos == "windows" {
		return "win32"
	}
	return goos
}

// IsCI reports whether the process runs inside a GitHub Actions job.
// Both variables must be non-empty.
func IsCI(getenv func(string) string) bool {
	return getenv(EnvCI) != "" && getenv(EnvGitHubAction) != ""
}

// detectLocale follows the gettext precedence: LC_ALL, LC_MESSAGES, LANG, then
// the first entry of LANGUAGE.
func detectLocale(getenv func(string) string) string {
	for _, key := range []string{EnvLCAll, EnvLCMessages, EnvLang} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	if v := getenv(EnvLanguage); v != "" {
		first, _, _ := strings.Cut(v, ":")
		return first
	}
	return ""
}

func detectToken(getenv func(string) string) string {
	if t := getenv(EnvGitHubToken); t != "" {
		return t
	}
	return getenv(EnvGHToken)
}
