//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import (
	"fmt"
	"strings"
)

// PlatformError represents an unsupported host configuration.
type PlatformError struct {
	Base Error `json:"error"`

	// OS is the operating system that was resolved.
	OS string `json:"os,omitempty"`

	// Locale is the raw locale that was rejected.
	Locale string `json:"locale,omitempty"`
}

// NewUnsupportedPlatform creates a PlatformError for an OS outside linux/darwin/win32.
func NewUnsupportedPlatform(os string) *PlatformError {
	return &PlatformError{
		Base: Error{
			Category: CategoryPlatform,
			Code:     CodeUnsupportedPlatform,
			Message:  fmt.Sprintf("unsupported platform %q", os),
			Hint:     "Supported platforms are linux, darwin and win32.",
		},
		OS: os,
	}
}

// NewUnsupportedLocale creates a PlatformError for a locale without a known
// documents folder name.
func NewUnsupportedLocale(locale string, supported []string) *PlatformError {
	return &PlatformError{
		Base: Error{
			Category: CategoryPlatform,
			Code:     CodeUnsupportedLocale,
			Message:  fmt.Sprintf("%s not implemented", displayLocale(locale)),
			Hint: fmt.Sprintf("Supported locale prefixes: %s.\nSet 'locale' or 'documentsRoot' in config.cue to override.",
				strings.Join(supported, ", ")),
		},
		Locale: locale,
	}
}

func displayLocale(locale string) string {
	if locale == "" {
		return "empty locale"
	}
	return fmt.Sprintf("locale %q", locale)
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	return e.Base.Error()
}

// Unwrap returns the underlying error.
func (e *PlatformError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *PlatformError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *PlatformError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}

// ToolchainError represents a missing crypto toolchain.
type ToolchainError struct {
	Base Error `json:"error"`

	// OS is the platform the probe ran for.
	OS string `json:"os,omitempty"`

	// Tool is the binary that was searched for.
	Tool string `json:"tool,omitempty"`

	// Tried lists the locations that were inspected.
	Tried []string `json:"tried,omitempty"`
}

// NewProbeNotFound creates a ToolchainError.
func NewProbeNotFound(os, tool string, tried []string) *ToolchainError {
	return &ToolchainError{
		Base: Error{
			Category: CategoryToolchain,
			Code:     CodeProbeNotFound,
			Message:  fmt.Sprintf("%s not found for %s", tool, os),
			Hint:     installHint(os),
		},
		OS:    os,
		Tool:  tool,
		Tried: tried,
	}
}

func installHint(os string) string {
	switch os {
	case "linux":
		return "Install openssl with your distribution package manager."
	case "darwin":
		return "Install openssl with 'brew install openssl'."
	case "win32":
		return "Install OpenSSL for Windows or Git for Windows, which bundles openssl.exe."
	default:
		return ""
	}
}

// Error implements the error interface.
func (e *ToolchainError) Error() string {
	return e.Base.Error()
}

// Unwrap returns the underlying error.
func (e *ToolchainError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *ToolchainError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *ToolchainError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}
