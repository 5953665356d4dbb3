// Package errors provides structured error types for krux-installer.
// These errors carry rich context information that can be formatted
// for human-readable CLI output or machine-readable JSON.
//
//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

// Category represents the classification of an error.
type Category string

const (
	CategoryPlatform  Category = "platform"
	CategoryToolchain Category = "toolchain"
	CategoryArtifact  Category = "artifact"
	CategoryNetwork   Category = "network"
	CategoryVerify    Category = "verify"
	CategoryConfig    Category = "config"
	CategoryWorkflow  Category = "workflow"
	CategoryState     Category = "state"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Platform errors (E1xx)
	CodeUnsupportedPlatform Code = "E101"
	CodeUnsupportedLocale   Code = "E102"

	// Toolchain errors (E2xx)
	CodeProbeNotFound Code = "E201"

	// Artifact errors (E3xx)
	CodeNotFound       Code = "E301"
	CodeAccessDenied   Code = "E302"
	CodeInvalidVersion Code = "E303"

	// Network errors (E4xx)
	CodeDownloadFailed             Code = "E401"
	CodeConcurrentDownloadRejected Code = "E402"

	// Verification errors (E5xx)
	CodeSignatureMismatch Code = "E501"

	// Config errors (E6xx)
	CodeConfigParse Code = "E601"

	// Workflow errors (E7xx)
	CodeInvalidTransition Code = "E701"

	// State errors (E8xx)
	CodeStateError  Code = "E801"
	CodeStateLocked Code = "E802"
)

// Sentinels for errors.Is checks. Any error carrying the same code matches.
var (
	ErrUnsupportedPlatform        = &Error{Category: CategoryPlatform, Code: CodeUnsupportedPlatform}
	ErrUnsupportedLocale          = &Error{Category: CategoryPlatform, Code: CodeUnsupportedLocale}
	ErrProbeNotFound              = &Error{Category: CategoryToolchain, Code: CodeProbeNotFound}
	ErrNotFound                   = &Error{Category: CategoryArtifact, Code: CodeNotFound}
	ErrAccessDenied               = &Error{Category: CategoryArtifact, Code: CodeAccessDenied}
	ErrInvalidVersion             = &Error{Category: CategoryArtifact, Code: CodeInvalidVersion}
	ErrDownloadFailed             = &Error{Category: CategoryNetwork, Code: CodeDownloadFailed}
	ErrConcurrentDownloadRejected = &Error{Category: CategoryNetwork, Code: CodeConcurrentDownloadRejected}
	ErrSignatureMismatch          = &Error{Category: CategoryVerify, Code: CodeSignatureMismatch}
	ErrInvalidTransition          = &Error{Category: CategoryWorkflow, Code: CodeInvalidTransition}
	ErrStateLocked                = &Error{Category: CategoryState, Code: CodeStateLocked}
)

// Error is the base error type for krux-installer.
// It provides structured information that can be formatted for CLI output.
type Error struct {
	// Category classifies the error type.
	Category Category `json:"category"`

	// Code is a machine-readable error code.
	Code Code `json:"code,omitempty"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Details contains additional context information.
	Details map[string]any `json:"details,omitempty"`

	// Hint provides actionable advice for the user.
	Hint string `json:"hint,omitempty"`

	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the machine-readable code.
func (e *Error) ErrorCode() Code {
	return e.Code
}

// Is reports whether the target error matches this error.
// It matches if the target carries the same Code (if both have codes).
func (e *Error) Is(target error) bool {
	if matchCode(e.Code, target) {
		return true
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != "" && t.Code != "" {
		return false
	}
	// Otherwise compare by category and message
	return e.Category == t.Category && e.Message == t.Message
}

// WithHint sets the hint and returns the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithDetail adds a detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given category and message.
func New(category Category, message string) *Error {
	return &Error{
		Category: category,
		Message:  message,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category Category, message string, cause error) *Error {
	return &Error{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

// coder is implemented by every structured error in this package.
type coder interface {
	ErrorCode() Code
}

func matchCode(code Code, target error) bool {
	if code == "" {
		return false
	}
	c, ok := target.(coder)
	if !ok {
		return false
	}
	return c.ErrorCode() == code
}

// CodeOf returns the code of the first structured error in err's chain.
func CodeOf(err error) Code {
	for err != nil {
		if c, ok := err.(coder); ok && c.ErrorCode() != "" {
			return c.ErrorCode()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsFatal reports whether err must end the session: platform, locale and
// toolchain failures cannot be recovered from by retrying.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeUnsupportedPlatform, CodeUnsupportedLocale, CodeProbeNotFound, CodeConfigParse:
		return true
	default:
		return false
	}
}
