//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

// SignatureError represents an archive that failed authenticity checks.
type SignatureError struct {
	Base Error `json:"error"`

	// Path is the archive that was verified.
	Path string `json:"path,omitempty"`

	// Computed identifies what was computed from the archive bytes.
	Computed string `json:"computed,omitempty"`

	// Expected identifies what the release publishes.
	Expected string `json:"expected,omitempty"`
}

// NewSignatureMismatch creates a SignatureError.
func NewSignatureMismatch(path, reason, computed, expected string) *SignatureError {
	return &SignatureError{
		Base: Error{
			Category: CategoryVerify,
			Code:     CodeSignatureMismatch,
			Message:  "signature verification failed: " + reason,
			Hint:     "Do not flash this archive. Download it again and re-verify.",
		},
		Path:     path,
		Computed: computed,
		Expected: expected,
	}
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return e.Base.Error()
}

// Unwrap returns the underlying error.
func (e *SignatureError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *SignatureError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *SignatureError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}
