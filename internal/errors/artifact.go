//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import "fmt"

// Scope tells where an artifact lookup failed.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeRemote Scope = "remote"
)

// ArtifactError represents a failed artifact lookup.
type ArtifactError struct {
	Base Error `json:"error"`

	// Scope is either local (cache) or remote (release origin).
	Scope Scope `json:"scope,omitempty"`

	// Location is the path or URL that was checked.
	Location string `json:"location,omitempty"`
}

// NewNotFound creates an ArtifactError for a missing artifact.
func NewNotFound(scope Scope, location string) *ArtifactError {
	return &ArtifactError{
		Base: Error{
			Category: CategoryArtifact,
			Code:     CodeNotFound,
			Message:  fmt.Sprintf("%s artifact not found", scope),
		},
		Scope:    scope,
		Location: location,
	}
}

// NewAccessDenied creates an ArtifactError for a presence check that was
// refused by the file system.
func NewAccessDenied(path string, cause error) *ArtifactError {
	return &ArtifactError{
		Base: Error{
			Category: CategoryArtifact,
			Code:     CodeAccessDenied,
			Message:  "access denied",
			Hint:     "Check the permissions of the krux-installer folder.",
			Cause:    cause,
		},
		Scope:    ScopeLocal,
		Location: path,
	}
}

// NewInvalidVersion creates an ArtifactError for a version that is not a
// release tag and cannot name a cache folder.
func NewInvalidVersion(version string, cause error) *ArtifactError {
	return &ArtifactError{
		Base: Error{
			Category: CategoryArtifact,
			Code:     CodeInvalidVersion,
			Message:  "invalid release version",
			Hint:     "Use a release tag such as v22.08.2, or latest.",
			Cause:    cause,
		},
		Location: version,
	}
}

// Error implements the error interface.
func (e *ArtifactError) Error() string {
	if e.Location == "" {
		return e.Base.Error()
	}
	return fmt.Sprintf("%s: %s", e.Base.Error(), e.Location)
}

// Unwrap returns the underlying error.
func (e *ArtifactError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *ArtifactError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *ArtifactError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}
