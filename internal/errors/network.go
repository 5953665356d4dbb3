//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import "fmt"

// DownloadError represents a failed or rejected download.
type DownloadError struct {
	Base Error `json:"error"`

	// URL is the URL that failed.
	URL string `json:"url,omitempty"`

	// StatusCode is the HTTP status code (if applicable).
	StatusCode int `json:"statusCode,omitempty"`

	// LockFile is the lock held by the active download (if applicable).
	LockFile string `json:"lockFile,omitempty"`
}

// NewDownloadFailed creates a DownloadError for network or write failures.
func NewDownloadFailed(url string, cause error) *DownloadError {
	return &DownloadError{
		Base: Error{
			Category: CategoryNetwork,
			Code:     CodeDownloadFailed,
			Message:  "download failed",
			Hint:     "The cached file was left untouched. Retry the download.",
			Cause:    cause,
		},
		URL: url,
	}
}

// NewHTTPError creates a DownloadError for a non-200 response.
func NewHTTPError(url string, statusCode int) *DownloadError {
	return &DownloadError{
		Base: Error{
			Category: CategoryNetwork,
			Code:     CodeDownloadFailed,
			Message:  fmt.Sprintf("HTTP %d", statusCode),
		},
		URL:        url,
		StatusCode: statusCode,
	}
}

// NewConcurrentDownloadRejected creates a DownloadError for a second download
// of a release that is already being written.
func NewConcurrentDownloadRejected(release, lockFile string) *DownloadError {
	return &DownloadError{
		Base: Error{
			Category: CategoryNetwork,
			Code:     CodeConcurrentDownloadRejected,
			Message:  fmt.Sprintf("download of %s already in progress", release),
			Hint:     "Wait for the running download to finish.",
		},
		LockFile: lockFile,
	}
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return e.Base.Error()
}

// Unwrap returns the underlying error.
func (e *DownloadError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *DownloadError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *DownloadError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}
