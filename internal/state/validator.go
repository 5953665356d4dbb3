package state

import "fmt"

// ValidationError represents a single validation issue.
type ValidationError struct {
	Field   string // e.g. "version", "releases.v22.08.2/krux-v22.08.2.zip.localPath"
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds the result of state validation.
type ValidationResult struct {
	Warnings []ValidationError
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *ValidationResult) warn(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks a loaded State for integrity.
func Validate(st *State) *ValidationResult {
	result := &ValidationResult{}

	if st.Version == "" {
		result.warn("version", "version is empty")
	} else if st.Version != Version {
		result.warn("version", fmt.Sprintf("unknown version %q (expected %q)", st.Version, Version))
	}

	for _, id := range st.IDs() {
		rec := st.Releases[id]
		if rec == nil {
			result.warn("releases."+id, "record is empty")
			continue
		}
		if rec.LocalPath == "" {
			result.warn(fmt.Sprintf("releases.%s.localPath", id), "localPath is empty")
		}
		if rec.Version+"/"+rec.ArchiveName != id {
			result.warn(fmt.Sprintf("releases.%s", id), "key does not match version and archive name")
		}
		if rec.Verified && rec.LastVerified.IsZero() {
			result.warn(fmt.Sprintf("releases.%s.lastVerified", id), "verified without a verification time")
		}
	}

	return result
}
