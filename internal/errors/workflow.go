//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import "fmt"

// TransitionError represents an action that is not allowed in the current
// state of the decision workflow.
type TransitionError struct {
	Base Error `json:"error"`

	From   string `json:"from"`
	Action string `json:"action"`
}

// NewInvalidTransition creates a TransitionError.
func NewInvalidTransition(from, action string) *TransitionError {
	return &TransitionError{
		Base: Error{
			Category: CategoryWorkflow,
			Code:     CodeInvalidTransition,
			Message:  fmt.Sprintf("action %q not allowed in state %q", action, from),
		},
		From:   from,
		Action: action,
	}
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return e.Base.Error()
}

// Unwrap returns the underlying error.
func (e *TransitionError) Unwrap() error {
	return e.Base.Cause
}

// ErrorCode returns the machine-readable code.
func (e *TransitionError) ErrorCode() Code {
	return e.Base.Code
}

// Is reports whether the target error matches this error by code.
func (e *TransitionError) Is(target error) bool {
	return matchCode(e.Base.Code, target)
}
