package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failed job step.
//
// RuntimeError carries the step that failed and the job it belonged to,
// and wraps the underlying cause.
type RuntimeError struct {
	// Code identifies the failed step.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Target names the job's target table.
	Target string

	// PlanID identifies the affected plan, when one exists.
	PlanID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeIntrospect indicates a table could not be described.
	ErrCodeIntrospect RuntimeErrorCode = "INTROSPECT_FAILED"

	// ErrCodeTemplate indicates the configuration does not fit the tables.
	ErrCodeTemplate RuntimeErrorCode = "TEMPLATE_FAILED"

	// ErrCodeRead indicates source or target rows could not be read.
	ErrCodeRead RuntimeErrorCode = "READ_FAILED"

	// ErrCodePlan indicates the planner failed.
	ErrCodePlan RuntimeErrorCode = "PLAN_FAILED"

	// ErrCodeStore indicates the plan could not be stored or loaded.
	ErrCodeStore RuntimeErrorCode = "STORE_FAILED"

	// ErrCodeApply indicates the plan could not be applied.
	ErrCodeApply RuntimeErrorCode = "APPLY_FAILED"

	// ErrCodeConfigMismatch indicates a stored plan was built for another configuration.
	ErrCodeConfigMismatch RuntimeErrorCode = "CONFIG_MISMATCH"

	// ErrCodeConflictingJobs indicates two concurrent jobs share a target table.
	ErrCodeConflictingJobs RuntimeErrorCode = "CONFLICTING_JOBS"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Target != "" && e.PlanID != "" {
		msg = fmt.Sprintf("%s (target=%s, plan=%s)", msg, e.Target, e.PlanID)
	} else if e.Target != "" {
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newRuntimeError(code RuntimeErrorCode, job Job, err error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Target:  job.TargetTable,
		Err:     err,
	}
}
