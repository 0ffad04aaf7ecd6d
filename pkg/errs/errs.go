package errs

import (
	"errors"
	"fmt"
)

// Code identifies an error category for stable matching in tests and callers.
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInternal          Code = "INTERNAL"
	CodeValidation        Code = "VALIDATION"
	CodeConfigLoad        Code = "CONFIG_LOAD"
	CodeCommandFailed     Code = "COMMAND_FAILED"
	CodeHardwareDetection Code = "HARDWARE_DETECTION"
	CodeNetworkConfig     Code = "NETWORK_CONFIG"
	CodeRequirements      Code = "REQUIREMENTS"
	CodePhaseFailed       Code = "PHASE_FAILED"
)

// Error is a code-carrying error with structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches another *Error by code, so errors.Is(err, errs.New(code, ""))
// style sentinels work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any)}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: make(map[string]any)}
}

func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Details: make(map[string]any), Wrapped: err}
}

func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: make(map[string]any), Wrapped: err}
}

// WithDetail attaches one key/value pair and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation builds the per-field validation failure shape: field name,
// offending value, expected format.
func Validation(field string, value any, expected string) *Error {
	return Newf(CodeValidation, "invalid %s: %v (expected %s)", field, value, expected).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("expected", expected)
}

// CommandFailed builds the command-execution failure shape carrying the
// command text, exit code, and captured streams.
func CommandFailed(command string, exitCode int, stdout, stderr string) *Error {
	return Newf(CodeCommandFailed, "command failed with exit code %d: %s", exitCode, command).
		WithDetail("command", command).
		WithDetail("exit_code", exitCode).
		WithDetail("stdout", stdout).
		WithDetail("stderr", stderr)
}

// PhaseFailed builds the phase failure shape carrying the 1-based phase index.
func PhaseFailed(index int, name string, cause error) *Error {
	return Wrapf(cause, CodePhaseFailed, "phase %d (%s) failed", index, name).
		WithDetail("phase", index).
		WithDetail("phase_name", name)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the first code in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// DetailsOf returns the first structured details in err's chain.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Issues flattens err into the individual *Error values it joins or wraps.
// Validation aggregates per-field errors with errors.Join; this recovers them
// in order for field-by-field reporting.
func Issues(err error) []*Error {
	if err == nil {
		return nil
	}
	var out []*Error
	collectIssues(err, &out)
	return out
}

func collectIssues(err error, out *[]*Error) {
	if err == nil {
		return
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, sub := range multi.Unwrap() {
			collectIssues(sub, out)
		}
		return
	}
	var e *Error
	if errors.As(err, &e) {
		*out = append(*out, e)
	}
}
