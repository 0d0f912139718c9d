// Package solverr defines the error kinds the engine distinguishes
// (spec §7): parse errors, capacity exhaustion, device faults, and
// numeric overflow, each carrying a fixed code so the driver can decide
// whether to recover or give up.
package solverr

import (
	"errors"
	"fmt"
)

// Error codes, one per spec §7 error kind.
const (
	// CodeParseError marks a malformed formula or decomposition,
	// reported by a collaborator (out of this engine's scope).
	CodeParseError = "PARSE_ERROR"
	// CodeCapacityExhausted marks a trie treeSize over its allocation,
	// or a bag assignment space over maxBag. Recoverable classifies it
	// as recoverable, but the driver neither re-chunks nor re-allocates:
	// it returns the error to the caller (a trie overflow arrives
	// wrapped in CodeDeviceFault by the kernel).
	CodeCapacityExhausted = "CAPACITY_EXHAUSTED"
	// CodeDeviceFault marks a kernel launch or device-sync failure.
	// Always fatal.
	CodeDeviceFault = "DEVICE_FAULT"
	// CodeNumericOverflow marks an exponent that stays unsafe even
	// after correction, recurring at the same bag. Fatal when it
	// recurs; the first occurrence at a bag is handled silently by
	// the exponent-correction path.
	CodeNumericOverflow = "NUMERIC_OVERFLOW"
)

// SolveError is the error type every engine-reported failure takes.
type SolveError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *SolveError) Unwrap() error {
	return e.Err
}

// Is compares by code, so errors.Is(err, solverr.New(CodeDeviceFault, ""))
// matches any device fault regardless of message.
func (e *SolveError) Is(target error) bool {
	t, ok := target.(*SolveError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a SolveError with the given code and message.
func New(code, message string) *SolveError {
	return &SolveError{Code: code, Message: message}
}

// Newf creates a SolveError with a formatted message.
func Newf(code, format string, args ...any) *SolveError {
	return &SolveError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error.
func Wrap(code, message string, err error) *SolveError {
	return &SolveError{Code: code, Message: message, Err: err}
}

// Recoverable reports whether the driver should attempt to recover from
// err (re-chunk, re-allocate) rather than abort the solve (§7).
func Recoverable(err error) bool {
	return Code(err) == CodeCapacityExhausted
}

// Fatal reports whether err should terminate the solve immediately.
func Fatal(err error) bool {
	switch Code(err) {
	case CodeDeviceFault:
		return true
	default:
		return false
	}
}

// Code extracts the error code from err, or "" if err is not a
// SolveError.
func Code(err error) string {
	var se *SolveError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCapacityExhausted reports whether err is a capacity-exhaustion
// error.
func IsCapacityExhausted(err error) bool {
	return Code(err) == CodeCapacityExhausted
}

// IsDeviceFault reports whether err is a device-fault error.
func IsDeviceFault(err error) bool {
	return Code(err) == CodeDeviceFault
}

// IsNumericOverflow reports whether err is a numeric-overflow error.
func IsNumericOverflow(err error) bool {
	return Code(err) == CodeNumericOverflow
}

// IsParseError reports whether err is a parse error.
func IsParseError(err error) bool {
	return Code(err) == CodeParseError
}
