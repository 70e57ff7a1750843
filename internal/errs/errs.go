// Package errs provides the scheduler's structured error type, shared
// by internal packages (admission, dispatch, process) so that the
// disposition table in the specification can be constructed at the
// point of failure instead of only at the root package's test-only
// surface. The root package re-exports everything here under the same
// names for external callers.
package errs

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured scheduler error with context and errno
// mapping.
type Error struct {
	Op     string        // Operation that failed (e.g. "ADMIT", "DISPATCH")
	Handle int           // Process handle (-1 if not applicable)
	Code   ErrorCode     // High-level error category
	Errno  syscall.Errno // Underlying errno (0 if not applicable)
	Msg    string        // Human-readable message
	Inner  error         // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var ctx string
	switch {
	case e.Handle >= 0:
		ctx = fmt.Sprintf("op=%s fid=%d", e.Op, e.Handle)
	case e.Op != "":
		ctx = fmt.Sprintf("op=%s", e.Op)
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if ctx != "" {
		return fmt.Sprintf("mlfq: %s (%s)", msg, ctx)
	}
	return fmt.Sprintf("mlfq: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support, including against the legacy sentinel
// error constants below.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if se, ok := target.(SchedulerError); ok {
		return e.Code == ErrorCode(se)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents the error-category table from the scheduler's
// disposition design: each kind a caller can branch on, independent of
// the human-readable message.
type ErrorCode string

const (
	ErrCodeTableFull       ErrorCode = "process table full"
	ErrCodeDuplicatePath   ErrorCode = "duplicate program path"
	ErrCodeSpawnFailed     ErrorCode = "spawn failed"
	ErrCodeUnknownSender   ErrorCode = "signal from unregistered pid"
	ErrCodePathTooLong     ErrorCode = "program path too long"
	ErrCodeChannelIO       ErrorCode = "admission channel I/O error"
	ErrCodeProgramNotFound ErrorCode = "program not found"
	ErrCodeInvalidHandle   ErrorCode = "invalid process handle"
	// ErrCodeMalformedWorker is reserved: a worker that violates the
	// contract (never sends IO_END after IO_BEGIN, for instance) has no
	// well-defined recovery, so nothing in this package constructs this
	// code today. It exists so callers can match on it if a future
	// watchdog is added.
	ErrCodeMalformedWorker ErrorCode = "worker violated contract"
)

// SchedulerError is a legacy sentinel error type, kept for comparison
// with the structured Error above via errors.Is.
type SchedulerError string

func (e SchedulerError) Error() string { return string(e) }

// Sentinel errors for simple comparisons.
const (
	ErrTableFull       SchedulerError = "process table full"
	ErrDuplicatePath   SchedulerError = "duplicate program path"
	ErrSpawnFailed     SchedulerError = "spawn failed"
	ErrProgramNotFound SchedulerError = "program not found"
	ErrInvalidHandle   SchedulerError = "invalid process handle"
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: -1, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a new structured error carrying an errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Handle: -1, Code: code, Errno: errno, Msg: errno.Error()}
}

// NewHandleError creates a new error scoped to a specific process handle.
func NewHandleError(op string, handle int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: handle, Code: code, Msg: msg}
}

// WrapError wraps an existing error with scheduler context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, Handle: se.Handle, Code: se.Code, Errno: se.Errno, Msg: se.Msg, Inner: se.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Handle: -1, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Handle: -1, Code: ErrCodeChannelIO, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT:
		return ErrCodeProgramNotFound
	case syscall.ESRCH:
		return ErrCodeUnknownSender
	case syscall.ENAMETOOLONG:
		return ErrCodePathTooLong
	case syscall.EMFILE, syscall.ENFILE, syscall.EAGAIN:
		return ErrCodeSpawnFailed
	default:
		return ErrCodeChannelIO
	}
}

// MapErrnoToCode exposes mapErrnoToCode to other internal packages that
// need to construct a structured error directly from an errno without
// going through WrapError (e.g. when the errno came from a unix.Errno
// rather than a wrapped error value).
func MapErrnoToCode(errno syscall.Errno) ErrorCode {
	return mapErrnoToCode(errno)
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno == errno
	}
	return false
}
