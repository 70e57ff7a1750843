// Package mlfq implements a supervised multi-level feedback queue process
// scheduler: an admission worker that spawns submitted programs and a
// dispatcher that runs them cooperatively across three priority levels.
package mlfq

import (
	"syscall"

	"github.com/arkalon/mlfq/internal/errs"
)

// Error, ErrorCode, and SchedulerError alias internal/errs so that
// admission, dispatch, and process can construct the same structured
// errors this package exposes, without an import cycle back to mlfq.
type (
	Error          = errs.Error
	ErrorCode      = errs.ErrorCode
	SchedulerError = errs.SchedulerError
)

const (
	ErrCodeTableFull       = errs.ErrCodeTableFull
	ErrCodeDuplicatePath   = errs.ErrCodeDuplicatePath
	ErrCodeSpawnFailed     = errs.ErrCodeSpawnFailed
	ErrCodeUnknownSender   = errs.ErrCodeUnknownSender
	ErrCodePathTooLong     = errs.ErrCodePathTooLong
	ErrCodeChannelIO       = errs.ErrCodeChannelIO
	ErrCodeProgramNotFound = errs.ErrCodeProgramNotFound
	ErrCodeInvalidHandle   = errs.ErrCodeInvalidHandle
	ErrCodeMalformedWorker = errs.ErrCodeMalformedWorker
)

// Sentinel errors for simple comparisons.
const (
	ErrTableFull       = errs.ErrTableFull
	ErrDuplicatePath   = errs.ErrDuplicatePath
	ErrSpawnFailed     = errs.ErrSpawnFailed
	ErrProgramNotFound = errs.ErrProgramNotFound
	ErrInvalidHandle   = errs.ErrInvalidHandle
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return errs.NewError(op, code, msg)
}

// NewErrorWithErrno creates a new structured error carrying an errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return errs.NewErrorWithErrno(op, code, errno)
}

// NewHandleError creates a new error scoped to a specific process handle.
func NewHandleError(op string, handle int, code ErrorCode, msg string) *Error {
	return errs.NewHandleError(op, handle, code, msg)
}

// WrapError wraps an existing error with scheduler context.
func WrapError(op string, inner error) *Error {
	return errs.WrapError(op, inner)
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	return errs.MapErrnoToCode(errno)
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return errs.IsCode(err, code)
}

// IsErrno checks if an error matches a specific errno.
func IsErrno(err error, errno syscall.Errno) bool {
	return errs.IsErrno(err, errno)
}
