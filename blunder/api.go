// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package blunder provides error-handling wrappers
//
// These wrappers allow callers to attach an errno value to regular Go errors
// while still conforming to the Go error interface. The name cache itself never
// returns errors on its hot path; errors originate from configuration parsing
// and from the inode and fs collaborators.
//
// This package is implemented on top of the ansel1/merry package:
//   https://github.com/ansel1/merry
//
// merry records a stack trace with each wrapped error and allows arbitrary
// values to be attached with merry.WithValue(). The errno is stored under the
// "errno" key.
//
package blunder

import (
	"fmt"

	"github.com/ansel1/merry"
	"golang.org/x/sys/unix"
)

// FsError is an errno value (as defined in errno.h) or a namecache-specific
// value above 1000.
//
type FsError int

const (
	NotPermError      FsError = FsError(int(unix.EPERM))        // Operation not permitted
	NotFoundError     FsError = FsError(int(unix.ENOENT))       // No such file or directory
	IOError           FsError = FsError(int(unix.EIO))          // I/O error
	TryAgainError     FsError = FsError(int(unix.EAGAIN))       // Try again
	OutOfMemoryError  FsError = FsError(int(unix.ENOMEM))       // Out of memory
	DevBusyError      FsError = FsError(int(unix.EBUSY))        // Device or resource busy
	FileExistsError   FsError = FsError(int(unix.EEXIST))       // File exists
	NotDirError       FsError = FsError(int(unix.ENOTDIR))      // Not a directory
	IsDirError        FsError = FsError(int(unix.EISDIR))       // Is a directory
	InvalidArgError   FsError = FsError(int(unix.EINVAL))       // Invalid argument
	OutOfRangeError   FsError = FsError(int(unix.ERANGE))       // Math result not representable
	NameTooLongError  FsError = FsError(int(unix.ENAMETOOLONG)) // File name too long
	NotEmptyError     FsError = FsError(int(unix.ENOTEMPTY))    // Directory not empty
	NotSupportedError FsError = FsError(int(unix.ENOTSUP))      // Operation not supported
	StaleError        FsError = FsError(int(unix.ESTALE))       // Stale file handle
)

// Errors that map to constants already defined above
const (
	BadMountIDError     FsError = InvalidArgError
	BadVolumeError      FsError = InvalidArgError
	BadConfigError      FsError = InvalidArgError
	NotFileError        FsError = IsDirError
	CrossVolumeError    FsError = InvalidArgError
	RenameIntoSelfError FsError = InvalidArgError
)

// SuccessError is the FsError of a nil error
const SuccessError FsError = 0

const (
	// Errors that are internal/specific to namecache
	CorruptInodeError FsError = 1000 + iota
	NotAnObjectError
	CorruptCacheError
)

const successErrno = 0
const failureErrno = -1

// Value returns the int value for the specified FsError constant
func (err FsError) Value() int {
	return int(err)
}

// NewError creates a new merry/blunder.FsError-annotated error using the given
// format string and arguments.
func NewError(errValue FsError, format string, a ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue("errno", int(errValue))
}

// AddError is used to add FS error detail to a Go error.
//
// A nil error is turned into a non-nil one, since the caller obviously intends
// to return a failure.
//
func AddError(e error, errValue FsError) error {
	if e == nil {
		return merry.New("regular error").WithValue("errno", int(errValue))
	}

	return merry.WrapSkipping(e, 1).WithValue("errno", int(errValue))
}

// Errno extracts errno from the error, if it was previously wrapped.
// Otherwise failureErrno is returned (or successErrno for a nil error).
//
func Errno(e error) int {
	if e == nil {
		return successErrno
	}

	errno, ok := merry.Value(e, "errno").(int)
	if !ok {
		return failureErrno
	}

	return errno
}

// ErrorString returns the error string with the errno value appended, if set.
func ErrorString(e error) string {
	if e == nil {
		return ""
	}

	errno, ok := merry.Value(e, "errno").(int)
	if !ok {
		return e.Error()
	}

	return fmt.Sprintf("%s. Error Value: %v", e.Error(), errno)
}

// Is reports whether an error carries the errno of theError.
//
// NOTE: Because the value of the underlying errno is used to do this check, one cannot
//       use this API to distinguish between FsErrors that share an errno value.
//
func Is(e error, theError FsError) bool {
	return Errno(e) == theError.Value()
}

// IsNot reports whether an error does not carry the errno of theError.
func IsNot(e error, theError FsError) bool {
	return Errno(e) != theError.Value()
}

// IsSuccess reports whether an error is the success FsError.
func IsSuccess(e error) bool {
	return Errno(e) == successErrno
}

// Location returns the file and line number of the code that generated the error.
func Location(e error) (file string, line int) {
	file, line = merry.Location(e)
	return
}

// Details returns all error details including the stack trace.
func Details(e error) string {
	return merry.Details(e)
}
