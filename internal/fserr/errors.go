// Package fserr defines the error taxonomy shared by the resolver, the
// metadata cache and the transfer engine, and translates native errno values
// into it. Use errors.Is(err, fserr.ErrNotFound) to classify; use errors.As
// with *NativeError to recover the errno for diagnostics or retry decisions.
package fserr

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// Sentinel errors. Cancelled and Stopped transfers are outcomes, not errors,
// and have no sentinel here.
var (
	ErrInvalidArgument = errors.New("fxfer: invalid argument")
	ErrNotFound        = errors.New("fxfer: not found")
	ErrAlreadyExists   = errors.New("fxfer: already exists")
	ErrAccessDenied    = errors.New("fxfer: access denied")
	ErrNotAFile        = errors.New("fxfer: not a file")
	ErrUnsupported     = errors.New("fxfer: unsupported")
	ErrStaleHandle     = errors.New("fxfer: stale handle")
	ErrFailed          = errors.New("fxfer: native operation failed")
)

// NativeError wraps a sentinel with the failing operation, the path it was
// applied to and the native errno. It unwraps to both the sentinel and the
// original error so errors.Is(err, os.ErrNotExist) keeps working.
type NativeError struct {
	Op    string
	Path  string
	Code  syscall.Errno // 0 when the cause carried no errno
	Err   error         // sentinel, for errors.Is()
	Cause error
}

func (e *NativeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s: %v (errno %d)", e.Op, e.Path, e.Cause, int(e.Code))
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *NativeError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}

// Translate maps err from a native call into the taxonomy. nil stays nil and
// errors already translated are returned unchanged.
func Translate(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var ne *NativeError
	if errors.As(err, &ne) {
		return err
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return &NativeError{Op: op, Path: path, Err: classifyPlain(err), Cause: err}
	}

	return &NativeError{Op: op, Path: path, Code: errno, Err: classifyErrno(errno), Cause: err}
}

// classifyErrno maps an errno to a sentinel error.
func classifyErrno(errno syscall.Errno) error {
	switch errno {
	case unix.ENOENT, unix.ENOTDIR:
		return ErrNotFound
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return ErrAccessDenied
	case unix.EEXIST, unix.ENOTEMPTY:
		return ErrAlreadyExists
	case unix.EISDIR:
		return ErrNotAFile
	case unix.ENOSYS, unix.EOPNOTSUPP, unix.EXDEV:
		return ErrUnsupported
	case unix.EINVAL, unix.ENAMETOOLONG:
		return ErrInvalidArgument
	default:
		return ErrFailed
	}
}

// classifyPlain handles errors that carry no errno, such as the io/fs
// sentinels returned by in-memory fakes in tests.
func classifyPlain(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, ErrAccessDenied), errors.Is(err, fs.ErrPermission):
		return ErrAccessDenied
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	case errors.Is(err, ErrNotAFile):
		return ErrNotAFile
	case errors.Is(err, ErrUnsupported), errors.Is(err, errors.ErrUnsupported):
		return ErrUnsupported
	default:
		return ErrFailed
	}
}

// Code returns the errno carried by err, if any.
func Code(err error) (syscall.Errno, bool) {
	var ne *NativeError
	if errors.As(err, &ne) && ne.Code != 0 {
		return ne.Code, true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}

	return 0, false
}

// IsCrossDevice reports whether err came from a rename that crossed a
// filesystem boundary.
func IsCrossDevice(err error) bool {
	code, ok := Code(err)
	return ok && code == unix.EXDEV
}

// Retryable reports whether a Failed error is worth retrying by the caller.
// Sharing-style conflicts (busy files, transient resource shortage) qualify;
// the engine itself never retries.
func Retryable(err error) bool {
	code, ok := Code(err)
	if !ok {
		return false
	}

	switch code {
	case unix.EBUSY, unix.EAGAIN, unix.ETXTBSY, unix.EINTR:
		return true
	default:
		return false
	}
}
