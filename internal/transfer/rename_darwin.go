package transfer

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameExclusive renames oldpath to newpath, failing with EEXIST when
// newpath exists.
func renameExclusive(oldpath, newpath string) error {
	err := unix.RenamexNp(oldpath, newpath, unix.RENAME_EXCL)
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EINVAL) {
		return linkAndRemove(oldpath, newpath)
	}

	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
}
