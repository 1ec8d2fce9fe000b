package transfer

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameExclusive renames oldpath to newpath, failing with EEXIST when
// newpath exists.
func renameExclusive(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}

	// Older kernels and some filesystems (NFS, FUSE) lack RENAME_NOREPLACE.
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
		return linkAndRemove(oldpath, newpath)
	}

	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
}
