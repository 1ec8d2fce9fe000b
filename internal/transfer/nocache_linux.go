package transfer

import (
	"os"

	"golang.org/x/sys/unix"
)

// beginUnbuffered hints that f is read or written once, front to back.
func beginUnbuffered(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// endUnbuffered drops f's pages from the page cache. Dirty pages are not
// dropped, so callers fsync first.
func endUnbuffered(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
