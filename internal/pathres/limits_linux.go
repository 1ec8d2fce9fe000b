//go:build linux

package pathres

import "golang.org/x/sys/unix"

// defaultMaxPath is the longest path a single syscall accepts, excluding the
// terminating NUL.
const defaultMaxPath = unix.PathMax - 1
