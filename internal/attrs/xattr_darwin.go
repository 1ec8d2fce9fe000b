package attrs

import (
	"golang.org/x/sys/unix"
)

const errNoAttr = unix.ENOATTR

// carriedXattr skips the quarantine flag; everything else travels.
func carriedXattr(name string) bool {
	return name != "com.apple.quarantine"
}
