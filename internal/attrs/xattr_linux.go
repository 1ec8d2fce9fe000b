package attrs

import (
	"strings"

	"golang.org/x/sys/unix"
)

const errNoAttr = unix.ENODATA

// carriedXattr limits copying to the user namespace. system.* holds ACLs,
// security.* and trusted.* need privilege and belong to the host policy.
func carriedXattr(name string) bool {
	return strings.HasPrefix(name, "user.")
}
