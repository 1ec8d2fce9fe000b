//go:build darwin

package attrs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// statPath reads the entry with stat(2); APFS and HFS+ always record birth
// time.
func statPath(path string) (Info, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Info{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}

	return Info{
		Mode:       fileMode(uint32(st.Mode)),
		Size:       st.Size,
		UID:        st.Uid,
		GID:        st.Gid,
		Dev:        uint64(st.Dev), //nolint:gosec // device numbers are non-negative
		Ino:        st.Ino,
		Nlink:      uint64(st.Nlink),
		AccessedAt: time.Unix(st.Atim.Unix()),
		ModifiedAt: time.Unix(st.Mtim.Unix()),
		ChangedAt:  time.Unix(st.Ctim.Unix()),
		CreatedAt:  time.Unix(st.Btim.Unix()),
	}, nil
}
