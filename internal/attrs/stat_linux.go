//go:build linux

package attrs

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// statPath uses statx so birth time is available where the filesystem
// records it. Kernels older than 4.11 fall back to stat(2).
func statPath(path string) (Info, error) {
	var stx unix.Statx_t

	err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BASIC_STATS|unix.STATX_BTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return statFallback(path)
	}

	if err != nil {
		return Info{}, &os.PathError{Op: "statx", Path: path, Err: err}
	}

	info := Info{
		Mode:       fileMode(uint32(stx.Mode)),
		Size:       int64(stx.Size), //nolint:gosec // kernel sizes fit int64
		UID:        stx.Uid,
		GID:        stx.Gid,
		Dev:        unix.Mkdev(stx.Dev_major, stx.Dev_minor),
		Ino:        stx.Ino,
		Nlink:      uint64(stx.Nlink),
		AccessedAt: statxTime(stx.Atime),
		ModifiedAt: statxTime(stx.Mtime),
		ChangedAt:  statxTime(stx.Ctime),
	}

	if stx.Mask&unix.STATX_BTIME != 0 {
		info.CreatedAt = statxTime(stx.Btime)
	}

	return info, nil
}

func statFallback(path string) (Info, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Info{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}

	return Info{
		Mode:       fileMode(st.Mode),
		Size:       st.Size,
		UID:        st.Uid,
		GID:        st.Gid,
		Dev:        uint64(st.Dev), //nolint:unconvert // Dev is uint32 on some arches
		Ino:        st.Ino,
		Nlink:      uint64(st.Nlink), //nolint:unconvert // Nlink is uint32 on some arches
		AccessedAt: time.Unix(st.Atim.Unix()),
		ModifiedAt: time.Unix(st.Mtim.Unix()),
		ChangedAt:  time.Unix(st.Ctim.Unix()),
	}, nil
}

func statxTime(ts unix.StatxTimestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}
