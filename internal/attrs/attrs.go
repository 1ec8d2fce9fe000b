// Package attrs reads and writes the OS-reported metadata of a filesystem
// entry: mode, ownership, timestamps and extended attributes. It is the
// attribute collaborator the transfer engine uses to preserve timestamps on
// copies and to merge the replaced file's metadata onto its replacement, and
// the source the metadata cache refreshes snapshots from.
//
// Symbolic links are followed, never interpreted.
package attrs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tonimelisma/fxfer/internal/fserr"
)

// Info is a point-in-time view of an entry's inode.
type Info struct {
	Mode       os.FileMode
	Size       int64
	UID        uint32
	GID        uint32
	Dev        uint64
	Ino        uint64
	Nlink      uint64
	AccessedAt time.Time
	ModifiedAt time.Time
	ChangedAt  time.Time
	CreatedAt  time.Time // zero when the filesystem does not record birth time
}

// IsDir reports whether the entry is a directory.
func (i Info) IsDir() bool {
	return i.Mode.IsDir()
}

// Metadata is the portable subset of an entry's metadata that survives a
// replace: permission bits, ownership and extended attributes.
type Metadata struct {
	Mode   os.FileMode
	UID    uint32
	GID    uint32
	Xattrs map[string][]byte
}

// OS implements the attribute collaborator against the host kernel.
type OS struct {
	logger *slog.Logger
}

// NewOS creates an OS collaborator.
func NewOS(logger *slog.Logger) *OS {
	return &OS{logger: logger}
}

// Stat returns the entry's Info, following symbolic links.
func (o *OS) Stat(path string) (Info, error) {
	info, err := statPath(path)
	if err != nil {
		return Info{}, fserr.Translate("stat", path, err)
	}

	return info, nil
}

// SetTimes sets access and modification times. Birth time is assigned by
// the kernel and cannot be set on Linux or macOS.
func (o *OS) SetTimes(path string, accessed, modified time.Time) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(accessed.UnixNano()),
		unix.NsecToTimespec(modified.UnixNano()),
	}

	if err := unix.UtimesNano(path, ts); err != nil {
		return fserr.Translate("utimes", path, &os.PathError{Op: "utimes", Path: path, Err: err})
	}

	return nil
}

// Capture reads the metadata Apply can later write to another entry.
func (o *OS) Capture(path string) (*Metadata, error) {
	info, err := o.Stat(path)
	if err != nil {
		return nil, err
	}

	xattrs, err := listXattrs(path)
	if err != nil {
		// Filesystems without xattr support still have mode and owner.
		if !errors.Is(err, unix.ENOTSUP) && !errors.Is(err, unix.EOPNOTSUPP) {
			return nil, fserr.Translate("listxattr", path, err)
		}

		o.logger.Debug("extended attributes unsupported",
			slog.String("path", path), slog.String("error", err.Error()))
	}

	return &Metadata{
		Mode:   info.Mode.Perm(),
		UID:    info.UID,
		GID:    info.GID,
		Xattrs: xattrs,
	}, nil
}

// Apply writes md onto path. Every step is attempted; failures are joined
// so the caller sees all of them.
func (o *OS) Apply(path string, md *Metadata) error {
	if md == nil {
		return nil
	}

	var errs []error

	if err := os.Chmod(path, md.Mode); err != nil {
		errs = append(errs, fserr.Translate("chmod", path, err))
	}

	current, err := o.Stat(path)
	if err != nil {
		errs = append(errs, err)
	} else if current.UID != md.UID || current.GID != md.GID {
		if err := os.Lchown(path, int(md.UID), int(md.GID)); err != nil {
			errs = append(errs, fserr.Translate("chown", path, err))
		}
	}

	for name, value := range md.Xattrs {
		if err := unix.Setxattr(path, name, value, 0); err != nil {
			errs = append(errs, fserr.Translate("setxattr", path,
				&os.PathError{Op: "setxattr " + name, Path: path, Err: err}))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("attrs: applying metadata to %s: %w", path, errors.Join(errs...))
	}

	return nil
}

// fileMode converts a raw st_mode into an os.FileMode, mirroring what the
// os package does for os.Stat.
func fileMode(raw uint32) os.FileMode {
	mode := os.FileMode(raw & 0o777)

	switch raw & unix.S_IFMT {
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	}

	if raw&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}

	if raw&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}

	if raw&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}

	return mode
}
