package txn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	lockFileName    = "journal.lock"
	lockPermissions = 0o644
	dirPermissions  = 0o755
)

// ErrBusy is returned by Recover when another process has the journal open.
// Recovering under a live writer would undo its in-flight transaction.
var ErrBusy = errors.New("txn: journal is in use by another process")

// dirLock is an flock on a file inside the journal directory. Every open
// journal holds it shared; recovery upgrades to exclusive.
type dirLock struct {
	f *os.File
}

func acquireShared(dir string) (*dirLock, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("txn: creating journal directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockPermissions)
	if err != nil {
		return nil, fmt.Errorf("txn: opening lock file: %w", err)
	}

	// Blocks only while a recovery holds the lock exclusively.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		f.Close()

		return nil, fmt.Errorf("txn: locking %s: %w", path, err)
	}

	return &dirLock{f: f}, nil
}

// upgrade takes the lock exclusively without blocking. On failure the shared
// lock is kept.
func (l *dirLock) upgrade() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.EWOULDBLOCK) {
		// A failed conversion may have dropped the shared lock.
		if relockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_SH); relockErr != nil {
			return fmt.Errorf("txn: restoring shared lock: %w", relockErr)
		}

		return ErrBusy
	}

	return fmt.Errorf("txn: upgrading journal lock: %w", err)
}

func (l *dirLock) downgrade() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_SH); err != nil {
		return fmt.Errorf("txn: downgrading journal lock: %w", err)
	}

	return nil
}

func (l *dirLock) release() error {
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()

	return errors.Join(unlockErr, closeErr)
}
