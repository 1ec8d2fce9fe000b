package transfer

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sys/unix"

	"github.com/tonimelisma/fxfer/internal/fserr"
)

// freeSpace returns bytes available to unprivileged users on the volume
// containing path (Bavail, not Bfree).
func freeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}

	return uint64(stat.Bavail) * uint64(stat.Bsize), nil //nolint:gosec // kernel guarantees non-negative values
}

// checkSpace refuses a copy of need bytes into dir that would leave less
// than the configured minimum free. Volumes that cannot report free space
// are not checked.
func (e *Engine) checkSpace(dir string, need int64) error {
	available, err := e.freeSpaceFunc(dir)
	if err != nil {
		e.logger.Debug("free space unavailable, skipping check",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)

		return nil
	}

	remaining := int64(min(available, uint64(math.MaxInt64))) - need
	if remaining >= e.minFree {
		return nil
	}

	e.logger.Warn("insufficient disk space",
		slog.String("dir", dir),
		slog.Int64("needed", need),
		slog.Int64("min_free", e.minFree),
	)

	return fmt.Errorf("transfer: copy needs %d bytes, %d available, minimum free %d: %w",
		need, available, e.minFree, fserr.Translate("statfs", dir, unix.ENOSPC))
}
