package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/fserr"
	"github.com/tonimelisma/fxfer/internal/pathres"
)

// replace swaps the source in for the destination. Order:
//  1. merge the destination's metadata onto the source
//  2. move the destination to the backup path, if any
//  3. move the source onto the destination
//
// A failure in 3 moves the backup back; a failure anywhere restores the
// source's own metadata.
func (e *Engine) replace(ctx context.Context, p *plan) (Outcome, int64, error) {
	dest := p.dest.Native()

	md, original, err := e.mergeMetadata(p)
	if err != nil {
		return Failed, 0, err
	}

	outcome, written, err := e.swap(ctx, p, dest, md)
	if (err != nil || outcome != Completed) && original != nil {
		if revertErr := e.meta.Apply(p.src, original); revertErr != nil {
			e.logger.Warn("restoring source metadata failed",
				slog.String("src", p.src), slog.String("error", revertErr.Error()))
		}
	}

	return outcome, written, err
}

// swap runs steps 2 and 3. Without a journal, a guard on the backup path
// puts back whatever the backup step replaced there.
func (e *Engine) swap(ctx context.Context, p *plan, dest string, md *attrs.Metadata) (Outcome, int64, error) {
	backedUp := ""

	var guard *destGuard

	if p.opts.BackupPath != "" {
		backup, err := e.resolver.Resolve(p.opts.BackupPath, pathres.Relative)
		if err != nil {
			return Failed, 0, err
		}

		b := backup.Native()
		if b == p.src || b == dest {
			return Failed, 0, fmt.Errorf("transfer: backup path %s collides with the transfer: %w",
				b, fserr.ErrInvalidArgument)
		}

		if p.opts.Tx == nil {
			if guard, err = e.guardDest(b, true); err != nil {
				return Failed, 0, err
			}
		}

		outcome, renamed, err := e.backup(ctx, p, dest, b)
		if err != nil || outcome != Completed {
			guard.undo()
			return outcome, 0, err
		}

		guard.commit()

		if renamed {
			backedUp = b
		}
	}

	renamed, err := e.renameJournaled(ctx, p.opts.Tx, p.src, dest, true)

	outcome, written := Completed, int64(0)

	switch {
	case renamed:
	case !fserr.IsCrossDevice(err):
		outcome = Failed
	case !p.opts.Flags.Has(AllowCrossVolume):
		outcome = Failed
		err = fmt.Errorf("transfer: %s and %s are on different volumes: %w", p.src, p.dest.Path, err)
	default:
		outcome, written, err = e.moveAcross(ctx, p, true, md)
	}

	if err != nil || outcome != Completed {
		// A backup that could not be moved back is the only copy of the
		// destination, so it stays where it is.
		if backedUp == "" || e.restoreBackup(backedUp, dest) {
			guard.undo()
		}

		return outcome, written, err
	}

	guard.release()

	return Completed, written, nil
}

// backup moves the destination aside. It reports whether that was a rename
// (which must be undone on failure) as opposed to a copy.
func (e *Engine) backup(ctx context.Context, p *plan, dest, backup string) (Outcome, bool, error) {
	renamed, err := e.renameJournaled(ctx, p.opts.Tx, dest, backup, true)
	if renamed {
		return Completed, true, nil
	}

	if !fserr.IsCrossDevice(err) {
		return Failed, false, err
	}

	if !p.opts.Flags.Has(AllowCrossVolume) {
		return Failed, false, fmt.Errorf("transfer: backup %s is on a different volume: %w", backup, err)
	}

	destInfo, err := e.meta.Stat(dest)
	if err != nil {
		return Failed, false, err
	}

	// The callback sees one file's progress per call; the source copy that
	// follows is the one it reports on.
	silent := *p
	silent.gate = nil

	outcome, _, err := e.copyTo(ctx, &silent, dest, destInfo, backup, true, p.opts.Flags|PreserveTimestamps, nil)

	return outcome, false, err
}

func (e *Engine) restoreBackup(backup, dest string) bool {
	if err := e.renameFunc(backup, dest, false); err != nil {
		e.logger.Warn("restoring backup failed",
			slog.String("backup", backup),
			slog.String("dest", dest),
			slog.String("error", err.Error()),
		)

		return false
	}

	e.logger.Debug("restored backup", slog.String("backup", backup), slog.String("dest", dest))

	return true
}

// mergeMetadata applies the destination's metadata to the source. It
// returns what was applied and the source's previous metadata for revert.
// With IgnoreMetadataErrors a failure is logged and the replace goes on.
func (e *Engine) mergeMetadata(p *plan) (*attrs.Metadata, *attrs.Metadata, error) {
	dest := p.dest.Native()
	ignore := p.opts.Flags.Has(IgnoreMetadataErrors)

	md, err := e.meta.Capture(dest)
	if err != nil {
		if ignore {
			e.logger.Warn("ignoring unreadable destination metadata",
				slog.String("dest", dest), slog.String("error", err.Error()))

			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("transfer: reading metadata of %s: %w", dest, err)
	}

	original, err := e.meta.Capture(p.src)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: reading metadata of %s: %w", p.src, err)
	}

	if err := e.meta.Apply(p.src, md); err != nil {
		if ignore {
			e.logger.Warn("ignoring metadata merge failure",
				slog.String("src", p.src), slog.String("dest", dest), slog.String("error", err.Error()))

			return md, original, nil
		}

		if revertErr := e.meta.Apply(p.src, original); revertErr != nil {
			e.logger.Warn("restoring source metadata failed",
				slog.String("src", p.src), slog.String("error", revertErr.Error()))
		}

		return nil, nil, fmt.Errorf("transfer: carrying metadata of %s onto %s: %w", dest, p.src, err)
	}

	// The source's cached mode changed; the copy fallback reads it.
	if info, err := e.meta.Stat(p.src); err == nil {
		p.srcInfo = info
	}

	return md, original, nil
}
