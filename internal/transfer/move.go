package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/fserr"
)

func (e *Engine) move(ctx context.Context, p *plan) (Outcome, int64, error) {
	replace := p.opts.Overwrite == Overwrite

	renamed, err := e.renameJournaled(ctx, p.opts.Tx, p.src, p.dest.Native(), replace)
	if renamed {
		return Completed, 0, nil
	}

	if !fserr.IsCrossDevice(err) {
		return Failed, 0, err
	}

	if !p.opts.Flags.Has(AllowCrossVolume) {
		return Failed, 0, fmt.Errorf("transfer: %s and %s are on different volumes: %w", p.src, p.dest.Path, err)
	}

	return e.moveAcross(ctx, p, replace, nil)
}

// renameJournaled renames src onto dest and records it. A cross-device
// failure comes back unrenamed with the error, for the caller to fall back.
func (e *Engine) renameJournaled(ctx context.Context, tx Tx, src, dest string, replace bool) (bool, error) {
	if replace {
		if err := record(tx, func(t Tx) error { return t.Preserve(ctx, dest) }); err != nil {
			return false, err
		}
	}

	if err := e.rename(src, dest, !replace); err != nil {
		return false, err
	}

	if err := record(tx, func(t Tx) error { return t.Moved(ctx, src, dest) }); err != nil {
		// Unrecorded, the rename would survive a rollback.
		if backErr := e.renameFunc(dest, src, false); backErr != nil {
			e.logger.Warn("reverting unjournaled rename failed",
				slog.String("src", src), slog.String("dest", dest), slog.String("error", backErr.Error()))
		}

		return false, err
	}

	return true, nil
}

// moveAcross is the copy-then-delete fallback. The source is deleted only
// after the copy has been committed, and only after its directory was found
// writable so that a copy is never committed for a source that cannot go.
// Without a journal, a guard keeps the previous destination so that a
// failure after the commit still leaves both ends as they were.
func (e *Engine) moveAcross(ctx context.Context, p *plan, replace bool, md *attrs.Metadata) (Outcome, int64, error) {
	srcDir := filepath.Dir(p.src)
	dest := p.dest.Native()

	e.logger.Debug("rename crosses volumes, copying",
		slog.String("src", p.src), slog.String("dest", p.dest.Path))

	if err := e.accessFunc(srcDir, unix.W_OK); err != nil {
		return Failed, 0, fserr.Translate("access", srcDir, &os.PathError{Op: "access", Path: srcDir, Err: err})
	}

	var guard *destGuard

	if p.opts.Tx == nil {
		g, err := e.guardDest(dest, replace)
		if err != nil {
			return Failed, 0, err
		}

		guard = g
	}

	outcome, written, err := e.copyTo(ctx, p, p.src, p.srcInfo, dest, replace, p.opts.Flags|PreserveTimestamps, md)
	if err != nil || outcome != Completed {
		guard.undo()
		return outcome, written, err
	}

	guard.commit()

	if err := record(p.opts.Tx, func(t Tx) error { return t.Preserve(ctx, p.src) }); err != nil {
		guard.undo()
		return Failed, written, err
	}

	if err := e.removeFunc(p.src); err != nil {
		guard.undo()

		return Failed, written, fmt.Errorf("transfer: removing %s after copying it to %s: %w",
			p.src, p.dest.Path, fserr.Translate("remove", p.src, err))
	}

	guard.release()

	return Completed, written, nil
}

// destGuard stands in for the journal during one cross-volume fallback. It
// keeps the previous destination under a hidden sibling name until the move
// is known to have succeeded. All methods accept a nil guard.
type destGuard struct {
	e         *Engine
	dest      string
	stash     string // empty when the destination did not exist
	committed bool
}

func undoPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), ".fxfer-"+uuid.NewString()+".undo")
}

// guardDest hard-links an existing destination aside when replace allows it
// to be overwritten. Where hard links are refused the destination is renamed
// aside instead; undo puts it back either way.
func (e *Engine) guardDest(dest string, replace bool) (*destGuard, error) {
	g := &destGuard{e: e, dest: dest}

	if !replace {
		return g, nil
	}

	info, err := os.Lstat(dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return g, nil
		}

		return nil, fserr.Translate("lstat", dest, err)
	}

	// Nothing overwrites a directory, so there is nothing to keep.
	if info.IsDir() {
		return g, nil
	}

	stash := undoPath(dest)

	if err := e.linkFunc(dest, stash); err != nil {
		e.logger.Debug("hard link refused, moving destination aside",
			slog.String("dest", dest), slog.String("error", err.Error()))

		if err := e.rename(dest, stash, true); err != nil {
			return nil, err
		}
	}

	g.stash = stash

	return g, nil
}

func (g *destGuard) commit() {
	if g != nil {
		g.committed = true
	}
}

// undo restores the destination as it was before the fallback started.
func (g *destGuard) undo() {
	if g == nil {
		return
	}

	if g.stash != "" {
		// A rename between two links of one inode is a no-op, so the stash
		// may outlive a successful restore.
		if err := g.e.renameFunc(g.stash, g.dest, false); err != nil {
			g.e.logger.Warn("restoring destination failed",
				slog.String("dest", g.dest), slog.String("stash", g.stash), slog.String("error", err.Error()))

			return
		}

		g.release()

		return
	}

	if g.committed {
		if err := os.Remove(g.dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			g.e.logger.Warn("removing copied destination failed",
				slog.String("dest", g.dest), slog.String("error", err.Error()))
		}
	}
}

// release drops the stash once the move has succeeded.
func (g *destGuard) release() {
	if g == nil || g.stash == "" {
		return
	}

	if err := os.Remove(g.stash); err != nil && !errors.Is(err, fs.ErrNotExist) {
		g.e.logger.Warn("removing destination stash failed",
			slog.String("stash", g.stash), slog.String("error", err.Error()))
	}
}
