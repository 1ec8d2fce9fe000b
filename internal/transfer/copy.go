package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/fserr"
)

// partialPermissions keeps the temp file private until it is committed with
// its final mode.
const partialPermissions = 0o600

// partialPath returns a unique hidden sibling of dest. The name does not
// embed dest's base name so it stays within NAME_MAX.
func partialPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), ".fxfer-"+uuid.NewString()+".partial")
}

func (e *Engine) copy(ctx context.Context, p *plan) (Outcome, int64, error) {
	return e.copyTo(ctx, p, p.src, p.srcInfo, p.dest.Native(), p.opts.Overwrite == Overwrite, p.opts.Flags, nil)
}

// copyTo streams src into a partial file beside dest and commits it by
// rename. With replace unset the commit is exclusive. md, when set, is
// applied to the copy instead of the source's permission bits.
func (e *Engine) copyTo(
	ctx context.Context, p *plan, src string, srcInfo attrs.Info, dest string,
	replace bool, flags Flags, md *attrs.Metadata,
) (Outcome, int64, error) {
	if err := e.checkSpace(filepath.Dir(dest), srcInfo.Size); err != nil {
		return Failed, 0, err
	}

	partial := partialPath(dest)

	outcome, written, err := e.stream(ctx, p, src, srcInfo, partial, flags, md)
	if err != nil || outcome != Completed {
		e.removePartial(partial)
		return outcome, written, err
	}

	if err := e.commit(ctx, p.opts.Tx, partial, dest, replace); err != nil {
		e.removePartial(partial)
		return Failed, written, err
	}

	return Completed, written, nil
}

// stream copies content chunk by chunk, reporting progress after each one.
// Every descriptor it opens is closed before it returns.
func (e *Engine) stream(
	ctx context.Context, p *plan, src string, srcInfo attrs.Info, partial string,
	flags Flags, md *attrs.Metadata,
) (Outcome, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return Failed, 0, fserr.Translate("open", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, partialPermissions)
	if err != nil {
		return Failed, 0, fserr.Translate("create", partial, err)
	}
	defer out.Close()

	unbuffered := flags.Has(NoBuffering)
	if unbuffered {
		e.advise(beginUnbuffered(in), src)
		e.advise(beginUnbuffered(out), partial)
	}

	total := srcInfo.Size

	if total == 0 {
		if o := p.gate.report(0, 0); o != Completed {
			return o, 0, nil
		}
	}

	buf := make([]byte, e.chunkSize)

	var written int64

	for {
		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return Failed, written, fserr.Translate("write", partial, err)
			}

			if err := e.limiter.Wait(ctx, n); err != nil {
				return Failed, written, err
			}

			written += int64(n)
			total = max(total, written)

			if o := p.gate.report(written, total); o != Completed {
				return o, written, nil
			}
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return Failed, written, fserr.Translate("read", src, readErr)
		}
	}

	if err := out.Sync(); err != nil {
		return Failed, written, fserr.Translate("fsync", partial, err)
	}

	if err := e.finalizeMetadata(out, partial, srcInfo, flags, md); err != nil {
		return Failed, written, err
	}

	if unbuffered {
		e.advise(endUnbuffered(in), src)
		e.advise(endUnbuffered(out), partial)
	}

	if err := out.Close(); err != nil {
		return Failed, written, fserr.Translate("close", partial, err)
	}

	return Completed, written, nil
}

// finalizeMetadata sets mode (or the carried metadata) and, when asked,
// timestamps on the partial file before it becomes visible.
func (e *Engine) finalizeMetadata(
	out *os.File, partial string, srcInfo attrs.Info, flags Flags, md *attrs.Metadata,
) error {
	if md != nil {
		if err := e.meta.Apply(partial, md); err != nil {
			if err := e.metadataFailure(flags, partial, err); err != nil {
				return err
			}
		}
	} else if err := out.Chmod(srcInfo.Mode.Perm()); err != nil {
		return fserr.Translate("chmod", partial, err)
	}

	if flags.Has(PreserveTimestamps) {
		if err := e.meta.SetTimes(partial, srcInfo.AccessedAt, srcInfo.ModifiedAt); err != nil {
			if err := e.metadataFailure(flags, partial, err); err != nil {
				return err
			}
		}
	}

	return nil
}

// metadataFailure swallows err with a warning under IgnoreMetadataErrors.
func (e *Engine) metadataFailure(flags Flags, path string, err error) error {
	if flags.Has(IgnoreMetadataErrors) {
		e.logger.Warn("ignoring metadata error",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return fmt.Errorf("transfer: metadata of %s: %w", path, err)
}

// commit renames partial onto dest, journaling what it overwrites or
// creates.
func (e *Engine) commit(ctx context.Context, tx Tx, partial, dest string, replace bool) error {
	existed := false

	if replace {
		if _, err := os.Lstat(dest); err == nil {
			existed = true

			if err := record(tx, func(t Tx) error { return t.Preserve(ctx, dest) }); err != nil {
				return err
			}
		}
	}

	if err := e.rename(partial, dest, !replace); err != nil {
		return err
	}

	if existed {
		return nil
	}

	if err := record(tx, func(t Tx) error { return t.Created(ctx, dest) }); err != nil {
		// Unrecorded, the new file would survive a rollback.
		if rmErr := e.removeFunc(dest); rmErr != nil {
			e.logger.Warn("removing unjournaled destination failed",
				slog.String("dest", dest), slog.String("error", rmErr.Error()))
		}

		return err
	}

	return nil
}

func (e *Engine) removePartial(partial string) {
	if err := os.Remove(partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("removing partial file failed",
			slog.String("partial", partial),
			slog.String("error", err.Error()),
		)
	}
}

// advise logs a failed page cache hint. Hints never fail a transfer.
func (e *Engine) advise(err error, path string) {
	if err != nil {
		e.logger.Debug("page cache hint failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
