// Package transfer implements copy, move and replace of single files between
// canonical paths, with overwrite policy, timestamp and metadata
// preservation, cooperative cancellation through a progress callback, and
// consistent metadata cache invalidation afterwards.
//
// Content is never written to the destination name directly: it goes to a
// hidden sibling ".partial" file that is fsynced and then renamed into place,
// so a reader sees either the old destination or the complete new one.
// Renames within a volume are atomic and report no progress. Moves and
// replaces across volumes fall back to copy-then-delete when
// AllowCrossVolume is set, deleting the source only after the copy is
// committed.
//
// When Options.Tx is set, every destructive step is recorded in it first, and
// a failed or cancelled call is rolled back to the state it started from.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/entry"
	"github.com/tonimelisma/fxfer/internal/fserr"
	"github.com/tonimelisma/fxfer/internal/pathres"
)

// DefaultChunkSize is the copy buffer size and progress granularity.
const DefaultChunkSize = 64 * 1024

// Config holds engine-wide settings.
type Config struct {
	ChunkSize    int               // 0 = DefaultChunkSize
	Limiter      *BandwidthLimiter // nil = unlimited
	MinFreeSpace int64             // bytes a copy must leave free on the destination volume
}

// Engine executes transfers. It holds no per-transfer state, so one Engine
// serves concurrent transfers as long as they address different handles.
type Engine struct {
	resolver  *pathres.Resolver
	cache     *entry.Cache
	meta      MetadataStore
	limiter   *BandwidthLimiter
	chunkSize int
	minFree   int64
	logger    *slog.Logger

	// Injectable for fault injection in tests.
	renameFunc    func(oldpath, newpath string, exclusive bool) error
	accessFunc    func(path string, mode uint32) error
	removeFunc    func(path string) error
	linkFunc      func(oldname, newname string) error
	freeSpaceFunc func(path string) (uint64, error)
}

// NewEngine creates an Engine.
func NewEngine(
	resolver *pathres.Resolver, cache *entry.Cache, meta MetadataStore, cfg Config, logger *slog.Logger,
) *Engine {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	return &Engine{
		resolver:      resolver,
		cache:         cache,
		meta:          meta,
		limiter:       cfg.Limiter,
		chunkSize:     chunk,
		minFree:       cfg.MinFreeSpace,
		logger:        logger,
		renameFunc:    nativeRename,
		accessFunc:    unix.Access,
		removeFunc:    os.Remove,
		linkFunc:      os.Link,
		freeSpaceFunc: freeSpace,
	}
}

// plan is the resolved, validated input of one Transfer call.
type plan struct {
	opts       Options
	src        string
	srcInfo    attrs.Info
	dest       pathres.Canonical
	destRaw    string
	destExists bool
	gate       *progressGate
}

// Transfer copies, moves or replaces the entry behind src onto the path
// destRaw resolves to. The returned Result is never nil. A cancelled or
// stopped transfer returns a nil error with the matching Outcome.
//
// ctx carries logging and journal I/O only. Its cancellation is ignored:
// the progress callback is the one way to stop a transfer, so that a
// transfer is never abandoned between a destructive step and its record.
func (e *Engine) Transfer(
	ctx context.Context, src *entry.Handle, destRaw string, destFormat pathres.Format, opts Options,
) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	p, err := e.prepare(src, destRaw, destFormat, opts)
	if err != nil {
		return &Result{Outcome: Failed}, err
	}

	e.logger.Debug("transfer starting",
		slog.String("mode", opts.Mode.String()),
		slog.String("src", p.src),
		slog.String("dest", p.dest.Path),
		slog.Int64("size", p.srcInfo.Size),
	)

	savepoint := 0
	if opts.Tx != nil {
		savepoint = opts.Tx.Savepoint()
	}

	var (
		outcome Outcome
		written int64
	)

	switch opts.Mode {
	case Copy:
		outcome, written, err = e.copy(ctx, p)
	case Move:
		outcome, written, err = e.move(ctx, p)
	case Replace:
		outcome, written, err = e.replace(ctx, p)
	}

	if err != nil || outcome != Completed {
		e.abort(ctx, p, savepoint, outcome, err)

		if err != nil {
			return &Result{Outcome: Failed}, err
		}

		return &Result{Outcome: outcome}, nil
	}

	dest := e.finish(src, p)

	e.logger.Debug("transfer complete",
		slog.String("mode", opts.Mode.String()),
		slog.String("dest", p.dest.Path),
		slog.Int64("bytes", written),
	)

	return &Result{Outcome: Completed, Dest: dest, Bytes: written}, nil
}

// prepare resolves and validates everything before the first side effect.
func (e *Engine) prepare(src *entry.Handle, destRaw string, destFormat pathres.Format, opts Options) (*plan, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if src == nil {
		return nil, fmt.Errorf("transfer: nil source handle: %w", fserr.ErrInvalidArgument)
	}

	if src.State() == entry.Stale {
		return nil, fmt.Errorf("transfer: source %s was moved away: %w", src.Path(), fserr.ErrStaleHandle)
	}

	dest, err := e.resolver.Resolve(destRaw, destFormat)
	if err != nil {
		return nil, err
	}

	srcPath := src.Canonical().Native()

	srcInfo, err := e.meta.Stat(srcPath)
	if err != nil {
		return nil, err
	}

	if !srcInfo.Mode.IsRegular() {
		return nil, fmt.Errorf("transfer: source %s is not a regular file: %w", srcPath, fserr.ErrNotAFile)
	}

	if srcPath == dest.Native() {
		return nil, fmt.Errorf("transfer: source and destination are both %s: %w", srcPath, fserr.ErrInvalidArgument)
	}

	p := &plan{
		opts:    opts,
		src:     srcPath,
		srcInfo: srcInfo,
		dest:    dest,
		destRaw: destRaw,
		gate:    newProgressGate(opts.Progress),
	}

	destInfo, err := e.meta.Stat(dest.Native())

	switch {
	case err == nil:
		if destInfo.IsDir() {
			return nil, fmt.Errorf("transfer: destination %s is a directory: %w", dest.Path, fserr.ErrNotAFile)
		}

		p.destExists = true
	case errors.Is(err, fserr.ErrNotFound):
		if err := e.checkParent(dest); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if opts.Mode == Replace && !p.destExists {
		return nil, fmt.Errorf("transfer: replace target %s does not exist: %w", dest.Path, fserr.ErrNotFound)
	}

	if opts.Mode != Replace && p.destExists && opts.Overwrite == Fail {
		return nil, fmt.Errorf("transfer: %s: %w", dest.Path, fserr.ErrAlreadyExists)
	}

	return p, nil
}

func (e *Engine) checkParent(dest pathres.Canonical) error {
	parent, err := e.meta.Stat(dest.Dir())
	if err != nil {
		return fmt.Errorf("transfer: destination directory of %s: %w", dest.Path, err)
	}

	if !parent.IsDir() {
		return fmt.Errorf("transfer: destination parent %s is not a directory: %w", dest.Dir(), fserr.ErrNotFound)
	}

	return nil
}

// abort undoes journaled steps of a failed or cancelled call. Steps the
// engine compensated inline are idempotent under rollback.
func (e *Engine) abort(ctx context.Context, p *plan, savepoint int, outcome Outcome, cause error) {
	attrsList := []any{
		slog.String("mode", p.opts.Mode.String()),
		slog.String("src", p.src),
		slog.String("dest", p.dest.Path),
		slog.String("outcome", outcome.String()),
	}

	if cause != nil {
		attrsList = append(attrsList, slog.String("error", cause.Error()))
	}

	e.logger.Debug("transfer did not complete", attrsList...)

	if p.opts.Tx != nil {
		if err := p.opts.Tx.RollbackTo(ctx, savepoint); err != nil {
			e.logger.Warn("rolling back transfer failed",
				slog.String("dest", p.dest.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	// Whatever happened, cached views of both ends may be wrong now.
	e.cache.InvalidatePath(p.dest.Path)
	e.cache.InvalidatePath(p.src)
}

// finish updates the cache after a completed transfer and returns the
// destination handle.
func (e *Engine) finish(src *entry.Handle, p *plan) *entry.Handle {
	e.cache.InvalidatePath(p.dest.Path)

	if p.opts.Mode != Copy {
		e.cache.MarkStale(src)
		e.cache.MarkStalePath(p.src)
	}

	if p.opts.BackupPath != "" {
		if backup, err := e.resolver.Resolve(p.opts.BackupPath, pathres.Relative); err == nil {
			e.cache.InvalidatePath(backup.Path)
		}
	}

	return e.cache.Open(p.destRaw, p.dest)
}

// rename runs the injectable rename and translates its error.
func (e *Engine) rename(oldpath, newpath string, exclusive bool) error {
	if err := e.renameFunc(oldpath, newpath, exclusive); err != nil {
		return fserr.Translate("rename", oldpath, err)
	}

	return nil
}

// record calls fn when a journal is attached.
func record(tx Tx, fn func(Tx) error) error {
	if tx == nil {
		return nil
	}

	if err := fn(tx); err != nil {
		return fmt.Errorf("transfer: journaling: %w", err)
	}

	return nil
}
