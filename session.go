package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/config"
	"github.com/tonimelisma/fxfer/internal/entry"
	"github.com/tonimelisma/fxfer/internal/pathres"
	"github.com/tonimelisma/fxfer/internal/transfer"
	"github.com/tonimelisma/fxfer/internal/txn"
)

const day = 24 * time.Hour

// Session holds the components one command works with: the path resolver,
// the metadata cache, the transfer engine and, unless disabled, the journal.
type Session struct {
	Resolver *pathres.Resolver
	Cache    *entry.Cache
	Meta     *attrs.OS
	Engine   *transfer.Engine
	Journal  *txn.Journal // nil when journaling is disabled
	Logger   *slog.Logger
}

// NewSession wires a Session from resolved config. Transactions left open by
// a crashed run are rolled back first when no other fxfer has the journal
// open.
func NewSession(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*Session, error) {
	meta := attrs.NewOS(logger)
	cache := entry.NewCache(meta, logger)
	resolver := pathres.New(resolverOptions(&cfg.Paths))

	limiter, err := transfer.NewBandwidthLimiter(cfg.Transfers.BandwidthLimit, logger)
	if err != nil {
		return nil, err
	}

	engine := transfer.NewEngine(resolver, cache, meta, transfer.Config{
		ChunkSize:    cfg.Transfers.ChunkBytes(),
		Limiter:      limiter,
		MinFreeSpace: cfg.Transfers.MinFreeBytes(),
	}, logger)

	s := &Session{
		Resolver: resolver,
		Cache:    cache,
		Meta:     meta,
		Engine:   engine,
		Logger:   logger,
	}

	if !cfg.Journal.Enabled {
		logger.Debug("journal disabled")
		return s, nil
	}

	j, err := txn.Open(ctx, cfg.Journal.Dir, logger,
		txn.WithRestoreHook(func(path string) { cache.InvalidatePath(path) }),
		txn.WithRetention(time.Duration(cfg.Journal.RetentionDays)*day),
	)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	s.Journal = j

	n, err := j.Recover(ctx)

	switch {
	case errors.Is(err, txn.ErrBusy):
		logger.Debug("journal in use, skipping recovery")
	case err != nil:
		logger.Warn("journal recovery incomplete", slog.String("error", err.Error()))
	case n > 0:
		logger.Info("rolled back interrupted transactions", slog.Int("count", n))
	}

	return s, nil
}

// Close releases the journal.
func (s *Session) Close() error {
	if s.Journal == nil {
		return nil
	}

	return s.Journal.Close()
}

// Open resolves raw relative to the working directory and returns a handle
// for it. No I/O beyond the resolution.
func (s *Session) Open(raw string) (*entry.Handle, error) {
	c, err := s.Resolver.Resolve(raw, pathres.Relative)
	if err != nil {
		return nil, err
	}

	return s.Cache.Open(raw, c), nil
}

// InTx runs fn inside a journal transaction: committed when fn returns nil,
// rolled back otherwise. Journal I/O ignores ctx cancellation so an
// interrupted run still records its rollback. Without a journal fn gets a
// nil Tx.
func (s *Session) InTx(ctx context.Context, fn func(tx transfer.Tx) error) error {
	if s.Journal == nil {
		return fn(nil)
	}

	jctx := context.WithoutCancel(ctx)

	tx, err := s.Journal.Begin(jctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(jctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}

		s.Logger.Debug("transaction rolled back", slog.String("tx_id", tx.ID()))

		return err
	}

	return tx.Commit(jctx)
}

// destInto appends the base name of src when dest names an existing
// directory, the way cp and mv treat a directory target.
func destInto(src, dest string) string {
	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		return dest
	}

	return filepath.Join(dest, filepath.Base(filepath.Clean(src)))
}

func resolverOptions(p *config.PathsConfig) pathres.Options {
	return pathres.Options{
		Strict:            p.StrictNames,
		TrimTrailingSpace: p.TrimTrailingSpace,
		NormalizeUnicode:  p.NormalizeUnicode,
		EscapeLongPaths:   p.EscapeLongPaths,
		MaxPath:           p.MaxPath,
	}
}

// transferFlags folds config defaults and per-command flags into the
// engine's flag set.
func transferFlags(t *config.TransfersConfig) transfer.Flags {
	var f transfer.Flags

	if t.PreserveTimestamps {
		f |= transfer.PreserveTimestamps
	}

	if t.NoBuffering {
		f |= transfer.NoBuffering
	}

	if t.AllowCrossVolume {
		f |= transfer.AllowCrossVolume
	}

	return f
}

// outcomeError turns a non-completed outcome into errCancelled so the
// enclosing transaction rolls back and main exits 130.
func outcomeError(res *transfer.Result) error {
	if res.Outcome == transfer.Cancelled || res.Outcome == transfer.Stopped {
		return errCancelled
	}

	return nil
}
