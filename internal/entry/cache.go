package entry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/fserr"
	"github.com/tonimelisma/fxfer/internal/pathres"
)

// Stater fetches OS metadata for a path. Satisfied by *attrs.OS.
type Stater interface {
	Stat(path string) (attrs.Info, error)
}

// Cache owns the snapshot lifecycle of every handle it opened. It tracks
// handles by canonical path so that invalidating a path reaches every handle
// addressing that entry. The registry is mutex-guarded because the watcher
// invalidates from its own goroutine; operations on a single handle are
// otherwise the caller's to serialize.
type Cache struct {
	stater Stater
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]map[*Handle]struct{}
}

// NewCache creates a Cache that refreshes snapshots through stater.
func NewCache(stater Stater, logger *slog.Logger) *Cache {
	return &Cache{
		stater:  stater,
		logger:  logger,
		handles: make(map[string]map[*Handle]struct{}),
	}
}

// Open creates and tracks a handle for path. No I/O is performed.
func (c *Cache) Open(original string, path pathres.Canonical) *Handle {
	h := NewHandle(original, path)
	c.track(h, path.Path)

	return h
}

// Release stops tracking h. Its snapshot stays readable but is no longer
// invalidated by path.
func (c *Cache) Release(h *Handle) {
	c.untrack(h, h.Path())
}

// Tracked returns the distinct canonical paths with at least one handle.
func (c *Cache) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.handles))
	for p := range c.handles {
		paths = append(paths, p)
	}

	return paths
}

// EnsureFresh fetches metadata if the handle holds none. A fetch failure is
// stored, not returned: it surfaces when a field is read. Only a stale
// handle makes EnsureFresh itself fail.
func (c *Cache) EnsureFresh(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Stale {
		return c.staleError(h)
	}

	if h.status != statusEmpty {
		return nil
	}

	info, err := c.stater.Stat(h.path.Native())
	if err != nil {
		h.status = statusFailed
		h.snap = Snapshot{}
		h.fetchErr = err

		c.logger.Debug("metadata fetch failed",
			slog.String("path", h.path.Path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	h.status = statusCached
	h.fetchErr = nil
	h.snap = snapshotFromInfo(h.path.Path, info)

	c.logger.Debug("metadata fetched",
		slog.String("path", h.path.Path),
		slog.Int64("size", info.Size),
	)

	return nil
}

// Invalidate clears the handle's snapshot unconditionally.
func (c *Cache) Invalidate(h *Handle) {
	h.invalidate()
}

// InvalidatePath clears the snapshot of every handle addressing path and
// returns how many were affected.
func (c *Cache) InvalidatePath(path string) int {
	c.mu.Lock()
	set := c.handles[path]
	targets := make([]*Handle, 0, len(set))

	for h := range set {
		targets = append(targets, h)
	}
	c.mu.Unlock()

	for _, h := range targets {
		h.invalidate()
	}

	if len(targets) > 0 {
		c.logger.Debug("invalidated cached metadata",
			slog.String("path", path),
			slog.Int("handles", len(targets)),
		)
	}

	return len(targets)
}

// Refresh invalidates and re-fetches, returning the fetch error directly.
func (c *Cache) Refresh(h *Handle) error {
	c.Invalidate(h)

	if err := c.EnsureFresh(h); err != nil {
		return err
	}

	_, err := c.Snapshot(h)

	return err
}

// Retarget points h at a new canonical path, re-keys it and drops its
// snapshot. Used when a transfer lands the entry somewhere new.
func (c *Cache) Retarget(h *Handle, path pathres.Canonical) {
	old := h.Path()
	c.untrack(h, old)

	h.mu.Lock()
	h.path = path
	h.state = Valid
	h.status = statusEmpty
	h.snap = Snapshot{}
	h.fetchErr = nil
	h.mu.Unlock()

	c.track(h, path.Path)
}

// MarkStale records that h no longer addresses an entry. Every later read
// fails with fserr.ErrStaleHandle.
func (c *Cache) MarkStale(h *Handle) {
	h.markStale()
	c.untrack(h, h.Path())
}

// MarkStalePath marks every handle addressing path stale and returns how
// many there were. A moved entry leaves no handle pointing at its old name.
func (c *Cache) MarkStalePath(path string) int {
	c.mu.Lock()
	set := c.handles[path]
	delete(c.handles, path)
	c.mu.Unlock()

	for h := range set {
		h.markStale()
	}

	if len(set) > 0 {
		c.logger.Debug("marked handles stale",
			slog.String("path", path),
			slog.Int("handles", len(set)),
		)
	}

	return len(set)
}

// Snapshot returns the handle's metadata, fetching it if needed.
func (c *Cache) Snapshot(h *Handle) (Snapshot, error) {
	if err := c.EnsureFresh(h); err != nil {
		return Snapshot{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Stale {
		return Snapshot{}, c.staleError(h)
	}

	if h.status == statusFailed {
		return Snapshot{}, fmt.Errorf("entry: reading metadata of %s: %w", h.path.Path, h.fetchErr)
	}

	return h.snap, nil
}

// Exists reports whether the entry is present. Not-found is the only fetch
// failure it absorbs.
func (c *Cache) Exists(h *Handle) (bool, error) {
	_, err := c.Snapshot(h)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fserr.ErrNotFound) {
		return false, nil
	}

	return false, err
}

// Size returns the entry's size in bytes. Directories fail with
// fserr.ErrNotAFile.
func (c *Cache) Size(h *Handle) (int64, error) {
	snap, err := c.Snapshot(h)
	if err != nil {
		return 0, err
	}

	if snap.Attributes.Has(AttrDirectory) {
		return 0, fmt.Errorf("entry: %s is a directory: %w", h.Path(), fserr.ErrNotAFile)
	}

	return snap.Size, nil
}

// Attributes returns the entry's attribute bits.
func (c *Cache) Attributes(h *Handle) (Attributes, error) {
	snap, err := c.Snapshot(h)
	if err != nil {
		return 0, err
	}

	return snap.Attributes, nil
}

// Times returns the entry's timestamps.
func (c *Cache) Times(h *Handle) (Times, error) {
	snap, err := c.Snapshot(h)
	if err != nil {
		return Times{}, err
	}

	return Times{Created: snap.CreatedAt, Modified: snap.ModifiedAt, Accessed: snap.AccessedAt}, nil
}

func (c *Cache) staleError(h *Handle) error {
	return fmt.Errorf("entry: %s was moved away: %w", h.path.Path, fserr.ErrStaleHandle)
}

func (c *Cache) track(h *Handle, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.handles[path]
	if !ok {
		set = make(map[*Handle]struct{})
		c.handles[path] = set
	}

	set[h] = struct{}{}
}

func (c *Cache) untrack(h *Handle, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.handles[path]
	if !ok {
		return
	}

	delete(set, h)

	if len(set) == 0 {
		delete(c.handles, path)
	}
}

// snapshotFromInfo derives attribute bits from the OS view of the entry.
func snapshotFromInfo(path string, info attrs.Info) Snapshot {
	var a Attributes

	mode := info.Mode

	switch {
	case mode.IsDir():
		a |= AttrDirectory
	case mode.IsRegular():
		a |= AttrNormal
	case mode&os.ModeDevice != 0:
		a |= AttrDevice
	case mode&os.ModeNamedPipe != 0:
		a |= AttrNamedPipe
	case mode&os.ModeSocket != 0:
		a |= AttrSocket
	case mode&os.ModeSymlink != 0:
		a |= AttrSymlink
	}

	if mode.Perm()&0o222 == 0 {
		a |= AttrReadOnly
	}

	if strings.HasPrefix(filepath.Base(path), ".") {
		a |= AttrHidden
	}

	return Snapshot{
		Attributes: a,
		Size:       info.Size,
		CreatedAt:  info.CreatedAt,
		ModifiedAt: info.ModifiedAt,
		AccessedAt: info.AccessedAt,
		Valid:      true,
	}
}
