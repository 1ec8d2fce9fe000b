// Package watch invalidates cached entry metadata when the entry changes
// behind the engine's back. It watches parent directories with fsnotify,
// since watching a file directly loses the watch when the file is replaced
// by rename.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	errInitBackoff = 100 * time.Millisecond
	errMaxBackoff  = 5 * time.Second
	errBackoffMult = 2

	notifyBuffer = 64
)

// FsWatcher is the subset of *fsnotify.Watcher the invalidator uses.
type FsWatcher interface {
	Add(name string) error
	Remove(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// PathInvalidator drops cached metadata for a path. Satisfied by
// *entry.Cache.
type PathInvalidator interface {
	InvalidatePath(path string) int
}

type fsnotifyWrapper struct {
	w *fsnotify.Watcher
}

func (f *fsnotifyWrapper) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWrapper) Remove(name string) error      { return f.w.Remove(name) }
func (f *fsnotifyWrapper) Close() error                  { return f.w.Close() }
func (f *fsnotifyWrapper) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWrapper) Errors() <-chan error          { return f.w.Errors }

// Invalidator maps filesystem events on watched paths to cache invalidation.
type Invalidator struct {
	watcher FsWatcher
	cache   PathInvalidator
	logger  *slog.Logger
	notify  chan string

	mu    sync.Mutex
	paths map[string]struct{}
	dirs  map[string]int // watched directory -> number of watched paths in it

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates an Invalidator backed by a real fsnotify watcher.
func New(cache PathInvalidator, logger *slog.Logger) (*Invalidator, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}

	return newWithWatcher(&fsnotifyWrapper{w: w}, cache, logger), nil
}

func newWithWatcher(w FsWatcher, cache PathInvalidator, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		watcher:   w,
		cache:     cache,
		logger:    logger,
		notify:    make(chan string, notifyBuffer),
		paths:     make(map[string]struct{}),
		dirs:      make(map[string]int),
		sleepFunc: sleepCtx,
	}
}

// Watch starts invalidating path on change. path must be canonical.
func (inv *Invalidator) Watch(path string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.paths[path]; ok {
		return nil
	}

	dir := filepath.Dir(path)

	if inv.dirs[dir] == 0 {
		if err := inv.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch: watching %s: %w", dir, err)
		}
	}

	inv.dirs[dir]++
	inv.paths[path] = struct{}{}

	inv.logger.Debug("watching path", slog.String("path", path))

	return nil
}

// Unwatch stops watching path.
func (inv *Invalidator) Unwatch(path string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.paths[path]; !ok {
		return nil
	}

	delete(inv.paths, path)

	dir := filepath.Dir(path)

	inv.dirs[dir]--
	if inv.dirs[dir] > 0 {
		return nil
	}

	delete(inv.dirs, dir)

	if err := inv.watcher.Remove(dir); err != nil {
		return fmt.Errorf("watch: unwatching %s: %w", dir, err)
	}

	return nil
}

// Changes delivers each invalidated path. Deliveries are dropped when the
// reader falls behind; the invalidation itself never is.
func (inv *Invalidator) Changes() <-chan string {
	return inv.notify
}

// Run processes events until ctx is cancelled or the watcher closes.
func (inv *Invalidator) Run(ctx context.Context) error {
	backoff := errInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-inv.watcher.Events():
			if !ok {
				return nil
			}

			inv.handle(ev)

			backoff = errInitBackoff

		case err, ok := <-inv.watcher.Errors():
			if !ok {
				return nil
			}

			inv.logger.Warn("filesystem watcher error",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)

			if sleepErr := inv.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil
			}

			backoff = min(backoff*errBackoffMult, errMaxBackoff)
		}
	}
}

// Close stops the underlying watcher, ending Run.
func (inv *Invalidator) Close() error {
	return inv.watcher.Close()
}

func (inv *Invalidator) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	inv.mu.Lock()
	_, watched := inv.paths[path]
	inv.mu.Unlock()

	if !watched {
		return
	}

	n := inv.cache.InvalidatePath(path)

	inv.logger.Debug("entry changed",
		slog.String("path", path),
		slog.String("op", ev.Op.String()),
		slog.Int("handles", n),
	)

	select {
	case inv.notify <- path:
	default:
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
