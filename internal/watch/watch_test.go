package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/entry"
	"github.com/tonimelisma/fxfer/internal/pathres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockFsWatcher struct {
	mu      sync.Mutex
	added   []string
	removed []string
	events  chan fsnotify.Event
	errs    chan error
}

func newMockFsWatcher() *mockFsWatcher {
	return &mockFsWatcher{
		events: make(chan fsnotify.Event, 10),
		errs:   make(chan error, 10),
	}
}

func (m *mockFsWatcher) Add(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, name)

	return nil
}

func (m *mockFsWatcher) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, name)

	return nil
}

func (m *mockFsWatcher) Close() error                  { close(m.events); close(m.errs); return nil }
func (m *mockFsWatcher) Events() <-chan fsnotify.Event { return m.events }
func (m *mockFsWatcher) Errors() <-chan error          { return m.errs }

type countingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (c *countingInvalidator) InvalidatePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)

	return 1
}

func (c *countingInvalidator) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.paths...)
}

func TestWatch_SharesDirectoryWatch(t *testing.T) {
	m := newMockFsWatcher()
	inv := newWithWatcher(m, &countingInvalidator{}, testLogger())

	require.NoError(t, inv.Watch("/d/a"))
	require.NoError(t, inv.Watch("/d/b"))
	require.NoError(t, inv.Watch("/d/a"))
	assert.Equal(t, []string{"/d"}, m.added)

	require.NoError(t, inv.Unwatch("/d/a"))
	assert.Empty(t, m.removed)

	require.NoError(t, inv.Unwatch("/d/b"))
	assert.Equal(t, []string{"/d"}, m.removed)

	require.NoError(t, inv.Unwatch("/d/never"))
}

func TestRun_InvalidatesOnlyWatchedPaths(t *testing.T) {
	m := newMockFsWatcher()
	cache := &countingInvalidator{}
	inv := newWithWatcher(m, cache, testLogger())

	require.NoError(t, inv.Watch("/d/a"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- inv.Run(ctx) }()

	m.events <- fsnotify.Event{Name: "/d/other", Op: fsnotify.Write}
	m.events <- fsnotify.Event{Name: "/d/a", Op: fsnotify.Write}

	select {
	case p := <-inv.Changes():
		assert.Equal(t, "/d/a", p)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	assert.Equal(t, []string{"/d/a"}, cache.seen())

	cancel()
	require.NoError(t, <-done)
}

func TestRun_BacksOffOnErrors(t *testing.T) {
	m := newMockFsWatcher()
	inv := newWithWatcher(m, &countingInvalidator{}, testLogger())

	var (
		mu    sync.Mutex
		slept []time.Duration
	)

	inv.sleepFunc = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)

		return nil
	}

	m.errs <- errors.New("overflow")
	m.errs <- errors.New("overflow")

	done := make(chan error, 1)
	go func() { done <- inv.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(slept) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, inv.Close())
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{errInitBackoff, errInitBackoff * errBackoffMult}, slept)
}

func TestInvalidator_RealFilesystem(t *testing.T) {
	logger := testLogger()
	cache := entry.NewCache(attrs.NewOS(logger), logger)

	dir := t.TempDir()
	path := filepath.Join(dir, "watched")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	// Canonical form of the temp dir, as the watcher reports it.
	c, err := pathres.New(pathres.DefaultOptions()).Resolve(path, pathres.AbsoluteShort)
	require.NoError(t, err)

	h := cache.Open(path, c)

	size, err := cache.Size(h)
	require.NoError(t, err)
	require.Equal(t, int64(1), size)

	inv, err := New(cache, logger)
	require.NoError(t, err)

	require.NoError(t, inv.Watch(c.Path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- inv.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0o600))

	select {
	case <-inv.Changes():
	case <-time.After(10 * time.Second):
		t.Fatal("no change observed")
	}

	size, err = cache.Size(h)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	require.NoError(t, inv.Close())
	<-done
}
