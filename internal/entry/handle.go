// Package entry models a filesystem entry addressed by a canonical path and
// the lazily refreshed metadata snapshot it owns.
//
// Handles are created without I/O. Metadata is fetched on first access (or an
// explicit Refresh) through a Cache and kept until invalidated, either
// explicitly, by the transfer engine after a mutation, or by the fsnotify
// watcher when the entry changes out of band. A handle whose entry was moved
// away is marked Stale and refuses reads instead of serving old data.
package entry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tonimelisma/fxfer/internal/pathres"
)

// State records whether a handle still addresses the entry it was created
// for.
type State int

// Handle states.
const (
	Valid State = iota
	Stale
)

func (s State) String() string {
	if s == Stale {
		return "stale"
	}

	return "valid"
}

// Attributes is a bit set summarizing the entry's type and mode.
type Attributes uint32

// Attribute bits.
const (
	AttrReadOnly Attributes = 1 << iota
	AttrHidden
	AttrDirectory
	AttrNormal // plain file
	AttrDevice
	AttrNamedPipe
	AttrSocket
	AttrSymlink
)

var attributeNames = []struct {
	bit  Attributes
	name string
}{
	{AttrReadOnly, "readonly"},
	{AttrHidden, "hidden"},
	{AttrDirectory, "directory"},
	{AttrNormal, "normal"},
	{AttrDevice, "device"},
	{AttrNamedPipe, "pipe"},
	{AttrSocket, "socket"},
	{AttrSymlink, "symlink"},
}

// Has reports whether every bit in flag is set.
func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

func (a Attributes) String() string {
	var names []string

	for _, n := range attributeNames {
		if a.Has(n.bit) {
			names = append(names, n.name)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

// Snapshot is the cached metadata of one entry. Valid is false until the
// first successful refresh.
type Snapshot struct {
	Attributes Attributes
	Size       int64
	CreatedAt  time.Time // zero when the filesystem does not record it
	ModifiedAt time.Time
	AccessedAt time.Time
	Valid      bool
}

// Times groups the three timestamps of a snapshot.
type Times struct {
	Created  time.Time
	Modified time.Time
	Accessed time.Time
}

// cacheStatus distinguishes "never fetched" from "fetched and failed" so a
// failure is remembered until invalidation instead of re-queried per read.
type cacheStatus int

const (
	statusEmpty cacheStatus = iota
	statusCached
	statusFailed
)

// Handle addresses one entry. Its fields are only mutated through a Cache
// or the transfer engine; callers read them through accessors.
type Handle struct {
	mu       sync.Mutex
	original string
	path     pathres.Canonical
	state    State
	status   cacheStatus
	snap     Snapshot
	fetchErr error // sentinel error state, surfaced on field reads
}

// NewHandle creates a handle for an already-resolved path. No I/O is done.
func NewHandle(original string, path pathres.Canonical) *Handle {
	return &Handle{original: original, path: path}
}

// OriginalInput returns the raw input the handle was created from.
func (h *Handle) OriginalInput() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.original
}

// Canonical returns the resolved path.
func (h *Handle) Canonical() pathres.Canonical {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.path
}

// Path returns the bare canonical path.
func (h *Handle) Path() string {
	return h.Canonical().Path
}

// State reports whether the handle still addresses its entry.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s (%s)", h.Path(), h.State())
}

// invalidate drops the snapshot and any remembered failure.
func (h *Handle) invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = statusEmpty
	h.snap = Snapshot{}
	h.fetchErr = nil
}

func (h *Handle) markStale() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = Stale
	h.status = statusEmpty
	h.snap = Snapshot{}
	h.fetchErr = nil
}
