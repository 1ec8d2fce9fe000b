package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/tonimelisma/fxfer/internal/attrs"
	"github.com/tonimelisma/fxfer/internal/entry"
	"github.com/tonimelisma/fxfer/internal/fserr"
)

// Mode selects the kind of transfer.
type Mode int

// Transfer modes.
const (
	Copy Mode = iota
	Move
	Replace
)

func (m Mode) String() string {
	switch m {
	case Copy:
		return "copy"
	case Move:
		return "move"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// OverwritePolicy decides what happens when the destination already exists.
// Replace always overwrites and ignores it.
type OverwritePolicy int

// Overwrite policies.
const (
	Fail OverwritePolicy = iota
	Overwrite
)

// Flags modify a transfer.
type Flags uint8

// Transfer flags.
const (
	PreserveTimestamps Flags = 1 << iota
	NoBuffering
	AllowCrossVolume
	IgnoreMetadataErrors
)

// Has reports whether every bit in flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Options configures one Transfer call.
type Options struct {
	Mode      Mode
	Overwrite OverwritePolicy
	Flags     Flags

	// BackupPath receives the replaced destination. Replace only; empty
	// means no backup. Resolved like a relative path.
	BackupPath string

	Progress ProgressFunc // nil = no reports
	Tx       Tx           // nil = no journal
}

func (o Options) validate() error {
	if o.Mode < Copy || o.Mode > Replace {
		return fmt.Errorf("transfer: unknown mode %d: %w", int(o.Mode), fserr.ErrInvalidArgument)
	}

	if o.Overwrite != Fail && o.Overwrite != Overwrite {
		return fmt.Errorf("transfer: unknown overwrite policy %d: %w", int(o.Overwrite), fserr.ErrInvalidArgument)
	}

	if o.BackupPath != "" && o.Mode != Replace {
		return fmt.Errorf("transfer: backup path is only valid for replace: %w", fserr.ErrInvalidArgument)
	}

	return nil
}

// Tx records destructive steps so they can be undone. Satisfied by
// *txn.Tx. Every method is called before the step it protects completes,
// except Created and Moved which are recorded once the step succeeded.
type Tx interface {
	Savepoint() int
	RollbackTo(ctx context.Context, savepoint int) error
	Created(ctx context.Context, path string) error
	Preserve(ctx context.Context, path string) error
	Moved(ctx context.Context, from, to string) error
}

// MetadataStore is the attribute collaborator. Satisfied by *attrs.OS.
type MetadataStore interface {
	Stat(path string) (attrs.Info, error)
	SetTimes(path string, accessed, modified time.Time) error
	Capture(path string) (*attrs.Metadata, error)
	Apply(path string, md *attrs.Metadata) error
}

// Result reports how a transfer ended. Dest is set only when Outcome is
// Completed.
type Result struct {
	Outcome Outcome
	Dest    *entry.Handle
	Bytes   int64 // content bytes written; zero for pure renames
}
