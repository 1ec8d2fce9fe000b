package txn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrFinished is returned when a committed or rolled back transaction is
// used again.
var ErrFinished = errors.New("txn: transaction already finished")

const stashPermissions = 0o600

// Tx is one transaction. It is not safe for concurrent use; parallel
// transfers each get their own.
type Tx struct {
	j    *Journal
	id   string
	seq  int
	done bool
}

// ID returns the transaction's identifier.
func (t *Tx) ID() string {
	return t.id
}

// Savepoint returns a marker for RollbackTo covering everything recorded so
// far.
func (t *Tx) Savepoint() int {
	return t.seq
}

// Created records that path did not exist before this transaction. Undo
// removes it.
func (t *Tx) Created(ctx context.Context, path string) error {
	return t.record(ctx, kindCreated, path, "")
}

// Moved records a rename from -> to. Undo renames it back.
func (t *Tx) Moved(ctx context.Context, from, to string) error {
	return t.record(ctx, kindMoved, to, from)
}

// Preserve stashes the entry currently at path so that undo can put it back.
// The stash is a hard link in the same directory, so it costs no copy and
// survives the original being overwritten by rename. Filesystems without
// hard links get a byte copy. A missing path is not an error: there is
// nothing to preserve.
func (t *Tx) Preserve(ctx context.Context, path string) error {
	if t.done {
		return ErrFinished
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("txn: inspecting %s: %w", path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("txn: cannot preserve directory %s", path)
	}

	stash := t.stashPath(path, t.seq+1)

	if err := t.j.linkFunc(path, stash); err != nil {
		t.j.logger.Debug("hard link unavailable, copying stash",
			slog.String("path", path), slog.String("error", err.Error()))

		if err := copyFile(path, stash, info.Mode().Perm()); err != nil {
			return fmt.Errorf("txn: stashing %s: %w", path, err)
		}
	}

	if err := t.record(ctx, kindPreserved, path, stash); err != nil {
		os.Remove(stash)
		return err
	}

	return nil
}

// RollbackTo undoes everything recorded after savepoint, newest first. Undo
// steps are idempotent, so a rollback that fails part way can be retried.
func (t *Tx) RollbackTo(ctx context.Context, savepoint int) error {
	if t.done {
		return ErrFinished
	}

	ops, err := t.opsAfter(ctx, savepoint)
	if err != nil {
		return err
	}

	var errs []error

	for _, op := range ops {
		if err := t.undo(op); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("txn: rolling back %s: %w", t.id, errors.Join(errs...))
	}

	if _, err := t.j.db.ExecContext(ctx, sqlDeleteOpsAfter, t.id, savepoint); err != nil {
		return fmt.Errorf("txn: clearing undone operations: %w", err)
	}

	t.seq = savepoint

	return nil
}

// Rollback undoes the whole transaction and closes it.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.RollbackTo(ctx, 0); err != nil {
		return err
	}

	t.j.logger.Info("transaction rolled back", slog.String("tx_id", t.id))

	return t.finish(ctx, StateRolledBack)
}

// Commit makes the transaction permanent: stashes are deleted and the undo
// records dropped.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrFinished
	}

	ops, err := t.opsAfter(ctx, 0)
	if err != nil {
		return err
	}

	for _, op := range ops {
		if op.kind != kindPreserved {
			continue
		}

		if err := os.Remove(op.aux); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.j.logger.Warn("could not remove stash",
				slog.String("stash", op.aux), slog.String("error", err.Error()))
		}
	}

	if _, err := t.j.db.ExecContext(ctx, sqlDeleteOpsAfter, t.id, 0); err != nil {
		return fmt.Errorf("txn: clearing committed operations: %w", err)
	}

	t.j.logger.Debug("transaction committed",
		slog.String("tx_id", t.id), slog.Int("operations", len(ops)))

	return t.finish(ctx, StateCommitted)
}

type operation struct {
	seq  int
	kind string
	path string
	aux  string
}

func (t *Tx) record(ctx context.Context, kind, path, aux string) error {
	if t.done {
		return ErrFinished
	}

	seq := t.seq + 1

	if _, err := t.j.db.ExecContext(ctx, sqlInsertOp,
		t.id, seq, kind, path, aux, t.j.nowFunc().UnixNano()); err != nil {
		return fmt.Errorf("txn: recording %s of %s: %w", kind, path, err)
	}

	t.seq = seq

	return nil
}

func (t *Tx) opsAfter(ctx context.Context, savepoint int) ([]operation, error) {
	rows, err := t.j.db.QueryContext(ctx, sqlOpsAfter, t.id, savepoint)
	if err != nil {
		return nil, fmt.Errorf("txn: loading operations of %s: %w", t.id, err)
	}
	defer rows.Close()

	var ops []operation

	for rows.Next() {
		var op operation
		if err := rows.Scan(&op.seq, &op.kind, &op.path, &op.aux); err != nil {
			return nil, fmt.Errorf("txn: scanning operation: %w", err)
		}

		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("txn: iterating operations: %w", err)
	}

	return ops, nil
}

func (t *Tx) undo(op operation) error {
	switch op.kind {
	case kindCreated:
		if err := os.Remove(op.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing created %s: %w", op.path, err)
		}

		t.j.restored(op.path)

	case kindPreserved:
		if err := os.Rename(op.aux, op.path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				t.j.logger.Warn("stash already gone", slog.String("stash", op.aux))
				return nil
			}

			return fmt.Errorf("restoring %s: %w", op.path, err)
		}

		t.j.restored(op.path)

	case kindMoved:
		// path is the destination, aux the original location.
		if _, err := os.Lstat(op.path); errors.Is(err, fs.ErrNotExist) {
			if _, err := os.Lstat(op.aux); err == nil {
				return nil
			}
		}

		if err := os.Rename(op.path, op.aux); err != nil {
			return fmt.Errorf("moving %s back to %s: %w", op.path, op.aux, err)
		}

		t.j.restored(op.path)
		t.j.restored(op.aux)

	default:
		return fmt.Errorf("unknown operation kind %q", op.kind)
	}

	t.j.logger.Debug("undid operation",
		slog.String("tx_id", t.id), slog.String("kind", op.kind), slog.String("path", op.path))

	return nil
}

func (t *Tx) finish(ctx context.Context, state string) error {
	if _, err := t.j.db.ExecContext(ctx, sqlFinishTx, state, t.j.nowFunc().UnixNano(), t.id); err != nil {
		return fmt.Errorf("txn: marking %s %s: %w", t.id, state, err)
	}

	t.done = true

	return nil
}

func (t *Tx) stashPath(path string, seq int) string {
	short := t.id
	if len(short) > 8 {
		short = short[:8]
	}

	return filepath.Join(filepath.Dir(path), fmt.Sprintf(".fxfer-%s-%d.stash", short, seq))
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, stashPermissions)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}

	if err = out.Chmod(perm); err != nil {
		return err
	}

	if err = out.Sync(); err != nil {
		return err
	}

	return out.Close()
}
