// Package txn is a crash-safe undo journal for filesystem transfers.
//
// A transaction records, before or right after each destructive step, enough
// to reverse it: entries that were created, entries that were about to be
// overwritten (stashed as a hard link next to the original), and renames.
// Rolling back replays the records in reverse. The records live in a SQLite
// database so that a transaction interrupted by a crash can be rolled back by
// the next process through Recover.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// DatabaseFileName is the journal database inside the journal directory.
const DatabaseFileName = "journal.db"

// Transaction states as stored in the database.
const (
	StateOpen       = "open"
	StateCommitted  = "committed"
	StateRolledBack = "rolled_back"
)

const (
	sqlInsertTx = `INSERT INTO transactions (id, state, pid, started_at) VALUES (?, 'open', ?, ?)`

	sqlFinishTx = `UPDATE transactions SET state = ?, finished_at = ? WHERE id = ?`

	sqlInsertOp = `INSERT INTO operations (tx_id, seq, kind, path, aux, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlOpsAfter = `SELECT seq, kind, path, aux FROM operations
		WHERE tx_id = ? AND seq > ? ORDER BY seq DESC`

	sqlDeleteOpsAfter = `DELETE FROM operations WHERE tx_id = ? AND seq > ?`

	sqlMaxSeq = `SELECT COALESCE(MAX(seq), 0) FROM operations WHERE tx_id = ?`

	sqlListTx = `SELECT t.id, t.state, t.pid, t.started_at, t.finished_at,
		(SELECT COUNT(*) FROM operations o WHERE o.tx_id = t.id)
		FROM transactions t ORDER BY t.started_at DESC, t.id`

	sqlOpenTxIDs = `SELECT id FROM transactions WHERE state = 'open' ORDER BY started_at`

	sqlPruneFinished = `DELETE FROM transactions WHERE state != 'open' AND finished_at < ?`
)

// Operation kinds.
const (
	kindCreated   = "created"
	kindPreserved = "preserved"
	kindMoved     = "moved"
)

// Record summarizes one transaction for listing.
type Record struct {
	ID         string
	State      string
	PID        int
	StartedAt  time.Time
	FinishedAt time.Time // zero while open
	Operations int
}

// Option configures a Journal.
type Option func(*Journal)

// WithRestoreHook registers fn to be called with every path a rollback
// touches, so cached metadata for it can be dropped.
func WithRestoreHook(fn func(path string)) Option {
	return func(j *Journal) {
		j.onRestore = fn
	}
}

// WithRetention sets how long finished transactions are kept for listing.
// Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(j *Journal) {
		j.retention = d
	}
}

// Journal owns the database and the directory lock.
type Journal struct {
	db        *sql.DB
	dir       string
	lock      *dirLock
	logger    *slog.Logger
	onRestore func(path string)
	retention time.Duration
	nowFunc   func() time.Time // injectable for deterministic tests
	linkFunc  func(oldname, newname string) error
}

// Open opens (creating if needed) the journal in dir and takes the shared
// directory lock.
func Open(ctx context.Context, dir string, logger *slog.Logger, opts ...Option) (*Journal, error) {
	lock, err := acquireShared(dir)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, DatabaseFileName)

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("txn: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	version, err := migrate(ctx, db, logger)
	if err != nil {
		db.Close()
		lock.release()

		return nil, err
	}

	j := &Journal{
		db:       db,
		dir:      dir,
		lock:     lock,
		logger:   logger,
		nowFunc:  time.Now,
		linkFunc: os.Link,
	}

	for _, opt := range opts {
		opt(j)
	}

	logger.Debug("journal opened",
		slog.String("db_path", dbPath),
		slog.Int64("schema_version", version),
	)

	return j, nil
}

// Close releases the database and the lock. Open transactions stay open in
// the database and are rolled back by a later Recover.
func (j *Journal) Close() error {
	dbErr := j.db.Close()
	lockErr := j.lock.release()

	return errors.Join(dbErr, lockErr)
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Begin starts a new transaction.
func (j *Journal) Begin(ctx context.Context) (*Tx, error) {
	id := uuid.New().String()

	if _, err := j.db.ExecContext(ctx, sqlInsertTx, id, os.Getpid(), j.nowFunc().UnixNano()); err != nil {
		return nil, fmt.Errorf("txn: beginning transaction: %w", err)
	}

	j.logger.Debug("transaction started", slog.String("tx_id", id))

	return &Tx{j: j, id: id}, nil
}

// List returns every transaction still in the database, newest first.
func (j *Journal) List(ctx context.Context) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, sqlListTx)
	if err != nil {
		return nil, fmt.Errorf("txn: listing transactions: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			r        Record
			started  int64
			finished sql.NullInt64
		)

		if err := rows.Scan(&r.ID, &r.State, &r.PID, &started, &finished, &r.Operations); err != nil {
			return nil, fmt.Errorf("txn: scanning transaction row: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("txn: iterating transaction rows: %w", err)
	}

	return records, nil
}

// Recover rolls back every transaction left open by a process that died. It
// needs the journal to itself and returns ErrBusy otherwise.
func (j *Journal) Recover(ctx context.Context) (int, error) {
	if err := j.lock.upgrade(); err != nil {
		return 0, err
	}

	defer func() {
		if err := j.lock.downgrade(); err != nil {
			j.logger.Warn("journal lock downgrade failed", slog.String("error", err.Error()))
		}
	}()

	ids, err := j.openIDs(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error

	recovered := 0

	for _, id := range ids {
		tx := &Tx{j: j, id: id}

		j.logger.Info("recovering interrupted transaction", slog.String("tx_id", id))

		if err := tx.Rollback(ctx); err != nil {
			errs = append(errs, err)
			continue
		}

		recovered++
	}

	if err := j.prune(ctx); err != nil {
		errs = append(errs, err)
	}

	return recovered, errors.Join(errs...)
}

func (j *Journal) openIDs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, sqlOpenTxIDs)
	if err != nil {
		return nil, fmt.Errorf("txn: querying open transactions: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("txn: scanning transaction id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("txn: iterating transaction ids: %w", err)
	}

	return ids, nil
}

// prune drops finished transactions older than the retention window.
func (j *Journal) prune(ctx context.Context) error {
	if j.retention <= 0 {
		return nil
	}

	cutoff := j.nowFunc().Add(-j.retention).UnixNano()

	res, err := j.db.ExecContext(ctx, sqlPruneFinished, cutoff)
	if err != nil {
		return fmt.Errorf("txn: pruning finished transactions: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		j.logger.Debug("pruned finished transactions", slog.Int64("count", n))
	}

	return nil
}

func (j *Journal) restored(path string) {
	if j.onRestore != nil {
		j.onRestore(path)
	}
}
