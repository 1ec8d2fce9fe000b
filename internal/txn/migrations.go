package txn

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the journal schema up to date and returns its version.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) (int64, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("txn: migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return 0, fmt.Errorf("txn: migrations: %w", err)
	}

	applied, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("txn: applying migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("txn: reading schema version: %w", err)
	}

	if len(applied) > 0 {
		logger.Info("journal schema migrated",
			slog.Int("applied", len(applied)),
			slog.Int64("version", version),
		)
	}

	return version, nil
}
