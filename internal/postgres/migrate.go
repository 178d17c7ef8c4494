package postgres

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationLockKey = 72310

// Migrate applies pending embedded migrations in name order under an
// advisory lock. With dryRun the SQL is written to out instead.
func (db *DB) Migrate(ctx context.Context, dryRun bool, out io.Writer) error {
	entries, err := migrationEntries()
	if err != nil {
		return err
	}

	if dryRun {
		return writeMigrations(entries, out)
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to acquire migration lock").
			Mark(ierr.ErrDatabase)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}

	var appliedList []string
	if err := conn.SelectContext(ctx, &appliedList, `SELECT version FROM schema_migrations`); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	applied := make(map[string]bool, len(appliedList))
	for _, v := range appliedList {
		applied[v] = true
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version := strings.TrimSuffix(entry.Name(), ".sql")
		if applied[version] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}

		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return ierr.WithError(err).
				WithHintf("Migration %s failed", entry.Name()).
				Mark(ierr.ErrDatabase)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		if err := tx.Commit(); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		db.logger.Infow("applied migration", "version", version)
	}

	return nil
}

// PrintMigrations writes every embedded migration to out
func PrintMigrations(out io.Writer) error {
	entries, err := migrationEntries()
	if err != nil {
		return err
	}
	return writeMigrations(entries, out)
}

func migrationEntries() ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read embedded migrations").
			Mark(ierr.ErrSystem)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

func writeMigrations(entries []fs.DirEntry, out io.Writer) error {
	for _, entry := range entries {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}
		fmt.Fprintf(out, "-- %s\n%s\n", entry.Name(), content)
	}
	return nil
}
