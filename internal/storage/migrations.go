package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bunchhieng/gdaes/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies pending schema files in version order and returns
// the versions it applied. Files are named NNN_description.sql.
func runMigrations(ctx context.Context, db *sql.DB) ([]int, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	migrationFiles := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("get applied migrations: %w", err)
	}

	var ran []int
	for _, filename := range migrationFiles {
		prefix, _, _ := strings.Cut(filename, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if applied[version] {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return ran, fmt.Errorf("read migration %s: %w", filename, err)
		}

		if err := applyMigration(ctx, db, version, string(content)); err != nil {
			return ran, fmt.Errorf("migration %s: %w", filename, err)
		}
		ran = append(ran, version)
	}

	return ran, nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		version, model.FormatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

func getAppliedMigrations(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}
