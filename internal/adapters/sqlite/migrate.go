package sqlite

import (
    "context"
    "database/sql"
    "fmt"
    "io/fs"
    "sort"
    "strings"
    "time"
)

const migrationTable = "schema_migrations"

// applyMigrations runs every .sql file of migrationFS not applied yet, in
// name order, each in its own transaction.
func applyMigrations(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS) error {
    entries, err := fs.ReadDir(migrationFS, ".")
    if err != nil {
        return fmt.Errorf("read migrations dir: %w", err)
    }

    var sqlFiles []string
    for _, entry := range entries {
        if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
            sqlFiles = append(sqlFiles, entry.Name())
        }
    }
    sort.Strings(sqlFiles)

    _, err = sqlDB.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`, migrationTable))
    if err != nil {
        return fmt.Errorf("ensure migration table: %w", err)
    }

    for _, file := range sqlFiles {
        var applied int
        err := sqlDB.QueryRowContext(
            ctx,
            fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable),
            file,
        ).Scan(&applied)
        if err != nil {
            return fmt.Errorf("check migration %s: %w", file, err)
        }
        if applied > 0 {
            continue
        }

        content, err := fs.ReadFile(migrationFS, file)
        if err != nil {
            return fmt.Errorf("read migration %s: %w", file, err)
        }
        upSQL := upSection(string(content))
        if strings.TrimSpace(upSQL) == "" {
            continue
        }

        tx, err := sqlDB.BeginTx(ctx, nil)
        if err != nil {
            return fmt.Errorf("begin migration %s: %w", file, err)
        }
        if _, err := tx.ExecContext(ctx, upSQL); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("exec migration %s: %w", file, err)
        }
        if _, err := tx.ExecContext(
            ctx,
            fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
            file,
            time.Now().UTC().UnixMilli(),
        ); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("record migration %s: %w", file, err)
        }
        if err := tx.Commit(); err != nil {
            return fmt.Errorf("commit migration %s: %w", file, err)
        }
    }

    return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
    const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
    upIdx := strings.Index(content, upMarker)
    if upIdx == -1 {
        return content
    }
    content = content[upIdx+len(upMarker):]
    if downIdx := strings.Index(content, downMarker); downIdx != -1 {
        return content[:downIdx]
    }
    return content
}
