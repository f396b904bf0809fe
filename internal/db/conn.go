package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver "sqlite3" (CGO)
	_ "modernc.org/sqlite"          // SQLite driver "sqlite" (pure Go, no CGO)
)

// DefaultDriver is the pure Go SQLite driver.
const DefaultDriver = "sqlite"

// Open opens a SQLite database connection and initializes the schema.
// The database file will be created if it doesn't exist. driver is
// "sqlite" (modernc.org/sqlite) or "sqlite3" (mattn/go-sqlite3).
func Open(ctx context.Context, driver, path string) (*sql.DB, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
