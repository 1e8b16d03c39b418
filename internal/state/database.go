package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the sqlite connection backing the registry recovery cache.
// Grounded on the teacher's internal/state/database.go: same WAL-mode
// sql.Open/SetMaxOpenConns(1) shape, schema reduced to the one table this
// spec actually needs.
type Database struct {
	db     *sql.DB
	dbPath string
}

// NewDatabase opens (creating if absent) the sqlite file at dbPath.
func NewDatabase(dbPath string) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writers; the registry sync path is
	// the only writer and it's already serialized by Manager.mu.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	database := &Database{db: db, dbPath: dbPath}
	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// GetDB returns the underlying database connection.
func (d *Database) GetDB() *sql.DB { return d.db }

// initSchema creates the single cameras table this cache needs: the
// registry's own Camera/Profile shape, kept as a JSON blob rather than
// normalized, since the cache is write-through and never queried by
// field — only bulk-loaded on startup and upserted on change.
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cameras (
		ip         TEXT NOT NULL,
		port       INTEGER NOT NULL,
		data       TEXT NOT NULL, -- JSON-encoded camera.Camera
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (ip, port)
	);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
