package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/franz/music-journeys/internal/util"
)

const (
	currentSchemaVersion = 2
)

// Store is the single-file warehouse
type Store struct {
	db   *sqlx.DB
	path string
}

// Queries runs repository statements against either the database or an open transaction
type Queries struct {
	ext sqlx.ExtContext
}

// Open opens or creates the warehouse at the given path and applies migrations
func Open(path string) (*Store, error) {
	// WAL keeps the file readable by inspection tools while a load is running
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, path: path}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// OpenExisting opens a warehouse that must already exist on disk
func OpenExisting(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("warehouse %s: %w (run 'mjw build' first)", path, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat warehouse: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("warehouse %s is not a regular file", path)
	}
	return Open(path)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the warehouse file path
func (s *Store) Path() string {
	return s.path
}

// Queries returns a repository bound to the database outside any transaction
func (s *Store) Queries() *Queries {
	return &Queries{ext: s.db}
}

// Transaction executes fn within one transaction. Any error from fn or from
// commit rolls back every write made through q.
func (s *Store) Transaction(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", util.ErrTransaction, err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{ext: tx}); err != nil {
		return fmt.Errorf("%w: rolled back: %w", util.ErrTransaction, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", util.ErrTransaction, err)
	}

	return nil
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var result string
	if err := s.db.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// SchemaVersion returns the latest applied migration
func (s *Store) SchemaVersion() (int, error) {
	return s.getSchemaVersion()
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Schema v1 - warehouse tables with explicit composite keys
	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Schema v2 - title-match audit flags, narrative columns, lookup indexes
	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.Get(&exists, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := s.db.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func setSchemaVersion(tx *sqlx.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}
