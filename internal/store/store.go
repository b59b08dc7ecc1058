// Package store provides SQLite storage for collected training samples and
// the prediction history of the Mudra service.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store represents a SQLite database connection.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a new Store with the given database path.
// It creates the parent directory if needed, opens the database, enables
// foreign keys, and runs migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection; writes are serialized.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}
