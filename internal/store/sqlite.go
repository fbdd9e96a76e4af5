// Package store keeps the optional message archive in SQLite. The archive is
// an audit log for operators; it is never read back into session state.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/nerdson/internal/logging"
)

// DB is an open archive file.
type DB struct {
	sql  *sql.DB
	path string
	log  *logging.Logger
}

// Open opens the archive at path, creating the file and its directory when
// missing, and upgrades the schema. ":memory:" gives a throwaway archive.
func Open(path string, log *logging.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
		// The relay writes while `archive show` reads from another process.
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// One writer; also keeps ":memory:" a single database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, path: path, log: log.Sub("archive")}
	if err := db.upgrade(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.log.Info().Str("path", path).Int("schema", len(schema)).Msg("archive opened")
	return db, nil
}

// Close closes the archive.
func (db *DB) Close() error {
	db.log.Debug().Str("path", db.path).Msg("closing archive")
	return db.sql.Close()
}

// Version reports the schema version recorded in the file.
func (db *DB) Version() (int, error) {
	var v int
	if err := db.sql.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading archive version: %w", err)
	}
	return v, nil
}

// upgrade applies the schema steps the file has not seen yet, each in its
// own transaction together with the user_version bump.
func (db *DB) upgrade() error {
	current, err := db.Version()
	if err != nil {
		return err
	}
	if current > len(schema) {
		return fmt.Errorf("archive %s has schema v%d, newer than supported v%d", db.path, current, len(schema))
	}

	for v := current; v < len(schema); v++ {
		tx, err := db.sql.Begin()
		if err != nil {
			return fmt.Errorf("archive schema v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(schema[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive schema v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive schema v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("archive schema v%d: %w", v+1, err)
		}
		db.log.Info().Int("version", v+1).Msg("archive schema upgraded")
	}
	return nil
}
