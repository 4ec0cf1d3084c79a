// Package db provides SQLite connectivity helpers and migration support.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// SQLite DSN parameters for the history store.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Open modes.
const (
	ModeWrite  = "write"  // history store writer, single connection
	ModeRead   = "read"   // history store readers
	ModeImage  = "image"  // read-only, immutable database image on disk
	ModeMemory = "memory" // named shared-cache in-memory database
)

// OpenSQLite opens a *sql.DB pool for the given SQLite path.
//
// mode controls DSN parameters and pool sizing:
//   - "write":  MaxOpenConns=1, WAL, busy_timeout, _txlock=immediate, foreign_keys on
//   - "read":   MaxOpenConns=maxOpen (0 means 4), WAL, busy_timeout, foreign_keys on
//   - "image":  MaxOpenConns=1, file: URI with mode=ro&immutable=1
//   - "memory": MaxOpenConns=1, file: URI with mode=memory&cache=shared; path is the
//     database name. The single connection is never recycled, since closing it
//     drops the database.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	dsn, err := buildDSN(path, mode)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
		db.SetConnMaxLifetime(time.Hour)
	case ModeWrite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	default:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	// Verify the connection is usable.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenSQLitePair opens both a write pool (MaxOpenConns=1) and a read pool
// for the same SQLite file.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

// buildDSN constructs a SQLite DSN for the given mode.
func buildDSN(path string, mode string) (string, error) {
	params := url.Values{}

	switch mode {
	case ModeWrite, ModeRead:
		params.Set("_journal_mode", defaultJournalMode)
		params.Set("_busy_timeout", defaultBusyTimeout)
		params.Set("_synchronous", defaultSynchronous)
		params.Set("_foreign_keys", "on")
		if mode == ModeWrite {
			params.Set("_txlock", "immediate")
		}
		return path + "?" + params.Encode(), nil
	case ModeImage:
		params.Set("mode", "ro")
		params.Set("immutable", "1")
		return "file:" + strings.TrimPrefix(path, "file:") + "?" + params.Encode(), nil
	case ModeMemory:
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:" + strings.TrimPrefix(path, "file:") + "?" + params.Encode(), nil
	default:
		return "", fmt.Errorf("invalid SQLite mode %q: must be one of write, read, image, memory", mode)
	}
}
