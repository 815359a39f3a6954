// Package storage provides the persistent key-value store that holds the course
// collection and the backup history.
//
// The store treats every value as an opaque JSON blob under a fixed key.
// Reads and writes are atomic per key; there is no multi-key transaction.
//
// Backends:
//   - SQLiteStore: embedded SQLite file in WAL mode (default)
//   - RedisStore: shared Redis instance, for several devices on one network
//   - MemoryStore: in-process map, for tests and dry runs
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed keys of the logical values kept in the store.
const (
	CoursesKey      = "markbook-courses"
	BackupIndexKey  = "markbook-backup-index"
	BackupKeyPrefix = "markbook-backup-"
	LastSyncKey     = "markbook-last-sync"
	FolderPathKey   = "markbook-folder-path"
)

var (
	// ErrNotFound is returned by Store.Get when the key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrCourseNotFound is returned when an operation names a course id that
	// is not in the collection.
	ErrCourseNotFound = errors.New("course not found")
)

// Store is a key-value store holding JSON blobs.
type Store interface {
	// Get returns the value stored under key.
	//
	// Returns ErrNotFound if the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key.
	//
	// Returns nil if the key doesn't exist (idempotent).
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// BackupKey returns the store key of a backup payload.
func BackupKey(id string) string {
	return BackupKeyPrefix + id
}

// Open opens the store backend named by driver.
//
// Supported drivers: "sqlite" (dsn is a file path), "redis" (dsn is host:port)
// and "memory" (dsn ignored).
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		s, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := OpenRedis(&RedisOptions{Addr: dsn})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
