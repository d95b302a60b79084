// Package cache persists the last known-good snapshot per logical resource.
//
// The store is a fallback only: callers consult it when a fetch fails and
// overwrite it wholesale on every successful fetch. Writes never fail the
// caller's success path; a broken cache degrades to "no cache".
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
)

// SchemaVersion tags every blob. Rows written with a different version are
// treated as absent on load, so an incompatible payload shape is never
// trusted as last known good.
const SchemaVersion = 1

// Keys for the cacheable logical resources.
const (
	KeyState   = "state"
	KeyHealth  = "health"
	KeyProfile = "profile"
)

// LayoutKey returns the cache key for a view-scoped layout.
func LayoutKey(view string) string {
	return "layout:" + view
}

// Store is a process-wide key→blob store backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS snapshots (
			key            TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			saved_at       TIMESTAMP NOT NULL,
			payload        BLOB NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save serializes v and overwrites the blob stored under key. Failures are
// logged and swallowed: a cache write must never abort the caller.
func (s *Store) Save(key string, v any) {
	if s == nil || s.db == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		debug.Log("cache: marshal failed for %s: %v", key, err)
		return
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (key, schema_version, saved_at, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   schema_version = excluded.schema_version,
		   saved_at = excluded.saved_at,
		   payload = excluded.payload`,
		key, SchemaVersion, s.now().UTC(), payload,
	)
	if err != nil {
		debug.Log("cache: save failed for %s: %v", key, err)
	}
}

// Load reads the blob stored under key into out. Reports false when the key
// is absent, the row was written by a different schema version, or the blob
// no longer deserializes.
func (s *Store) Load(key string, out any) bool {
	if s == nil || s.db == nil {
		return false
	}
	var version int
	var payload []byte
	err := s.db.QueryRow(
		`SELECT schema_version, payload FROM snapshots WHERE key = ?`, key,
	).Scan(&version, &payload)
	if err != nil {
		if err != sql.ErrNoRows {
			debug.Log("cache: load failed for %s: %v", key, err)
		}
		return false
	}
	if version != SchemaVersion {
		debug.Log("cache: discarding %s (schema %d, want %d)", key, version, SchemaVersion)
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		debug.Log("cache: corrupt payload for %s: %v", key, err)
		return false
	}
	return true
}

// SavedAt returns when key was last written, or zero if absent.
func (s *Store) SavedAt(key string) time.Time {
	if s == nil || s.db == nil {
		return time.Time{}
	}
	var savedAt time.Time
	err := s.db.QueryRow(`SELECT saved_at FROM snapshots WHERE key = ?`, key).Scan(&savedAt)
	if err != nil {
		return time.Time{}
	}
	return savedAt
}
