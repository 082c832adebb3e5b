package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned by Commit when a precondition staged with
	// ExpectOngoing no longer holds.
	ErrConflict = errors.New("store: document changed since read")
	// ErrBatchCommitted is returned when a batch is reused.
	ErrBatchCommitted = errors.New("store: batch already committed")
)

type Store struct {
	db    *sql.DB
	hooks storeHooks

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// storeHooks let tests inject failures into the transaction lifecycle.
type storeHooks struct {
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, subs: make(map[int]func(Event))}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Timestamps are unix milliseconds. subs columns hold JSON arrays of
// {"start","end"} pairs.
func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS categories (
		id     TEXT PRIMARY KEY,
		uid    TEXT NOT NULL,
		label  TEXT NOT NULL,
		color  TEXT NOT NULL,
		ord    REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_uid ON categories(uid, ord);

	CREATE TABLE IF NOT EXISTS activities (
		id       TEXT PRIMARY KEY,
		uid      TEXT NOT NULL,
		label    TEXT NOT NULL,
		cid      TEXT,
		updated  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_cid ON activities(uid, cid);

	CREATE TABLE IF NOT EXISTS records (
		id        TEXT PRIMARY KEY,
		uid       TEXT NOT NULL,
		aid       TEXT NOT NULL,
		start_at  INTEGER NOT NULL,
		end_at    INTEGER NOT NULL,
		duration  INTEGER NOT NULL,
		subs      TEXT,
		memo      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_records_aid   ON records(uid, aid);
	CREATE INDEX IF NOT EXISTS idx_records_start ON records(uid, start_at);

	CREATE TABLE IF NOT EXISTS caches (
		uid      TEXT PRIMARY KEY,
		rebuilt  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cache_categories (
		uid       TEXT NOT NULL REFERENCES caches(uid) ON DELETE CASCADE,
		cid       TEXT NOT NULL,
		label     TEXT NOT NULL,
		color     TEXT NOT NULL,
		ord       REAL NOT NULL,
		duration  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (uid, cid)
	);

	CREATE TABLE IF NOT EXISTS cache_activities (
		uid       TEXT NOT NULL REFERENCES caches(uid) ON DELETE CASCADE,
		aid       TEXT NOT NULL,
		label     TEXT NOT NULL,
		cid       TEXT,
		duration  INTEGER NOT NULL DEFAULT 0,
		count     INTEGER NOT NULL DEFAULT 0,
		updated   INTEGER NOT NULL,
		PRIMARY KEY (uid, aid)
	);

	CREATE TABLE IF NOT EXISTS ongoings (
		uid        TEXT PRIMARY KEY,
		aid        TEXT NOT NULL,
		cid        TEXT,
		rec_start  INTEGER NOT NULL,
		cur_start  INTEGER,
		memo       TEXT NOT NULL DEFAULT '',
		subs       TEXT NOT NULL DEFAULT '[]',
		rev        INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}
