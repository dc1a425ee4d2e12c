package store

import (
	"database/sql"
	"fmt"

	// Register the pure-Go SQLite driver. This does NOT require CGO.
	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a SQLite database. Values live in a
// single preference table keyed by (scope, key), so several SDK instances
// with distinct preference names can share one database file. The database
// operates in WAL mode and runs schema migrations on open.
type SQLiteStore struct {
	db    *sql.DB
	scope string
}

// NewSQLiteStore opens (or creates) the database at dbPath and returns a
// Store bound to the given preference scope.
func NewSQLiteStore(dbPath, scope string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path must not be empty")
	}
	if scope == "" {
		return nil, fmt.Errorf("preference scope must not be empty")
	}

	// WAL mode for concurrent access, 5s busy timeout for lock contention.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, scope: scope}, nil
}

// Close closes the underlying database. The store is invalid afterwards.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) GetString(key, def string) (string, error) {
	if s.db == nil {
		return def, fmt.Errorf("store is closed")
	}
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM preferences WHERE scope = ? AND key = ?`,
		s.scope, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) PutString(key, value string) error {
	if s.db == nil {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.Exec(
		`INSERT INTO preferences (scope, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value`,
		s.scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if s.db == nil {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.Exec(
		`DELETE FROM preferences WHERE scope = ? AND key = ?`,
		s.scope, key,
	)
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.Exec(`DELETE FROM preferences WHERE scope = ?`, s.scope)
	if err != nil {
		return fmt.Errorf("clear scope %q: %w", s.scope, err)
	}
	return nil
}

func (s *SQLiteStore) IsValid() bool {
	return s.db != nil && s.db.Ping() == nil
}
