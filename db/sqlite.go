package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Item, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM documents WHERE id = ? AND (expires_at = 0 OR expires_at > ?)",
		key, s.now().UnixNano(),
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, mapSQLiteErr(fmt.Errorf("get %q: %w", key, err))
	}

	item := &Item{Key: key, Value: value}
	if expiresAt != 0 {
		item.Expiry = time.Unix(0, expiresAt)
	}
	return item, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiresAt(ttl),
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("set %q: %w", key, err))
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	// An expired row does not count as present.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		 WHERE documents.expires_at != 0 AND documents.expires_at <= ?`,
		key, value, s.expiresAt(ttl), s.now().UnixNano(),
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("add %q: %w", key, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyExists
	}
	return nil
}

func (s *SQLiteStore) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET value = ?, expires_at = ? WHERE id = ? AND (expires_at = 0 OR expires_at > ?)",
		value, s.expiresAt(ttl), key, s.now().UnixNano(),
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("replace %q: %w", key, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND (expires_at = 0 OR expires_at > ?)",
		key, s.now().UnixNano(),
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("delete %q: %w", key, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM documents WHERE id = ? AND (expires_at = 0 OR expires_at > ?)",
		key, s.now().UnixNano(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapSQLiteErr(fmt.Errorf("exists %q: %w", key, err))
	}
	return true, nil
}

func (s *SQLiteStore) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, value FROM documents WHERE expires_at = 0 OR expires_at > ? ORDER BY id",
		s.now().UnixNano(),
	)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("scan: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return mapSQLiteErr(fmt.Errorf("scan row: %w", err))
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return mapSQLiteErr(rows.Err())
}

// Purge deletes expired rows and reports how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE expires_at != 0 AND expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, mapSQLiteErr(fmt.Errorf("purge: %w", err))
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) expiresAt(ttl time.Duration) int64 {
	expiry := expiryFrom(s.now(), ttl)
	if expiry.IsZero() {
		return 0
	}
	return expiry.UnixNano()
}

// mapSQLiteErr classifies driver errors by message; the driver does not
// export typed busy/closed errors through database/sql.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is closed"), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %w", ErrTemporary, err)
	}
	return err
}
