package prefs

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/go-libsql"
)

// Store is a persisted preference store. Each preference key holds a flat
// string-to-string dictionary, which is the shape the bridge needs for its
// path registry (local path -> type tag).
type Store struct {
	db *sql.DB
}

// Open opens or initializes the preference database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create preference directory: %w", err)
	}

	slog.Debug("Opening preference store", "path", dbPath)

	db, err := connect(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func connect(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to preference database: %w", err)
	}
	return db, nil
}

// init sets up the preference tables.
func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key, name)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create prefs table: %w", err)
	}
	return nil
}

// GetDict returns the dictionary stored under key. A key that was never
// written yields an empty, non-nil map.
func (s *Store) GetDict(key string) (map[string]string, error) {
	rows, err := s.db.Query("SELECT name, value FROM prefs WHERE key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query prefs for %q: %w", key, err)
	}
	defer rows.Close()

	dict := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan pref row: %w", err)
		}
		dict[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pref rows: %w", err)
	}
	return dict, nil
}

// Update applies mutate to the dictionary under key and persists the result
// atomically. The mutation sees the current contents and may add, change, or
// delete entries.
func (s *Store) Update(key string, mutate func(dict map[string]string)) error {
	dict, err := s.GetDict(key)
	if err != nil {
		return err
	}
	mutate(dict)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	if _, err := tx.Exec("DELETE FROM prefs WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to clear prefs for %q: %w", key, err)
	}
	for name, value := range dict {
		if _, err := tx.Exec("INSERT INTO prefs (key, name, value) VALUES (?, ?, ?)", key, name, value); err != nil {
			return fmt.Errorf("failed to insert pref %q/%q: %w", key, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pref update: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
