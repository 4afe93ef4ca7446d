package client

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"
)

// State persists client settings in a local SQLite database
type State struct {
	db  *sql.DB
	dir string // Directory where state is stored
}

// OpenState opens or creates the settings database at path
func OpenState(path string) (*State, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// A single connection; the client is the only writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &State{db: db, dir: dir}, nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetStateDir returns the directory where state is stored
func (s *State) GetStateDir() string {
	return s.dir
}

// GetString returns the value stored under key, "" when unset
func (s *State) GetString(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetString stores value under key
func (s *State) SetString(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetBool returns the boolean stored under key, false when unset
func (s *State) GetBool(key string) (bool, error) {
	value, err := s.GetString(key)
	if err != nil || value == "" {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("setting %s is not a boolean: %q", key, value)
	}
	return b, nil
}

// SetBool stores a boolean under key
func (s *State) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

// GetStringSet returns the members of the named set, sorted
func (s *State) GetStringSet(name string) ([]string, error) {
	rows, err := s.db.Query(`SELECT value FROM StringSet WHERE name = ? ORDER BY value`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// SetStringSet replaces the named set with values
func (s *State) SetStringSet(name string, values []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM StringSet WHERE name = ?`, name); err != nil {
		return err
	}

	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	for _, v := range sorted {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO StringSet (name, value) VALUES (?, ?)`, name, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}
