// Package store handles SQLite persistence for feature flags, sharing
// links and user accounts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the database at dbPath and migrates
// the schema. ":memory:" is supported for tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate ensures the database schema is up to date
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feature_flags (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		paths TEXT NOT NULL,
		allowed_users TEXT,
		secret_token TEXT,
		share_type TEXT NOT NULL DEFAULT 'static',
		allow_list TEXT,
		avoid_list TEXT,
		expiry_date DATETIME
	);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadFlags returns the persisted feature flags keyed by name. Flags
// never saved are simply absent.
func (s *Store) LoadFlags() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT key, value FROM feature_flags")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]bool)
	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		flags[key] = value != 0
	}
	return flags, rows.Err()
}

// SaveFlags upserts the given flag values in one transaction.
func (s *Store) SaveFlags(flags map[string]bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO feature_flags (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, value := range flags {
		v := 0
		if value {
			v = 1
		}
		if _, err := stmt.Exec(key, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ShareRecord is one sharing link as persisted.
type ShareRecord struct {
	ID           string
	Created      time.Time
	Paths        []string
	AllowedUsers []string // nil means any authenticated user
	SecretToken  string
	ShareType    string // "static" or "live"
	AllowList    []string
	AvoidList    []string
	ExpiryDate   *time.Time
}

// InsertShare persists a share record.
func (s *Store) InsertShare(rec *ShareRecord) error {
	paths, err := json.Marshal(rec.Paths)
	if err != nil {
		return err
	}
	var allowedUsers []byte
	if rec.AllowedUsers != nil {
		if allowedUsers, err = json.Marshal(rec.AllowedUsers); err != nil {
			return err
		}
	}
	allowList, err := json.Marshal(rec.AllowList)
	if err != nil {
		return err
	}
	avoidList, err := json.Marshal(rec.AvoidList)
	if err != nil {
		return err
	}

	shareType := rec.ShareType
	if shareType == "" {
		shareType = "static"
	}

	_, err = s.db.Exec(`INSERT INTO shares
		(id, created, paths, allowed_users, secret_token, share_type, allow_list, avoid_list, expiry_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Created, string(paths), nullableString(allowedUsers), rec.SecretToken,
		shareType, string(allowList), string(avoidList), rec.ExpiryDate)
	return err
}

// DeleteShare removes a share by id.
func (s *Store) DeleteShare(id string) error {
	_, err := s.db.Exec("DELETE FROM shares WHERE id = ?", id)
	return err
}

// LoadShares returns all persisted shares keyed by id. Malformed JSON
// columns degrade to empty lists rather than failing the whole load.
func (s *Store) LoadShares() (map[string]*ShareRecord, error) {
	rows, err := s.db.Query(`SELECT id, created, paths, allowed_users, secret_token,
		share_type, allow_list, avoid_list, expiry_date FROM shares`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := make(map[string]*ShareRecord)
	for rows.Next() {
		var rec ShareRecord
		var paths, allowedUsers, secretToken, shareType, allowList, avoidList sql.NullString
		var expiry sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Created, &paths, &allowedUsers, &secretToken,
			&shareType, &allowList, &avoidList, &expiry); err != nil {
			return nil, err
		}

		rec.Paths = decodeStringList(paths)
		if allowedUsers.Valid && allowedUsers.String != "" {
			rec.AllowedUsers = decodeStringList(allowedUsers)
		}
		rec.SecretToken = secretToken.String
		rec.ShareType = shareType.String
		if rec.ShareType == "" {
			rec.ShareType = "static"
		}
		rec.AllowList = decodeStringList(allowList)
		rec.AvoidList = decodeStringList(avoidList)
		if expiry.Valid {
			t := expiry.Time
			rec.ExpiryDate = &t
		}
		shares[rec.ID] = &rec
	}
	return shares, rows.Err()
}

// UserRecord is one account row.
type UserRecord struct {
	Username     string
	PasswordHash string
	Role         string
}

// UpsertUser creates or updates an account.
func (s *Store) UpsertUser(rec *UserRecord) error {
	role := rec.Role
	if role == "" {
		role = "viewer"
	}
	_, err := s.db.Exec(`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, role = excluded.role`,
		rec.Username, rec.PasswordHash, role)
	return err
}

// GetUser looks up an account; (nil, nil) when absent.
func (s *Store) GetUser(username string) (*UserRecord, error) {
	var rec UserRecord
	err := s.db.QueryRow("SELECT username, password_hash, role FROM users WHERE username = ?",
		username).Scan(&rec.Username, &rec.PasswordHash, &rec.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(username string) error {
	_, err := s.db.Exec("DELETE FROM users WHERE username = ?", username)
	return err
}

func decodeStringList(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return []string{}
	}
	return out
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
