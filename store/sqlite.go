package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go sqlite driver registered as 'sqlite'

	"github.com/onnwee/herald/config"
)

// IsSQLitePath reports whether path names an sqlite database (.db, .sqlite, .sqlite3).
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// SQLite stores settings as one JSON document in a local kv table. It suits
// single-host deployments that want transactional writes without Postgres.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the kv table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	_, _ = database.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = database.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLite{DB: database}, nil
}

func (s *SQLite) Load(ctx context.Context, dst *config.Settings) error {
	var v sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, settingsKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && v.String == "") {
		return config.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read settings row: %w", err)
	}
	if err := json.Unmarshal([]byte(v.String), dst); err != nil {
		return fmt.Errorf("parse settings row: %w", err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, st config.Settings) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		settingsKey, string(b))
	return err
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.DB.Close() }
