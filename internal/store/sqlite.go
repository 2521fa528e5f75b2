package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is an SQLite-backed audit log.
type SQLiteStore struct {
	*sqlAudit
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path, optionally
// in "file:" URI form with query parameters. Missing directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sqlite store: DSN not set")
	}

	dir := filepath.Dir(sqlitePath(cfg.DSN))
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore: cannot create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("sqlite store: create %s: %w", dir, err)
	}

	a, err := openAudit("sqlite", "sqlite3", cfg.DSN, sqliteMigrations, nil)
	if err != nil {
		slog.Error("SQLiteStore: open failed", "error", err, "dir", dir)
		return nil, err
	}
	return &SQLiteStore{a}, nil
}

// sqlitePath strips the URI scheme and query parameters from a DSN.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
