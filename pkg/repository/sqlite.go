package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/interfaces"
	_ "modernc.org/sqlite"
)

// SQLite implements interfaces.KVS on a local SQLite database file
type SQLite struct {
	db *sql.DB
}

var _ interfaces.KVS = (*SQLite)(nil)

// NewSQLite opens (and creates if needed) the database at dbPath
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, goerr.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", dbPath))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}
	// A single writer avoids SQLITE_BUSY between our own connections
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("path", dbPath))
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS kvs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create schema")
	}

	return &SQLite{db: db}, nil
}

// Close closes the database
func (r *SQLite) Close() error {
	return r.db.Close()
}

func (r *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kvs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to select value", goerr.V("key", key))
	}
	return value, true, nil
}

func (r *SQLite) Set(ctx context.Context, key, value string) error {
	const query = `
	INSERT INTO kvs (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return goerr.Wrap(err, "failed to upsert value", goerr.V("key", key))
	}
	return nil
}
