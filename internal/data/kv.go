package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/slack-merge-gate/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteKV implements the key-value repository on SQLite
type sqliteKV struct {
	db *sql.DB
}

// NewSQLiteKV opens (or creates) the state database
func NewSQLiteKV(dbPath string) (repo.KVRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps last-writer-wins semantics without SQLITE_BUSY
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			area TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (area, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &sqliteKV{db: db}, nil
}

// Get returns a value
func (r *sqliteKV) Get(ctx context.Context, area repo.Area, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, string(area), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query key: %w", err)
	}
	return value, true, nil
}

// Set creates or overwrites a value
func (r *sqliteKV) Set(ctx context.Context, area repo.Area, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO kv (area, key, value, updated_at)
		VALUES (?, ?, ?, ?)
	`, string(area), key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// Remove deletes keys
func (r *sqliteKV) Remove(ctx context.Context, area repo.Area, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, string(area))
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE area = ? AND key IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// All lists every key of an area
func (r *sqliteKV) All(ctx context.Context, area repo.Area) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE area = ?`, string(area))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		result[key] = value
	}
	return result, rows.Err()
}

// Close closes the database
func (r *sqliteKV) Close() error {
	return r.db.Close()
}

// memoryKV is an in-process key-value repository
type memoryKV struct {
	mu     sync.RWMutex
	values map[repo.Area]map[string][]byte
}

// NewMemoryKV creates an empty in-memory key-value repository
func NewMemoryKV() repo.KVRepo {
	return &memoryKV{values: make(map[repo.Area]map[string][]byte)}
}

func (r *memoryKV) Get(ctx context.Context, area repo.Area, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[area][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (r *memoryKV) Set(ctx context.Context, area repo.Area, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values[area] == nil {
		r.values[area] = make(map[string][]byte)
	}
	r.values[area][key] = append([]byte(nil), value...)
	return nil
}

func (r *memoryKV) Remove(ctx context.Context, area repo.Area, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values[area], k)
	}
	return nil
}

func (r *memoryKV) All(ctx context.Context, area repo.Area) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string][]byte, len(r.values[area]))
	for k, v := range r.values[area] {
		result[k] = append([]byte(nil), v...)
	}
	return result, nil
}

func (r *memoryKV) Close() error {
	return nil
}
