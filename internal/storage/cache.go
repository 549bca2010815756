/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "storeplanner/internal/log"
	"storeplanner/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the cache schema. Bump it together with a new step in runMigrations.
const schemaVersion = 2

// tsLayout has a fixed width so that updated_at sorts as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Kind partitions cached texts by the stream that produced them.
type Kind string

const (
	KindSummary  Kind = "summary"  // key: mindmap node id
	KindAdvice   Kind = "advice"   // key: <session>/<category>
	KindAudience Kind = "audience" // key: audience code
)

// Entry is one cached text.
type Entry struct {
	Kind      Kind
	Key       string
	Text      string
	UpdatedAt time.Time
}

// ErrEmptyKey is returned when an entry has no key.
var ErrEmptyKey = errors.New("cache key is required")

// Cache is the local summary cache.
type Cache struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// AdviceKey builds the cache key of an advice field.
func AdviceKey(sessionID, category string) string { return sessionID + "/" + category }

// Open creates or opens the cache database at path, enables WAL mode and brings the schema
// up to date.
func Open(path string) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create cache dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure cache schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("cache ready")
	return &Cache{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

func (c *Cache) Close() error { return c.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at the baseline and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema; runMigrations moves it forward
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			text       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(kind, key)
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create cache schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(updated_at);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// Put inserts or replaces an entry. A zero UpdatedAt is stamped with the current time.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.Key) == "" {
		return ErrEmptyKey
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO entries(kind, key, text, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(kind, key) DO UPDATE SET text=excluded.text, updated_at=excluded.updated_at`,
		string(e.Kind), e.Key, e.Text, e.UpdatedAt.UTC().Format(tsLayout))
	if err != nil {
		c.log.Error("cache put failed", slog.String("kind", string(e.Kind)), slog.Any("err", err))
		return fmt.Errorf("put %s/%s: %w", e.Kind, e.Key, err)
	}
	return nil
}

// Get returns the entry for kind and key; ok is false when nothing is cached.
func (c *Cache) Get(ctx context.Context, kind Kind, key string) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT kind, key, text, updated_at FROM entries WHERE kind=? AND key=?`, string(kind), key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s/%s: %w", kind, key, err)
	}
	return e, true, nil
}

// List returns all entries of a kind ordered by key.
func (c *Cache) List(ctx context.Context, kind Kind) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT kind, key, text, updated_at FROM entries WHERE kind=? ORDER BY key`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return collect(rows)
}

// Recent returns the most recently written entries of any kind, newest first.
func (c *Cache) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.QueryContext(ctx, `SELECT kind, key, text, updated_at FROM entries ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return collect(rows)
}

// Delete removes an entry; deleting a missing entry succeeds.
func (c *Cache) Delete(ctx context.Context, kind Kind, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE kind=? AND key=?`, string(kind), key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, key, err)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var kind, ts string
	if err := s.Scan(&kind, &e.Key, &e.Text, &ts); err != nil {
		return Entry{}, err
	}
	e.Kind = Kind(kind)
	if t, err := time.Parse(tsLayout, ts); err == nil {
		e.UpdatedAt = t
	}
	return e, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
