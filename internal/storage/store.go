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
	"sync"
	"time"

	applog "gradebook/internal/log"
	"gradebook/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DefaultFileName is the database file created by OpenInDir.
	DefaultFileName = "gradebook.sqlite"

	// schemaVersion is recorded in the version table. There are no migrations;
	// the number only documents which layout created the file.
	schemaVersion = 1

	openTimeout = 5 * time.Second
)

// Store is the grade store. It owns a single SQLite connection and an
// exclusive guard: every operation runs alone, in call order of the lock.
// Multi-statement writes run inside one transaction.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
	log    *slog.Logger
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OpenInDir creates dir if needed and opens DefaultFileName inside it.
func OpenInDir(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, newError(KindStorageUnavailable, "open", errors.New("data directory is required"))
	}
	return OpenAt(filepath.Join(dir, DefaultFileName))
}

// OpenAt creates the parent directory of path if needed and opens path.
func OpenAt(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, newError(KindStorageUnavailable, "open", errors.New("database path is required"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError(KindStorageUnavailable, "open", fmt.Errorf("create data dir: %w", err))
	}
	return Open(path)
}

// Open opens (creating if absent) the database at path and ensures the schema.
// Calling Open repeatedly on the same file is safe; existing rows are untouched.
func Open(path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, newError(KindStorageUnavailable, "open", errors.New("database path is required"))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, newError(KindStorageUnavailable, "open", err)
	}
	// One connection for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := initialize(ctx, db); err != nil {
		_ = db.Close()
		l.Error("initialize failed", slog.Any("err", err))
		return nil, newError(KindStorageUnavailable, "open", err)
	}

	l.Info("grade store ready")
	return &Store{db: db, path: path, log: applog.WithComponent("storage").With(slog.String("path", path))}, nil
}

func initialize(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		return err
	}
	return ensureVersion(ctx, db)
}

// ensureSchema creates the four gradebook tables. Every statement is idempotent.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS grading_periods (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			period_number INTEGER NOT NULL,
			grade_level   INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subjects (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			name    TEXT NOT NULL,
			teacher TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS grades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			written_score INTEGER,
			oral_score    INTEGER,
			weight        REAL NOT NULL,
			overall_score REAL
		);`,
		// The association owns the link between a grade and its period/subject.
		// No cascades: the store deletes association rows before grades before parents.
		`CREATE TABLE IF NOT EXISTS period_subject_grades (
			period_id  INTEGER NOT NULL REFERENCES grading_periods(id),
			subject_id INTEGER NOT NULL REFERENCES subjects(id),
			grade_id   INTEGER NOT NULL REFERENCES grades(id),
			PRIMARY KEY (period_id, subject_id, grade_id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_psg_grade ON period_subject_grades(grade_id);`,
		`CREATE INDEX IF NOT EXISTS idx_psg_subject ON period_subject_grades(subject_id);`,
		`CREATE TABLE IF NOT EXISTS version (
			id         INTEGER PRIMARY KEY CHECK(id=1),
			schema     INTEGER NOT NULL,
			app        TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ensureVersion seeds the single version row, or refreshes app and updated_at.
func ensureVersion(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET app = excluded.app, updated_at = excluded.updated_at`,
		schemaVersion, version.String(), now, now)
	if err != nil {
		return fmt.Errorf("ensure version: %w", err)
	}
	return nil
}

// Path returns the database file the store was opened with.
func (s *Store) Path() string { return s.path }

// Close releases the connection. Operations after Close fail with KindConcurrencyFault.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		s.log.Error("close failed", slog.Any("err", err))
		return newError(KindStorageFailure, "close", err)
	}
	s.log.Info("grade store closed")
	return nil
}

// acquire takes the exclusive guard for op. The returned func releases it.
func (s *Store) acquire(op string) (func(), error) {
	s.mu.Lock()
	if s.closed || s.db == nil {
		s.mu.Unlock()
		return nil, newError(KindConcurrencyFault, op, errClosed)
	}
	s.log.Debug("begin", slog.String("op", op))
	return s.mu.Unlock, nil
}

// fail wraps a driver error as KindStorageFailure and logs it.
func (s *Store) fail(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	s.log.Error("operation failed", slog.String("op", op), slog.Any("err", err))
	return newError(KindStorageFailure, op, err)
}

// exec runs a single statement under the guard. Affected row counts are ignored:
// writes against unknown ids are no-ops.
func (s *Store) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return res, nil
}

// read runs fn against the connection under the guard.
func (s *Store) read(ctx context.Context, op string, fn func(q querier) error) error {
	release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()
	if err := fn(s.db); err != nil {
		return s.fail(op, err)
	}
	return nil
}

// withTx runs fn inside one transaction under the guard. The transaction is
// rolled back on any error (or panic) and committed only when fn succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return s.fail(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}
