/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mirror copies a grade store snapshot one way into PostgreSQL, for
// reporting tools that cannot read the local SQLite file. The local store
// stays the source of truth; every push replaces the mirrored rows.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gradebook/internal/domain"
	applog "gradebook/internal/log"
	"gradebook/internal/version"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoDSN is returned by Open when no connection string is configured.
var ErrNoDSN = errors.New("mirror DSN is not configured")

// Mirror is an open connection to the mirror database.
type Mirror struct {
	db  *sql.DB
	log *slog.Logger
}

// PushStats counts the rows written by Push.
type PushStats struct {
	Subjects int
	Periods  int
	Grades   int
}

// Open connects to dsn, pings it and applies the embedded migrations.
func Open(ctx context.Context, dsn string) (*Mirror, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoDSN
	}
	l := applog.WithComponent("mirror")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mirror db: %w", err)
	}
	if err := applyMigrations(ctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate mirror db: %w", err)
	}
	return &Mirror{db: db, log: l}, nil
}

// Close closes the connection pool.
func (m *Mirror) Close() error { return m.db.Close() }

// Push replaces the mirrored rows with book in one transaction.
func (m *Mirror) Push(ctx context.Context, book domain.Gradebook) (PushStats, error) {
	var st PushStats
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin push: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM gb_grades`, `DELETE FROM gb_grading_periods`, `DELETE FROM gb_subjects`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return st, fmt.Errorf("clear mirror: %w", err)
		}
	}

	for _, s := range book.Subjects {
		if _, err := tx.ExecContext(ctx, `INSERT INTO gb_subjects(id, name, teacher) VALUES ($1, $2, $3)`, s.ID, s.Name, s.Teacher); err != nil {
			return st, fmt.Errorf("insert subject %d: %w", s.ID, err)
		}
		st.Subjects++
	}
	for _, pg := range book.Periods {
		p := pg.Period
		if _, err := tx.ExecContext(ctx, `INSERT INTO gb_grading_periods(id, period_number, grade_level) VALUES ($1, $2, $3)`,
			p.ID, p.PeriodNumber, p.GradeLevel); err != nil {
			return st, fmt.Errorf("insert period %d: %w", p.ID, err)
		}
		st.Periods++
		for _, g := range pg.Grades {
			if _, err := tx.ExecContext(ctx, `INSERT INTO gb_grades(id, period_id, subject_id, written_score, oral_score, weight, overall_score)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				g.ID, p.ID, g.SubjectID, g.Written, g.Oral, g.Weight, g.Overall); err != nil {
				return st, fmt.Errorf("insert grade %d: %w", g.ID, err)
			}
			st.Grades++
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO gb_pushes(app, subjects, periods, grades) VALUES ($1, $2, $3, $4)`,
		version.String(), st.Subjects, st.Periods, st.Grades); err != nil {
		return st, fmt.Errorf("record push: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("commit push: %w", err)
	}
	m.log.Info("mirror pushed", slog.Int("subjects", st.Subjects), slog.Int("periods", st.Periods), slog.Int("grades", st.Grades))
	return st, nil
}
