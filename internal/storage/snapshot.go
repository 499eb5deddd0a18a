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
	"os"
	"path/filepath"
	"strings"

	"gradebook/internal/domain"
)

// language=SQL
// dialect=SQLite
const orphanGradesSQL = `SELECT COUNT(*) FROM grades g
WHERE NOT EXISTS (SELECT 1 FROM period_subject_grades psg WHERE psg.grade_id = g.id)`

// language=SQL
// dialect=SQLite
const danglingLinksSQL = `SELECT COUNT(*) FROM period_subject_grades psg
WHERE NOT EXISTS (SELECT 1 FROM grades g WHERE g.id = psg.grade_id)
   OR NOT EXISTS (SELECT 1 FROM grading_periods p WHERE p.id = psg.period_id)
   OR NOT EXISTS (SELECT 1 FROM subjects s WHERE s.id = psg.subject_id)`

// Snapshot reads every subject and every period with its grades in one
// transaction, so the result is consistent.
func (s *Store) Snapshot(ctx context.Context) (domain.Gradebook, error) {
	var book domain.Gradebook
	err := s.withTx(ctx, "snapshot", func(tx *sql.Tx) error {
		subjects, err := listSubjects(ctx, tx)
		if err != nil {
			return fmt.Errorf("subjects: %w", err)
		}
		periods, err := listPeriods(ctx, tx)
		if err != nil {
			return fmt.Errorf("periods: %w", err)
		}
		book.Subjects = subjects
		book.Periods = make([]domain.PeriodGrades, 0, len(periods))
		for _, p := range periods {
			grades, err := gradesForPeriod(ctx, tx, p.ID)
			if err != nil {
				return fmt.Errorf("grades of period %d: %w", p.ID, err)
			}
			book.Periods = append(book.Periods, domain.PeriodGrades{Period: p, Grades: grades})
		}
		return nil
	})
	if err != nil {
		return domain.Gradebook{}, err
	}
	return book, nil
}

// Check verifies the database file and the association invariants: SQLite's
// quick_check, foreign keys, grades without association row and association
// rows pointing at missing rows. Problems are reported as KindStorageFailure.
func (s *Store) Check(ctx context.Context) error {
	return s.read(ctx, "check", func(q querier) error {
		var res string
		if err := q.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&res); err != nil {
			return fmt.Errorf("quick_check: %w", err)
		}
		if !strings.EqualFold(strings.TrimSpace(res), "ok") {
			return fmt.Errorf("quick_check: %s", res)
		}

		rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_check;")
		if err != nil {
			return fmt.Errorf("foreign_key_check: %w", err)
		}
		violations := 0
		for rows.Next() {
			violations++
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("foreign_key_check: %w", err)
		}
		if violations > 0 {
			return fmt.Errorf("foreign_key_check: %d violation(s)", violations)
		}

		var orphans, dangling int
		if err := q.QueryRowContext(ctx, orphanGradesSQL).Scan(&orphans); err != nil {
			return fmt.Errorf("orphan grades: %w", err)
		}
		if err := q.QueryRowContext(ctx, danglingLinksSQL).Scan(&dangling); err != nil {
			return fmt.Errorf("dangling associations: %w", err)
		}
		if orphans > 0 || dangling > 0 {
			return fmt.Errorf("integrity: %d grade(s) without association, %d association(s) with missing rows", orphans, dangling)
		}
		return nil
	})
}

// Backup writes a compacted copy of the database to dst. An existing file at
// dst is replaced.
func (s *Store) Backup(ctx context.Context, dst string) error {
	if strings.TrimSpace(dst) == "" {
		return newError(KindStorageFailure, "backup", errors.New("backup path is required"))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return newError(KindStorageFailure, "backup", err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return newError(KindStorageFailure, "backup", err)
	}
	_, err := s.exec(ctx, "backup", "VACUUM INTO ?", dst)
	return err
}
