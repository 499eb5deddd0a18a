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
	"fmt"
	"log/slog"

	"gradebook/internal/domain"
)

// language=SQL
// dialect=SQLite
const gradesForPeriodSQL = `SELECT g.id, psg.subject_id, g.written_score, g.oral_score, g.weight, g.overall_score
FROM grades g
JOIN period_subject_grades psg ON psg.grade_id = g.id
WHERE psg.period_id = ?
ORDER BY g.id`

// language=SQL
// dialect=SQLite
const insertGradeSQL = `INSERT INTO grades(written_score, oral_score, weight, overall_score) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const insertLinkSQL = `INSERT INTO period_subject_grades(period_id, subject_id, grade_id) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const updateGradeSQL = `UPDATE grades SET written_score = ?, oral_score = ?, weight = ?, overall_score = ? WHERE id = ?`

// language=SQL
// dialect=SQLite
const repointLinkSQL = `UPDATE period_subject_grades SET subject_id = ? WHERE grade_id = ?`

// language=SQL
// dialect=SQLite
const deleteGradeLinkSQL = `DELETE FROM period_subject_grades WHERE grade_id = ?`

// language=SQL
// dialect=SQLite
const deleteGradeSQL = `DELETE FROM grades WHERE id = ?`

// ListGradesForPeriod returns the grades recorded in periodID, each annotated
// with the subject of its association row. Unknown periods yield an empty slice.
func (s *Store) ListGradesForPeriod(ctx context.Context, periodID int64) ([]domain.Grade, error) {
	var out []domain.Grade
	err := s.read(ctx, "list_grades_for_period", func(q querier) error {
		var err error
		out, err = gradesForPeriod(ctx, q, periodID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func gradesForPeriod(ctx context.Context, q querier, periodID int64) ([]domain.Grade, error) {
	rows, err := q.QueryContext(ctx, gradesForPeriodSQL, periodID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.Grade, 0)
	for rows.Next() {
		var g domain.Grade
		if err := rows.Scan(&g.ID, &g.SubjectID, &g.Written, &g.Oral, &g.Weight, &g.Overall); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RecordGrade stores a grade for subjectID in periodID and returns the grade id.
// The overall score is derived from the components. The grade row and its
// association row are written in one transaction; if the association cannot be
// written (e.g. unknown period or subject) no grade remains.
func (s *Store) RecordGrade(ctx context.Context, periodID, subjectID int64, written, oral domain.Opt[int64], weight float64) (int64, error) {
	var gradeID int64
	overall := domain.OverallScore(written, oral, weight)
	err := s.withTx(ctx, "record_grade", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertGradeSQL, written, oral, weight, overall)
		if err != nil {
			return fmt.Errorf("insert grade: %w", err)
		}
		if gradeID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("grade id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertLinkSQL, periodID, subjectID, gradeID); err != nil {
			return fmt.Errorf("insert association: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("grade recorded", slog.Int64("grade_id", gradeID), slog.Int64("period_id", periodID), slog.Int64("subject_id", subjectID))
	return gradeID, nil
}

// UpdateGrade overwrites the components of grade id, recomputes its overall
// score and moves its association row to subjectID. The period is kept.
// An unknown grade id is a no-op; an unknown subjectID fails and changes nothing.
func (s *Store) UpdateGrade(ctx context.Context, id, subjectID int64, written, oral domain.Opt[int64], weight float64) error {
	overall := domain.OverallScore(written, oral, weight)
	return s.withTx(ctx, "update_grade", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, updateGradeSQL, written, oral, weight, overall, id); err != nil {
			return fmt.Errorf("update grade: %w", err)
		}
		if _, err := tx.ExecContext(ctx, repointLinkSQL, subjectID, id); err != nil {
			return fmt.Errorf("update association: %w", err)
		}
		return nil
	})
}

// DeleteGrade removes the association row of gradeID, then the grade. A grade
// without association row is still deleted.
func (s *Store) DeleteGrade(ctx context.Context, gradeID int64) error {
	return s.withTx(ctx, "delete_grade", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteGradeLinkSQL, gradeID); err != nil {
			return fmt.Errorf("delete association: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteGradeSQL, gradeID); err != nil {
			return fmt.Errorf("delete grade: %w", err)
		}
		return nil
	})
}

// deleteGrades removes the given grade rows with one prepared statement.
// Callers delete the association rows first.
func deleteGrades(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, deleteGradeSQL)
	if err != nil {
		return fmt.Errorf("prepare grade delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete grade %d: %w", id, err)
		}
	}
	return nil
}
