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

	"gradebook/internal/domain"
)

// language=SQL
// dialect=SQLite
const listSubjectsSQL = `SELECT id, name, teacher FROM subjects ORDER BY id`

// language=SQL
// dialect=SQLite
const insertSubjectSQL = `INSERT INTO subjects(name, teacher) VALUES (?, ?)`

// language=SQL
// dialect=SQLite
const updateSubjectSQL = `UPDATE subjects SET name = ?, teacher = ? WHERE id = ?`

// language=SQL
// dialect=SQLite
const subjectGradeIDsSQL = `SELECT grade_id FROM period_subject_grades WHERE subject_id = ?`

// language=SQL
// dialect=SQLite
const deleteSubjectLinksSQL = `DELETE FROM period_subject_grades WHERE subject_id = ?`

// language=SQL
// dialect=SQLite
const deleteSubjectSQL = `DELETE FROM subjects WHERE id = ?`

// ListSubjects returns every subject in insertion order.
func (s *Store) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var out []domain.Subject
	err := s.read(ctx, "list_subjects", func(q querier) error {
		var err error
		out, err = listSubjects(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listSubjects(ctx context.Context, q querier) ([]domain.Subject, error) {
	rows, err := q.QueryContext(ctx, listSubjectsSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.Subject, 0)
	for rows.Next() {
		var sub domain.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Teacher); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CreateSubject inserts a subject and returns its id. An absent teacher is stored as NULL.
func (s *Store) CreateSubject(ctx context.Context, name string, teacher domain.Opt[string]) (int64, error) {
	const op = "create_subject"
	res, err := s.exec(ctx, op, insertSubjectSQL, name, teacher)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail(op, err)
	}
	return id, nil
}

// UpdateSubject overwrites name and teacher of subject id. Unknown ids are a no-op.
func (s *Store) UpdateSubject(ctx context.Context, id int64, name string, teacher domain.Opt[string]) error {
	_, err := s.exec(ctx, "update_subject", updateSubjectSQL, name, teacher, id)
	return err
}

// DeleteSubject removes the subject, its grades in every period and their
// association rows, atomically.
func (s *Store) DeleteSubject(ctx context.Context, subjectID int64) error {
	return s.withTx(ctx, "delete_subject", func(tx *sql.Tx) error {
		ids, err := collectIDs(ctx, tx, subjectGradeIDsSQL, subjectID)
		if err != nil {
			return fmt.Errorf("collect grades: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteSubjectLinksSQL, subjectID); err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := deleteGrades(ctx, tx, ids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteSubjectSQL, subjectID); err != nil {
			return fmt.Errorf("delete subject: %w", err)
		}
		return nil
	})
}
