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
const listPeriodsSQL = `SELECT id, period_number, grade_level FROM grading_periods ORDER BY id`

// language=SQL
// dialect=SQLite
const insertPeriodSQL = `INSERT INTO grading_periods(period_number, grade_level) VALUES (?, ?)`

// language=SQL
// dialect=SQLite
const updatePeriodSQL = `UPDATE grading_periods SET period_number = ?, grade_level = ? WHERE id = ?`

// language=SQL
// dialect=SQLite
const periodGradeIDsSQL = `SELECT grade_id FROM period_subject_grades WHERE period_id = ?`

// language=SQL
// dialect=SQLite
const deletePeriodLinksSQL = `DELETE FROM period_subject_grades WHERE period_id = ?`

// language=SQL
// dialect=SQLite
const deletePeriodSQL = `DELETE FROM grading_periods WHERE id = ?`

// ListPeriods returns every grading period in insertion order.
func (s *Store) ListPeriods(ctx context.Context) ([]domain.GradingPeriod, error) {
	var out []domain.GradingPeriod
	err := s.read(ctx, "list_periods", func(q querier) error {
		var err error
		out, err = listPeriods(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listPeriods(ctx context.Context, q querier) ([]domain.GradingPeriod, error) {
	rows, err := q.QueryContext(ctx, listPeriodsSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.GradingPeriod, 0)
	for rows.Next() {
		var p domain.GradingPeriod
		if err := rows.Scan(&p.ID, &p.PeriodNumber, &p.GradeLevel); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePeriod inserts a grading period and returns its id.
func (s *Store) CreatePeriod(ctx context.Context, periodNumber, gradeLevel int64) (int64, error) {
	const op = "create_period"
	res, err := s.exec(ctx, op, insertPeriodSQL, periodNumber, gradeLevel)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail(op, err)
	}
	return id, nil
}

// UpdatePeriod overwrites both numbers of period id. Unknown ids are a no-op.
func (s *Store) UpdatePeriod(ctx context.Context, id, periodNumber, gradeLevel int64) error {
	_, err := s.exec(ctx, "update_period", updatePeriodSQL, periodNumber, gradeLevel, id)
	return err
}

// DeletePeriod removes the period, every grade recorded in it and their
// association rows, atomically.
func (s *Store) DeletePeriod(ctx context.Context, periodID int64) error {
	return s.withTx(ctx, "delete_period", func(tx *sql.Tx) error {
		ids, err := collectIDs(ctx, tx, periodGradeIDsSQL, periodID)
		if err != nil {
			return fmt.Errorf("collect grades: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deletePeriodLinksSQL, periodID); err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := deleteGrades(ctx, tx, ids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deletePeriodSQL, periodID); err != nil {
			return fmt.Errorf("delete period: %w", err)
		}
		return nil
	})
}

// collectIDs runs a single-column id query and returns all values.
func collectIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
