/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package command exposes the grade store as named operations taking JSON
// arguments, the surface a presentation layer calls into.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gradebook/internal/domain"
	applog "gradebook/internal/log"
	"gradebook/internal/storage"
)

// ErrUnknownCommand is returned by Call for names not in Names().
var ErrUnknownCommand = errors.New("unknown command")

// Store is the part of *storage.Store the dispatcher needs.
type Store interface {
	ListPeriods(ctx context.Context) ([]domain.GradingPeriod, error)
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	ListGradesForPeriod(ctx context.Context, periodID int64) ([]domain.Grade, error)
	CreatePeriod(ctx context.Context, periodNumber, gradeLevel int64) (int64, error)
	CreateSubject(ctx context.Context, name string, teacher domain.Opt[string]) (int64, error)
	RecordGrade(ctx context.Context, periodID, subjectID int64, written, oral domain.Opt[int64], weight float64) (int64, error)
	UpdatePeriod(ctx context.Context, id, periodNumber, gradeLevel int64) error
	UpdateSubject(ctx context.Context, id int64, name string, teacher domain.Opt[string]) error
	UpdateGrade(ctx context.Context, id, subjectID int64, written, oral domain.Opt[int64], weight float64) error
	DeletePeriod(ctx context.Context, periodID int64) error
	DeleteSubject(ctx context.Context, subjectID int64) error
	DeleteGrade(ctx context.Context, gradeID int64) error
}

var _ Store = (*storage.Store)(nil)

type handler func(ctx context.Context, s Store, args json.RawMessage) (any, error)

// Created is the result of the create_* and record_grade commands.
type Created struct {
	ID int64 `json:"id"`
}

type periodArgs struct {
	ID           int64 `json:"id"`
	PeriodNumber int64 `json:"period_number"`
	GradeLevel   int64 `json:"grade_level"`
}

type subjectArgs struct {
	ID      int64              `json:"id"`
	Name    string             `json:"name"`
	Teacher domain.Opt[string] `json:"teacher"`
}

type gradeArgs struct {
	ID        int64             `json:"id"`
	PeriodID  int64             `json:"period_id"`
	SubjectID int64             `json:"subject_id"`
	Written   domain.Opt[int64] `json:"written_score"`
	Oral      domain.Opt[int64] `json:"oral_score"`
	Weight    float64           `json:"weight"`
}

type idArgs struct {
	ID       int64 `json:"id"`
	PeriodID int64 `json:"period_id"`
}

var handlers = map[string]handler{
	"list_periods": func(ctx context.Context, s Store, _ json.RawMessage) (any, error) {
		return s.ListPeriods(ctx)
	},
	"list_subjects": func(ctx context.Context, s Store, _ json.RawMessage) (any, error) {
		return s.ListSubjects(ctx)
	},
	"list_grades_for_period": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a idArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return s.ListGradesForPeriod(ctx, a.PeriodID)
	},
	"create_period": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a periodArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return created(s.CreatePeriod(ctx, a.PeriodNumber, a.GradeLevel))
	},
	"create_subject": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a subjectArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return created(s.CreateSubject(ctx, a.Name, a.Teacher))
	},
	"record_grade": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a gradeArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return created(s.RecordGrade(ctx, a.PeriodID, a.SubjectID, a.Written, a.Oral, a.Weight))
	},
	"update_period": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a periodArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.UpdatePeriod(ctx, a.ID, a.PeriodNumber, a.GradeLevel)
	},
	"update_subject": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a subjectArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.UpdateSubject(ctx, a.ID, a.Name, a.Teacher)
	},
	"update_grade": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a gradeArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.UpdateGrade(ctx, a.ID, a.SubjectID, a.Written, a.Oral, a.Weight)
	},
	"delete_period": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a idArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.DeletePeriod(ctx, a.ID)
	},
	"delete_subject": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a idArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.DeleteSubject(ctx, a.ID)
	},
	"delete_grade": func(ctx context.Context, s Store, raw json.RawMessage) (any, error) {
		var a idArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return nil, s.DeleteGrade(ctx, a.ID)
	},
}

// Names lists the available commands in sorted order.
func Names() []string {
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatcher routes named commands to a Store.
type Dispatcher struct {
	store Store
	log   *slog.Logger
}

// New returns a Dispatcher bound to s.
func New(s Store) *Dispatcher {
	return &Dispatcher{store: s, log: applog.WithComponent("command")}
}

// Call decodes args for the named command and runs it. Commands without a
// result return nil. Store errors are returned unchanged.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	h, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	res, err := h(ctx, d.store, args)
	if err != nil {
		d.log.Warn("command failed", slog.String("cmd", name), slog.Any("err", err))
		return nil, err
	}
	d.log.Debug("command ok", slog.String("cmd", name))
	return res, nil
}

func created(id int64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return Created{ID: id}, nil
}

// decode reads snake_case arguments; unknown fields are rejected. Empty
// input decodes to the zero value.
func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
