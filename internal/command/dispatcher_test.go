/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"gradebook/internal/domain"
	"gradebook/internal/storage"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	s, err := storage.OpenInDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenInDir: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s)
}

func call(t *testing.T, d *Dispatcher, name, args string) any {
	t.Helper()
	res, err := d.Call(context.Background(), name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("%s(%s): %v", name, args, err)
	}
	return res
}

func createdID(t *testing.T, v any) int64 {
	t.Helper()
	c, ok := v.(Created)
	if !ok {
		t.Fatalf("expected Created, got %T", v)
	}
	return c.ID
}

func TestNamesCoverAllOperations(t *testing.T) {
	want := []string{
		"create_period", "create_subject", "delete_grade", "delete_period", "delete_subject",
		"list_grades_for_period", "list_periods", "list_subjects", "record_grade",
		"update_grade", "update_period", "update_subject",
	}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatchFullFlow(t *testing.T) {
	d := newDispatcher(t)

	pid := createdID(t, call(t, d, "create_period", `{"period_number":1,"grade_level":10}`))
	sid := createdID(t, call(t, d, "create_subject", `{"name":"Physics","teacher":null}`))
	gid := createdID(t, call(t, d, "record_grade", fmt.Sprintf(
		`{"period_id":%d,"subject_id":%d,"written_score":80,"oral_score":60,"weight":0.3}`, pid, sid)))

	grades, ok := call(t, d, "list_grades_for_period", fmt.Sprintf(`{"period_id":%d}`, pid)).([]domain.Grade)
	if !ok || len(grades) != 1 {
		t.Fatalf("list_grades_for_period = %#v", grades)
	}
	if v, _ := grades[0].Overall.Get(); grades[0].ID != gid || v != 74.0 {
		t.Fatalf("grade = %+v", grades[0])
	}

	call(t, d, "update_grade", fmt.Sprintf(
		`{"id":%d,"subject_id":%d,"written_score":90,"oral_score":null,"weight":0.5}`, gid, sid))
	grades = call(t, d, "list_grades_for_period", fmt.Sprintf(`{"period_id":%d}`, pid)).([]domain.Grade)
	if grades[0].Overall.IsSet() {
		t.Fatalf("overall should be absent after update: %+v", grades[0])
	}

	call(t, d, "update_period", fmt.Sprintf(`{"id":%d,"period_number":2,"grade_level":10}`, pid))
	call(t, d, "update_subject", fmt.Sprintf(`{"id":%d,"name":"Physik","teacher":"Dr Curie"}`, sid))
	subs := call(t, d, "list_subjects", "").([]domain.Subject)
	if tch, _ := subs[0].Teacher.Get(); subs[0].Name != "Physik" || tch != "Dr Curie" {
		t.Fatalf("subject = %+v", subs[0])
	}

	call(t, d, "delete_grade", fmt.Sprintf(`{"id":%d}`, gid))
	call(t, d, "delete_subject", fmt.Sprintf(`{"id":%d}`, sid))
	call(t, d, "delete_period", fmt.Sprintf(`{"id":%d}`, pid))
	if periods := call(t, d, "list_periods", "{}").([]domain.GradingPeriod); len(periods) != 0 {
		t.Fatalf("periods left: %+v", periods)
	}
}

func TestDispatchErrors(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()

	if _, err := d.Call(ctx, "drop_everything", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if _, err := d.Call(ctx, "create_period", json.RawMessage(`{"period":1}`)); err == nil {
		t.Fatalf("unknown argument fields must be rejected")
	}
	_, err := d.Call(ctx, "record_grade", json.RawMessage(`{"period_id":5,"subject_id":6,"weight":0.5}`))
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Fatalf("expected StorageFailure from store, got %v", err)
	}
	b, _ := json.Marshal(err)
	var m map[string]string
	if jerr := json.Unmarshal(b, &m); jerr != nil || m["kind"] != "StorageFailure" {
		t.Fatalf("error json = %s (%v)", b, jerr)
	}
}
