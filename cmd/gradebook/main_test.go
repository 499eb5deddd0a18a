/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// env isolates config, data dir and keyring lookups for a CLI run.
func env(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GB_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("GB_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("GB_MIRROR_DSN", "postgres://unused")
	t.Setenv("GB_MIRROR_ENABLED", "false")
	t.Setenv("GB_LOG_LEVEL", "error")
	t.Setenv("GB_LOG_FILE", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndOps(t *testing.T) {
	if code, out, _ := runCLI(t, "version"); code != 0 || strings.TrimSpace(out) == "" {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	code, out, _ := runCLI(t, "ops")
	if code != 0 || !strings.Contains(out, "record_grade") || strings.Count(out, "\n") != 12 {
		t.Fatalf("ops: code=%d out=%q", code, out)
	}
}

func TestCallCreatesAndListsData(t *testing.T) {
	dir := env(t)
	if code, _, errOut := runCLI(t, "call", "create_period", `{"period_number":1,"grade_level":10}`); code != 0 {
		t.Fatalf("create_period failed: %s", errOut)
	}
	if code, _, errOut := runCLI(t, "call", "create_subject", `{"name":"Physics"}`); code != 0 {
		t.Fatalf("create_subject failed: %s", errOut)
	}
	if code, _, errOut := runCLI(t, "call", "record_grade", `{"period_id":1,"subject_id":1,"written_score":80,"oral_score":60,"weight":0.3}`); code != 0 {
		t.Fatalf("record_grade failed: %s", errOut)
	}
	code, out, _ := runCLI(t, "call", "list_grades_for_period", `{"period_id":1}`)
	if code != 0 {
		t.Fatalf("list failed")
	}
	var grades []map[string]any
	if err := json.Unmarshal([]byte(out), &grades); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(grades) != 1 || grades[0]["overall_score"] != 74.0 {
		t.Fatalf("grades = %v", grades)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "gradebook.sqlite")); err != nil {
		t.Fatalf("database not created in data dir: %v", err)
	}
	if code, out, _ := runCLI(t, "check"); code != 0 || strings.TrimSpace(out) != "ok" {
		t.Fatalf("check: code=%d out=%q", code, out)
	}
}

func TestExportImportAndReport(t *testing.T) {
	dir := env(t)
	runCLI(t, "call", "create_period", `{"period_number":2,"grade_level":9}`)
	runCLI(t, "call", "create_subject", `{"name":"Art","teacher":"Mr Smith"}`)
	runCLI(t, "call", "record_grade", `{"period_id":1,"subject_id":1,"written_score":90,"oral_score":70,"weight":0.5}`)

	doc := filepath.Join(dir, "export.json")
	if code, _, errOut := runCLI(t, "export", doc); code != 0 {
		t.Fatalf("export failed: %s", errOut)
	}
	pdf := filepath.Join(dir, "report.pdf")
	if code, _, errOut := runCLI(t, "report", pdf, "Class", "9a"); code != 0 {
		t.Fatalf("report failed: %s", errOut)
	}
	if fi, err := os.Stat(pdf); err != nil || fi.Size() == 0 {
		t.Fatalf("report missing: %v", err)
	}

	// Import into a second data dir.
	t.Setenv("GB_DATA_DIR", filepath.Join(dir, "other"))
	code, out, errOut := runCLI(t, "import", doc)
	if code != 0 || !strings.Contains(out, "1 grade(s)") {
		t.Fatalf("import: code=%d out=%q err=%q", code, out, errOut)
	}
}

func TestErrorsAndUsage(t *testing.T) {
	env(t)
	if code, _, _ := runCLI(t, "call"); code != 2 {
		t.Fatalf("missing op should be a usage error, got %d", code)
	}
	if code, _, errOut := runCLI(t, "call", "no_such_op"); code != 1 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown op: code=%d err=%q", code, errOut)
	}
	if code, _, errOut := runCLI(t, "mirror"); code != 1 || !strings.Contains(errOut, "disabled") {
		t.Fatalf("mirror disabled: code=%d err=%q", code, errOut)
	}
	if code, _, _ := runCLI(t, "frobnicate"); code != 2 {
		t.Fatalf("unknown command should print usage")
	}
}

func TestFirstRunCreatesDataDir(t *testing.T) {
	dir := env(t)
	data := filepath.Join(dir, "fresh", "nested", "data")
	t.Setenv("GB_DATA_DIR", data)
	if code, out, errOut := runCLI(t, "check"); code != 0 || strings.TrimSpace(out) != "ok" {
		t.Fatalf("check on fresh install: code=%d out=%q err=%q", code, out, errOut)
	}
	if _, err := os.Stat(filepath.Join(data, "gradebook.sqlite")); err != nil {
		t.Fatalf("database not created: %v", err)
	}
}

func TestUsageErrorsDoNotOpenStore(t *testing.T) {
	dir := env(t)
	cases := [][]string{
		{"call"},
		{"export"},
		{"import"},
		{"report"},
		{"backup"},
		{"frobnicate"},
	}
	for _, args := range cases {
		code, out, errOut := runCLI(t, args...)
		if code != 2 {
			t.Fatalf("%v: code=%d, want 2", args, code)
		}
		if out != "" || !strings.Contains(errOut, "Usage:") {
			t.Fatalf("%v: usage should go to stderr, out=%q err=%q", args, out, errOut)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); !os.IsNotExist(err) {
		t.Fatalf("usage errors touched the data dir: %v", err)
	}
}
