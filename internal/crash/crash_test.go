/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gradebook/internal/domain"
	"gradebook/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Gradebook Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
}

func TestRecoverWritesReportAndStoreCopy(t *testing.T) {
	// Keep stderr quiet.
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	s, err := storage.OpenInDir(dir)
	if err != nil {
		t.Fatalf("OpenInDir: %v", err)
	}
	defer s.Close()
	if _, err := s.CreateSubject(context.Background(), "Geography", domain.None[string]()); err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}

	func() {
		defer Recover(dir, s)
		panic("kaboom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	entries, err := os.ReadDir(filepath.Join(dir, DirName))
	if err != nil {
		t.Fatalf("read crash dir: %v", err)
	}
	var report, copyPath string
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".log"):
			report = filepath.Join(dir, DirName, e.Name())
		case strings.HasSuffix(e.Name(), ".sqlite"):
			copyPath = filepath.Join(dir, DirName, e.Name())
		}
	}
	if report == "" || copyPath == "" {
		t.Fatalf("expected report and database copy, got %v", entries)
	}
	b, _ := os.ReadFile(report)
	if !strings.Contains(string(b), "Panic: kaboom") {
		t.Fatalf("report does not contain panic: %s", b)
	}

	c, err := storage.Open(copyPath)
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer c.Close()
	subs, err := c.ListSubjects(context.Background())
	if err != nil || len(subs) != 1 || subs[0].Name != "Geography" {
		t.Fatalf("copy content = %+v, %v", subs, err)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()

	func() {
		defer Recover(t.TempDir(), nil)
	}()
	if called {
		t.Fatalf("exit must not be called without a panic")
	}
}
