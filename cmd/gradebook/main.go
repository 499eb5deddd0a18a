/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"gradebook/internal/command"
	"gradebook/internal/config"
	"gradebook/internal/crash"
	"gradebook/internal/export"
	applog "gradebook/internal/log"
	"gradebook/internal/mirror"
	"gradebook/internal/storage"
	"gradebook/internal/version"

	"gopkg.in/yaml.v3"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Gradebook: local grade store")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  gradebook version|-v|--version       Show version")
	_, _ = fmt.Fprintln(w, "  gradebook config                     Print the effective configuration")
	_, _ = fmt.Fprintln(w, "  gradebook ops                        List the store operations")
	_, _ = fmt.Fprintln(w, "  gradebook call <op> [json-args]      Run one operation, e.g. call create_period '{\"period_number\":1,\"grade_level\":10}'")
	_, _ = fmt.Fprintln(w, "  gradebook export <file|->            Write the store as a JSON document")
	_, _ = fmt.Fprintln(w, "  gradebook import <file>              Add the content of a JSON document to the store")
	_, _ = fmt.Fprintln(w, "  gradebook report <file.pdf> [title]  Render a PDF report, one page per grading period")
	_, _ = fmt.Fprintln(w, "  gradebook backup <file>              Write a compacted copy of the database")
	_, _ = fmt.Fprintln(w, "  gradebook check                      Verify database and association integrity")
	_, _ = fmt.Fprintln(w, "  gradebook mirror                     Push a snapshot to the PostgreSQL mirror")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "ops":
		for _, name := range command.Names() {
			_, _ = fmt.Fprintln(stdout, name)
		}
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}
	if n, ok := minArgs[args[0]]; !ok || len(args) < n {
		usage(stderr)
		return 2
	}

	cfg, dsn, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	applog.Init(cfg.LogOptions())
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	if args[0] == "config" {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
		if p, err := config.ConfigPath(); err == nil {
			_, _ = fmt.Fprintf(stdout, "# %s\n", p)
		}
		_, _ = stdout.Write(b)
		_, _ = fmt.Fprintf(stdout, "# database: %s\n", cfg.DatabasePath())
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := storage.OpenAt(cfg.DatabasePath())
	if err != nil {
		l.Error("open store failed", slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			l.Error("close store failed", slog.Any("err", err))
		}
	}()
	defer crash.Recover(cfg.Storage.DataDir, st)

	if err := dispatch(ctx, cfg, dsn, st, args, stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(stderr)
			return 2
		}
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

// minArgs lists the commands that load the configuration, with their argument
// count including the command itself.
var minArgs = map[string]int{
	"config": 1,
	"call":   2,
	"export": 2,
	"import": 2,
	"report": 2,
	"backup": 2,
	"check":  1,
	"mirror": 1,
}

func dispatch(ctx context.Context, cfg config.AppConfig, dsn string, st *storage.Store, args []string, stdout io.Writer) error {
	switch args[0] {
	case "call":
		var raw json.RawMessage
		if len(args) > 2 {
			raw = json.RawMessage(args[2])
		}
		res, err := command.New(st).Call(ctx, args[1], raw)
		if err != nil {
			return err
		}
		if res == nil {
			_, _ = fmt.Fprintln(stdout, "ok")
			return nil
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)

	case "export":
		if args[1] == "-" {
			return export.ExportJSON(ctx, st, stdout)
		}
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		if err := export.ExportJSON(ctx, st, f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Exported to", args[1])
		return nil

	case "import":
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		stats, err := export.ImportJSON(ctx, st, f)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Imported %d subject(s), %d period(s), %d grade(s)\n", stats.Subjects, stats.Periods, stats.Grades)
		return nil

	case "report":
		book, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		opt := export.ReportOptions{}
		if len(args) > 2 {
			opt.Title = strings.Join(args[2:], " ")
		}
		if err := export.ReportPDF(book, args[1], opt); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Report written to", args[1])
		return nil

	case "backup":
		if err := st.Backup(ctx, args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "Backup written to", args[1])
		return nil

	case "check":
		if err := st.Check(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "ok")
		return nil

	case "mirror":
		if !cfg.Mirror.Enabled {
			return fmt.Errorf("mirror is disabled (set mirror.enabled or %s)", config.EnvMirrorEnabled)
		}
		mctx, cancel := context.WithTimeout(ctx, cfg.Mirror.Timeout())
		defer cancel()
		book, err := st.Snapshot(mctx)
		if err != nil {
			return err
		}
		m, err := mirror.Open(mctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		stats, err := m.Push(mctx, book)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Mirrored %d subject(s), %d period(s), %d grade(s)\n", stats.Subjects, stats.Periods, stats.Grades)
		return nil
	}
	return errUsage
}
