/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gradebook/internal/domain"
	applog "gradebook/internal/log"
	"gradebook/internal/version"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// DocumentFormat and DocumentVersion identify the JSON export document.
const (
	DocumentFormat  = "gradebook-export"
	DocumentVersion = 1
)

//go:embed schema/export.schema.json
var schemaBytes []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Document is the JSON export of a whole grade store.
type Document struct {
	Format     string                `json:"format"`
	Version    int                   `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	App        string                `json:"app"`
	Subjects   []domain.Subject      `json:"subjects"`
	Periods    []domain.PeriodGrades `json:"periods"`
}

// Snapshotter is implemented by *storage.Store.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.Gradebook, error)
}

// Importer is the subset of *storage.Store used to replay a document.
type Importer interface {
	CreatePeriod(ctx context.Context, periodNumber, gradeLevel int64) (int64, error)
	CreateSubject(ctx context.Context, name string, teacher domain.Opt[string]) (int64, error)
	RecordGrade(ctx context.Context, periodID, subjectID int64, written, oral domain.Opt[int64], weight float64) (int64, error)
}

// ImportStats counts the rows created by ImportJSON.
type ImportStats struct {
	Subjects int
	Periods  int
	Grades   int
}

// ValidationError lists the schema violations of an import document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "export document does not conform to schema: " + strings.Join(e.Problems, "; ")
}

// NewDocument wraps a snapshot into an export document.
func NewDocument(book domain.Gradebook) Document {
	doc := Document{
		Format:     DocumentFormat,
		Version:    DocumentVersion,
		ExportedAt: time.Now().UTC(),
		App:        version.String(),
		Subjects:   book.Subjects,
		Periods:    book.Periods,
	}
	if doc.Subjects == nil {
		doc.Subjects = []domain.Subject{}
	}
	if doc.Periods == nil {
		doc.Periods = []domain.PeriodGrades{}
	}
	for i := range doc.Periods {
		if doc.Periods[i].Grades == nil {
			doc.Periods[i].Grades = []domain.Grade{}
		}
	}
	return doc
}

// ExportJSON writes the current store content as an indented JSON document.
func ExportJSON(ctx context.Context, src Snapshotter, w io.Writer) error {
	book, err := src.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(book)); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	applog.WithOperation(applog.WithComponent("export"), "export_json").Info("export written",
		slog.Int("subjects", len(book.Subjects)), slog.Int("periods", len(book.Periods)))
	return nil
}

// Validate checks data against the embedded export schema.
func Validate(data []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
	})
	if schemaErr != nil {
		return fmt.Errorf("load export schema: %w", schemaErr)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate export: %w", err)
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, e := range res.Errors() {
		ve.Problems = append(ve.Problems, e.String())
	}
	return ve
}

// ImportJSON validates a document read from r and replays it into dst.
// Ids are reassigned by the store; grades follow their period and subject.
// Overall scores in the document are ignored and derived again on insert.
// Rows are added to existing content. Subject references are checked before
// the first write; a store failure later on leaves the rows created before it.
func ImportJSON(ctx context.Context, dst Importer, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	data, err := io.ReadAll(r)
	if err != nil {
		return stats, fmt.Errorf("read import: %w", err)
	}
	if err := Validate(data); err != nil {
		return stats, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return stats, fmt.Errorf("decode import: %w", err)
	}

	if err := checkReferences(doc); err != nil {
		return stats, err
	}

	subjects := make(map[int64]int64, len(doc.Subjects))
	for _, s := range doc.Subjects {
		id, err := dst.CreateSubject(ctx, s.Name, s.Teacher)
		if err != nil {
			return stats, err
		}
		subjects[s.ID] = id
		stats.Subjects++
	}

	for _, pg := range doc.Periods {
		pid, err := dst.CreatePeriod(ctx, pg.Period.PeriodNumber, pg.Period.GradeLevel)
		if err != nil {
			return stats, err
		}
		stats.Periods++
		for _, g := range pg.Grades {
			if _, err := dst.RecordGrade(ctx, pid, subjects[g.SubjectID], g.Written, g.Oral, g.Weight); err != nil {
				return stats, err
			}
			stats.Grades++
		}
	}

	applog.WithOperation(applog.WithComponent("export"), "import_json").Info("import finished",
		slog.Int("subjects", stats.Subjects), slog.Int("periods", stats.Periods), slog.Int("grades", stats.Grades))
	return stats, nil
}

// checkReferences rejects duplicate subject ids and grades pointing at a
// subject the document does not carry. It runs before anything is written.
func checkReferences(doc Document) error {
	known := make(map[int64]bool, len(doc.Subjects))
	for _, s := range doc.Subjects {
		if known[s.ID] {
			return fmt.Errorf("duplicate subject id %d", s.ID)
		}
		known[s.ID] = true
	}
	for _, pg := range doc.Periods {
		for _, g := range pg.Grades {
			if !known[g.SubjectID] {
				return fmt.Errorf("grade %d references unknown subject %d", g.ID, g.SubjectID)
			}
		}
	}
	return nil
}

// IsValidationError reports whether err is a schema violation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
