/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gradebook/internal/domain"
	applog "gradebook/internal/log"

	"github.com/jung-kurt/gofpdf"
)

// ReportOptions controls the PDF report. Units are millimetres.
type ReportOptions struct {
	Title    string
	PageSize string // "A4" (default) or "Letter"
}

// column layout of the grade table
var reportColumns = []struct {
	title string
	width float64
	align string
}{
	{"Subject", 50, "L"},
	{"Teacher", 45, "L"},
	{"Written", 20, "R"},
	{"Oral", 20, "R"},
	{"Weight", 20, "R"},
	{"Overall", 25, "R"},
}

// ReportPDF renders book to outPath: one page per grading period with the
// grade table and the average overall score per subject. A book without
// periods yields a single page saying so.
func ReportPDF(book domain.Gradebook, outPath string, opt ReportOptions) error {
	if strings.TrimSpace(outPath) == "" {
		return fmt.Errorf("output path is required")
	}
	size := "A4"
	if strings.EqualFold(opt.PageSize, "letter") {
		size = "Letter"
	}
	title := opt.Title
	if title == "" {
		title = "Gradebook"
	}

	pdf := gofpdf.New("P", "mm", size, "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Gradebook", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	// Core fonts are cp1252; names may carry umlauts.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(book.Periods) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, "No grading periods recorded.", "", 1, "L", false, 0, "")
	}

	for _, pg := range book.Periods {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		heading := fmt.Sprintf("Grade level %d, period %d (%s)", pg.Period.GradeLevel, pg.Period.PeriodNumber, pg.Period.Label())
		pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
		pdf.Ln(2)

		gradeTable(pdf, tr, book, pg.Grades)
		pdf.Ln(6)
		averagesTable(pdf, tr, book, pg.Grades)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	applog.WithOperation(applog.WithComponent("export"), "report_pdf").Info("report written",
		slog.String("path", outPath), slog.Int("pages", len(book.Periods)))
	return nil
}

func gradeTable(pdf *gofpdf.Fpdf, tr func(string) string, book domain.Gradebook, grades []domain.Grade) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range reportColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(grades) == 0 {
		pdf.CellFormat(totalWidth(), 7, "No grades recorded.", "1", 1, "L", false, 0, "")
		return
	}
	for _, g := range grades {
		sub, _ := book.SubjectByID(g.SubjectID)
		cells := []string{
			tr(sub.Name),
			tr(sub.Teacher.OrElse("")),
			g.Written.String(),
			g.Oral.String(),
			formatScore(g.Weight),
			optScore(g.Overall),
		}
		for i, c := range reportColumns {
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func averagesTable(pdf *gofpdf.Fpdf, tr func(string) string, book domain.Gradebook, grades []domain.Grade) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Subject averages", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	seen := map[int64]bool{}
	for _, g := range grades {
		if seen[g.SubjectID] {
			continue
		}
		seen[g.SubjectID] = true
		sub, _ := book.SubjectByID(g.SubjectID)
		pdf.CellFormat(95, 7, tr(sub.Name), "B", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, optScore(domain.SubjectAverage(grades, g.SubjectID)), "B", 1, "R", false, 0, "")
	}
	if len(seen) == 0 {
		pdf.CellFormat(0, 7, "-", "", 1, "L", false, 0, "")
	}
}

func totalWidth() float64 {
	var w float64
	for _, c := range reportColumns {
		w += c.width
	}
	return w
}

func optScore(v domain.Opt[float64]) string {
	f, ok := v.Get()
	if !ok {
		return "-"
	}
	return formatScore(f)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
