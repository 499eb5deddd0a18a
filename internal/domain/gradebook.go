/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the gradebook data model: grading periods, subjects and
// grades, plus the rule that derives a grade's overall score.
package domain

import "fmt"

// GradingPeriod is one reporting interval (e.g. a quarter) at a grade level.
// Neither number is unique.
type GradingPeriod struct {
	ID           int64 `json:"id"`
	PeriodNumber int64 `json:"period_number"`
	GradeLevel   int64 `json:"grade_level"`
}

// Label renders the period the way report headers show it, e.g. "10.2".
func (p GradingPeriod) Label() string {
	return fmt.Sprintf("%d.%d", p.GradeLevel, p.PeriodNumber)
}

// Subject is a school course, optionally annotated with the teacher's name.
type Subject struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Teacher Opt[string] `json:"teacher"`
}

// Grade is one recorded assessment. SubjectID is not a column of the grade
// itself; it comes from the association row that owns the grade.
//
// Weight is the oral share in [0, 1]. It is stored as given.
type Grade struct {
	ID        int64        `json:"id"`
	SubjectID int64        `json:"subject_id"`
	Written   Opt[int64]   `json:"written_score"`
	Oral      Opt[int64]   `json:"oral_score"`
	Weight    float64      `json:"weight"`
	Overall   Opt[float64] `json:"overall_score"`
}

// Recompute refreshes Overall from the raw components.
func (g *Grade) Recompute() { g.Overall = OverallScore(g.Written, g.Oral, g.Weight) }

// OverallScore blends written and oral scores: written*(1-weight) + oral*weight.
// The result is absent unless both components are present.
func OverallScore(written, oral Opt[int64], weight float64) Opt[float64] {
	w, okW := written.Get()
	o, okO := oral.Get()
	if !okW || !okO {
		return None[float64]()
	}
	return Some(float64(w)*(1-weight) + float64(o)*weight)
}

// PeriodSubjectGrade is the association row linking a grade to the period and
// subject it was recorded under.
type PeriodSubjectGrade struct {
	PeriodID  int64 `json:"period_id"`
	SubjectID int64 `json:"subject_id"`
	GradeID   int64 `json:"grade_id"`
}

// PeriodGrades is a period together with the grades recorded in it.
type PeriodGrades struct {
	Period GradingPeriod `json:"period"`
	Grades []Grade       `json:"grades"`
}

// Gradebook is a consistent read of the whole store.
type Gradebook struct {
	Subjects []Subject      `json:"subjects"`
	Periods  []PeriodGrades `json:"periods"`
}

// SubjectByID returns the subject with the given id.
func (b Gradebook) SubjectByID(id int64) (Subject, bool) {
	for _, s := range b.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// SubjectAverage is the mean overall score of the complete grades for subjectID.
// Incomplete grades are skipped; the result is absent when none are complete.
func SubjectAverage(grades []Grade, subjectID int64) Opt[float64] {
	var sum float64
	var n int
	for _, g := range grades {
		if g.SubjectID != subjectID {
			continue
		}
		if v, ok := g.Overall.Get(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return None[float64]()
	}
	return Some(sum / float64(n))
}
