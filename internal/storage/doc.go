/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the grade store.
// It keeps grading periods, subjects and grades in an embedded SQLite file (default <data dir>/gradebook.sqlite).
// Grades are linked to their period and subject only through the period_subject_grades association table;
// deletes of periods, subjects and grades remove the dependent association and grade rows in the same transaction.
// All operations are serialized behind one exclusive guard and fail with a kind-tagged *Error.
package storage
