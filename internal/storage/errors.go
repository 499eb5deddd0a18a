/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
)

// Kind classifies a store error.
type Kind string

const (
	// KindStorageUnavailable: the backing file could not be opened or initialized.
	KindStorageUnavailable Kind = "StorageUnavailable"
	// KindStorageFailure: a single operation failed (I/O, constraint, lost connection).
	KindStorageFailure Kind = "StorageFailure"
	// KindConcurrencyFault: the exclusive access guard is unusable, e.g. the store was closed.
	KindConcurrencyFault Kind = "ConcurrencyFault"
)

// Error is returned by every Store operation. It carries the kind, the
// operation name and the underlying driver error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrStorageFailure     = &Error{Kind: KindStorageFailure}
	ErrConcurrencyFault   = &Error{Kind: KindConcurrencyFault}
)

var errClosed = errors.New("store is closed")

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind. A target with an Op only matches that operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Message returns the underlying driver message without kind or operation.
func (e *Error) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// MarshalJSON renders the error as {"kind": ..., "value": ...} for callers
// that forward errors across a serialization boundary.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  Kind   `json:"kind"`
		Op    string `json:"op,omitempty"`
		Value string `json:"value,omitempty"`
	}{e.Kind, e.Op, e.Message()})
}

// KindOf reports the kind of a store error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
