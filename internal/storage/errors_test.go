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
	"fmt"
	"testing"
)

func TestErrorKindsAndMatching(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := fmt.Errorf("wrapped: %w", newError(KindStorageFailure, "record_grade", cause))

	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected StorageFailure match")
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrConcurrencyFault) {
		t.Fatalf("kind must not match other sentinels")
	}
	if !errors.Is(err, &Error{Kind: KindStorageFailure, Op: "record_grade"}) {
		t.Fatalf("expected op-specific match")
	}
	if errors.Is(err, &Error{Kind: KindStorageFailure, Op: "delete_grade"}) {
		t.Fatalf("op mismatch should not match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause must be reachable through Unwrap")
	}
	if k, ok := KindOf(err); !ok || k != KindStorageFailure {
		t.Fatalf("KindOf = %q, %v", k, ok)
	}
	if _, ok := KindOf(cause); ok {
		t.Fatalf("plain errors have no kind")
	}
	if got := err.Error(); got != "wrapped: record_grade: StorageFailure: disk I/O error" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestErrorMarshalJSON(t *testing.T) {
	b, err := json.Marshal(newError(KindStorageUnavailable, "open", errors.New("unable to open database file")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["kind"] != "StorageUnavailable" || m["op"] != "open" || m["value"] != "unable to open database file" {
		t.Fatalf("json = %s", b)
	}
}
