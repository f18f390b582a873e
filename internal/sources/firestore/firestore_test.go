// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firestore_test

import (
	"testing"
	"time"

	"github.com/hasura/ndc-embedded/internal/sources/firestore"
)

func TestFirestoreValueToJSON_RoundTrip(t *testing.T) {
	original := map[string]any{
		"name":   "Test",
		"count":  int64(42),
		"price":  19.99,
		"active": true,
		"tags":   []any{"tag1", "tag2"},
		"metadata": map[string]any{
			"created": time.Now(),
		},
		"nullField": nil,
	}

	jsonRepresentation := firestore.FirestoreValueToJSON(original)

	jsonMap, ok := jsonRepresentation.(map[string]any)
	if !ok {
		t.Fatalf("Expected map, got %T", jsonRepresentation)
	}

	metadata, ok := jsonMap["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata should be a map, got %T", jsonMap["metadata"])
	}
	if _, ok := metadata["created"].(string); !ok {
		t.Errorf("created should be a string, got %T", metadata["created"])
	}
}
