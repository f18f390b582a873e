// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cassandra_test

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hasura/ndc-embedded/internal/sources/cassandra"
)

// TestFailInitializationBadCAPath tests the TLS setup path fails fast on an
// unreadable CA file, without attempting a cluster connection.
func TestFailInitializationBadCAPath(t *testing.T) {
	t.Parallel()

	cfg := cassandra.Config{
		Name:   "instance",
		Hosts:  []string{"localhost"},
		CAPath: "/nonexistent/ca.crt",
	}
	_, err := cfg.Initialize(context.Background(), noop.NewTracerProvider().Tracer("test"))
	if err == nil {
		t.Fatalf("expected error for unreadable caPath, got nil")
	}
	if !strings.Contains(err.Error(), "caPath") {
		t.Fatalf("unexpected error: %v", err)
	}
}
