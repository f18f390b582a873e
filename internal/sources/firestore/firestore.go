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

package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "firestore"

var _ sources.Config = Config{}

func init() {
	if !sources.Register(SourceKind, newConfig) {
		panic(fmt.Sprintf("source kind %q already registered", SourceKind))
	}
}

func newConfig(ctx context.Context, name string, options map[string]any) (sources.Config, error) {
	actual := Config{Name: name}
	if err := sources.DecodeOptions(options, &actual); err != nil {
		return nil, err
	}
	return actual, nil
}

type Config struct {
	Name     string `json:"name"`
	Project  string `json:"project" validate:"required"`
	Database string `json:"database,omitempty"`
	// SampleSize bounds how many documents of each top-level collection are
	// scanned to infer a column set, matching mongodb's introspection
	// strategy for schemaless stores.
	SampleSize int `json:"sampleSize,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	_, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	database := r.Database
	if database == "" {
		database = "(default)"
	}
	client, err := firestore.NewClientWithDatabase(ctx, r.Project, database)
	if err != nil {
		return nil, fmt.Errorf("unable to create firestore client: %w", err)
	}

	sampleSize := r.SampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}
	return &Source{Config: r, Client: client, sampleSize: sampleSize}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client     *firestore.Client
	sampleSize int
}

func (s *Source) SourceKind() string { return SourceKind }
func (s *Source) FirestoreClient() *firestore.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.Client.Collections(ctx).GetAll()
	return err
}
func (s *Source) Close() error { return s.Client.Close() }

// Introspect lists top-level collections and samples up to sampleSize
// documents of each to infer a column set, mirroring mongodb's best-effort
// approach to a schemaless store.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	colRefs, err := s.Client.Collections(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: listing collections failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, colRef := range colRefs {
		docs, err := colRef.Limit(s.sampleSize).Documents(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("firestore: sampling collection %s failed: %w", colRef.ID, err)
		}

		columns := map[string]metadata.ColumnMetadata{}
		for _, doc := range docs {
			for field, value := range doc.Data() {
				col, seen := columns[field]
				if !seen {
					col = metadata.ColumnMetadata{Name: field, ScalarType: mapFirestoreType(value)}
				}
				columns[field] = col
			}
		}
		columns["_id"] = metadata.ColumnMetadata{Name: "_id", ScalarType: "VARCHAR", Nullable: false}

		tables[colRef.ID] = metadata.TableMetadata{
			Name:        colRef.ID,
			Description: "inferred from a document sample; Firestore collections have no fixed schema",
			Columns:     columns,
			PrimaryKeys: []string{"_id"},
		}
	}
	return tables, nil
}

func mapFirestoreType(value any) string {
	switch value.(type) {
	case int64:
		return "BIGINT"
	case float64:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// FirestoreValueToJSON converts a Firestore document's native value tree
// (which can embed time.Time, *latlng.LatLng and other non-JSON-native
// types) into a tree built only of JSON-marshalable types, the shape C6's
// row sets require.
func FirestoreValueToJSON(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = FirestoreValueToJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = FirestoreValueToJSON(val)
		}
		return out
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return v
	}
}
