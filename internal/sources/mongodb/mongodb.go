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

package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "mongodb"

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
	Uri      string `json:"uri" validate:"required"`
	Database string `json:"database" validate:"required"`
	// SampleSize bounds how many documents of each collection are scanned
	// to infer a column set; MongoDB is schemaless, so introspection is
	// necessarily best-effort.
	SampleSize int64 `json:"sampleSize,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	client, err := mongo.Connect(options.Client().ApplyURI(r.Uri))
	if err != nil {
		return nil, fmt.Errorf("unable to create MongoDB client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
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
	Client     *mongo.Client
	sampleSize int64
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) MongoClient() *mongo.Client      { return s.Client }
func (s *Source) Ping(ctx context.Context) error  { return s.Client.Ping(ctx, nil) }
func (s *Source) Close() error                    { return s.Client.Disconnect(context.Background()) }

// Introspect lists the database's collections and samples up to
// sampleSize documents of each to infer a column set, per §4.7's
// "listCollections + bounded document sample" contract. Fields seen only
// on some sampled documents are still reported, marked nullable.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	db := s.Client.Database(s.Database)
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: listCollections failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, name := range names {
		cur, err := db.Collection(name).Find(ctx, bson.D{}, options.Find().SetLimit(s.sampleSize))
		if err != nil {
			return nil, fmt.Errorf("mongodb: sampling collection %s failed: %w", name, err)
		}

		columns := map[string]metadata.ColumnMetadata{}
		seenCount := map[string]int{}
		docCount := 0
		for cur.Next(ctx) {
			var doc bson.M
			if err := cur.Decode(&doc); err != nil {
				cur.Close(ctx)
				return nil, fmt.Errorf("mongodb: decode sample failed: %w", err)
			}
			docCount++
			for field, value := range doc {
				col, seen := columns[field]
				if !seen {
					col = metadata.ColumnMetadata{Name: field, ScalarType: mapBSONType(value)}
				}
				columns[field] = col
				seenCount[field]++
			}
		}
		cur.Close(ctx)

		for field, col := range columns {
			col.Nullable = seenCount[field] < docCount
			columns[field] = col
		}

		tables[name] = metadata.TableMetadata{
			Schema:      s.Database,
			Name:        name,
			Description: "inferred from a document sample; MongoDB collections have no fixed schema",
			Columns:     columns,
			PrimaryKeys: []string{"_id"},
		}
	}
	return tables, nil
}

func mapBSONType(value any) string {
	switch value.(type) {
	case int32:
		return "INTEGER"
	case int64:
		return "BIGINT"
	case float64:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	case bson.DateTime:
		return "TIMESTAMP"
	case bson.ObjectID:
		return "VARCHAR"
	default:
		return "VARCHAR"
	}
}
