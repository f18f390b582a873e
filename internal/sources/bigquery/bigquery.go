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

// Package bigquery is the BigQuery source adapter (C8), trimmed from the
// teacher's session/write-mode-aware tool-invocation client down to the
// Config/Initialize/Source shape introspection needs: no SPEC_FULL
// component dispatches a BigQuery write or manages a session, so that
// machinery has no caller here.
package bigquery

import (
	"context"
	"fmt"

	bigqueryapi "cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "bigquery"

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
	Location string `json:"location,omitempty"`
	Dataset  string `json:"dataset" validate:"required"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	cred, err := google.FindDefaultCredentials(ctx, bigqueryapi.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find default Google Cloud credentials: %w", err)
	}

	client, err := bigqueryapi.NewClient(ctx, r.Project, option.WithCredentials(cred))
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client for project %q: %w", r.Project, err)
	}
	if r.Location != "" {
		client.Location = r.Location
	}
	return &Source{Config: r, Client: client}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client *bigqueryapi.Client
}

func (s *Source) SourceKind() string                  { return SourceKind }
func (s *Source) BigQueryClient() *bigqueryapi.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.Client.Dataset(s.Dataset).Metadata(ctx)
	return err
}
func (s *Source) Close() error { return s.Client.Close() }

// Introspect reads INFORMATION_SCHEMA.COLUMNS for the configured dataset,
// BigQuery's per-dataset equivalent of the ANSI information_schema.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	q := s.Client.Query(fmt.Sprintf(
		"SELECT table_name, column_name, data_type, is_nullable FROM `%s.%s.INFORMATION_SCHEMA.COLUMNS` ORDER BY table_name, ordinal_position",
		s.Project, s.Dataset))
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: introspect columns failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for {
		var row struct {
			TableName  string `bigquery:"table_name"`
			ColumnName string `bigquery:"column_name"`
			DataType   string `bigquery:"data_type"`
			IsNullable string `bigquery:"is_nullable"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: scan failed: %w", err)
		}
		table, ok := tables[row.TableName]
		if !ok {
			table = metadata.TableMetadata{Catalog: s.Project, Schema: s.Dataset, Name: row.TableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[row.ColumnName] = metadata.ColumnMetadata{
			Name:       row.ColumnName,
			ScalarType: mapBigQueryType(row.DataType),
			Nullable:   row.IsNullable == "YES",
		}
		tables[row.TableName] = table
	}
	return tables, nil
}

func mapBigQueryType(dataType string) string {
	switch dataType {
	case "INT64":
		return "BIGINT"
	case "FLOAT64":
		return "DOUBLE"
	case "NUMERIC", "BIGNUMERIC":
		return "DECIMAL"
	case "BOOL":
		return "BOOLEAN"
	case "DATE":
		return "DATE"
	case "TIMESTAMP", "DATETIME":
		return "TIMESTAMP"
	case "BYTES":
		return "VARBINARY"
	default:
		return "VARCHAR"
	}
}
