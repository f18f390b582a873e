// Package spanner is the Cloud Spanner source adapter (C8). No teacher file
// covers this kind; it is grounded structurally on the sibling bigquery
// adapter (a cloud.google.com/go client wrapped behind Config/Initialize/
// Source, introspected via an information_schema-shaped query run through
// the client's own SQL surface rather than database/sql).
package spanner

import (
	"context"
	"fmt"

	spannerapi "cloud.google.com/go/spanner"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "spanner"

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
	Instance string `json:"instance" validate:"required"`
	Database string `json:"database" validate:"required"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) dbPath() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", r.Project, r.Instance, r.Database)
}

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	client, err := spannerapi.NewClient(ctx, r.dbPath())
	if err != nil {
		return nil, fmt.Errorf("unable to create spanner client: %w", err)
	}
	return &Source{Config: r, Client: client}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client *spannerapi.Client
}

func (s *Source) SourceKind() string               { return SourceKind }
func (s *Source) SpannerClient() *spannerapi.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	iter := s.Client.Single().Query(ctx, spannerapi.Statement{SQL: "SELECT 1"})
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return nil
	}
	return err
}
func (s *Source) Close() error {
	s.Client.Close()
	return nil
}

// Introspect reads information_schema.columns, Spanner's own (GoogleSQL)
// ANSI-shaped catalog, via the client's own SQL surface.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	stmt := spannerapi.Statement{SQL: `
		SELECT table_name, column_name, spanner_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ''
		ORDER BY table_name, ordinal_position`}
	iter := s.Client.Single().Query(ctx, stmt)
	defer iter.Stop()

	tables := map[string]metadata.TableMetadata{}
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spanner: introspect columns failed: %w", err)
		}
		var tableName, columnName, spannerType, isNullable string
		if err := row.Columns(&tableName, &columnName, &spannerType, &isNullable); err != nil {
			return nil, fmt.Errorf("spanner: scan failed: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			table = metadata.TableMetadata{Catalog: s.Database, Name: tableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[columnName] = metadata.ColumnMetadata{
			Name:       columnName,
			ScalarType: mapSpannerType(spannerType),
			Nullable:   isNullable == "YES",
		}
		tables[tableName] = table
	}
	if err := attachPrimaryKeys(ctx, s.Client, tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func attachPrimaryKeys(ctx context.Context, client *spannerapi.Client, tables map[string]metadata.TableMetadata) error {
	stmt := spannerapi.Statement{SQL: `
		SELECT table_name, column_name
		FROM information_schema.index_columns
		WHERE index_type = 'PRIMARY_KEY'
		ORDER BY table_name, ordinal_position`}
	iter := client.Single().Query(ctx, stmt)
	defer iter.Stop()
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("spanner: primary key query failed: %w", err)
		}
		var tableName, columnName string
		if err := row.Columns(&tableName, &columnName); err != nil {
			return fmt.Errorf("spanner: primary key scan failed: %w", err)
		}
		if table, ok := tables[tableName]; ok {
			table.PrimaryKeys = append(table.PrimaryKeys, columnName)
			tables[tableName] = table
		}
	}
}

func mapSpannerType(spannerType string) string {
	switch {
	case spannerType == "INT64":
		return "BIGINT"
	case spannerType == "FLOAT64":
		return "DOUBLE"
	case spannerType == "BOOL":
		return "BOOLEAN"
	case spannerType == "DATE":
		return "DATE"
	case spannerType == "TIMESTAMP":
		return "TIMESTAMP"
	case spannerType == "BYTES" || (len(spannerType) >= 5 && spannerType[:5] == "BYTES"):
		return "VARBINARY"
	case spannerType == "NUMERIC":
		return "DECIMAL"
	default:
		return "VARCHAR"
	}
}
