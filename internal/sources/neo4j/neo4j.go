// Package neo4j is the Neo4j source adapter (C8). No teacher file covers
// this kind; it is grounded structurally on the sibling mongodb adapter
// (a driver client wrapped behind Config/Initialize/Source, introspected by
// sampling the database's own schema-discovery procedure rather than a SQL
// catalog), dialing through neo4j-go-driver/v6.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "neo4j"

var _ sources.Config = Config{}

func init() {
	if !sources.Register(SourceKind, newConfig) {
		panic(fmt.Sprintf("source kind %q already registered", SourceKind))
	}
}

func newConfig(ctx context.Context, name string, options map[string]any) (sources.Config, error) {
	actual := Config{Name: name, Database: "neo4j"}
	if err := sources.DecodeOptions(options, &actual); err != nil {
		return nil, err
	}
	return actual, nil
}

type Config struct {
	Name     string `json:"name"`
	URI      string `json:"uri" validate:"required"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
	Database string `json:"database,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	driver, err := neo4j.NewDriverWithContext(r.URI, neo4j.BasicAuth(r.User, r.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("unable to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Driver: driver}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Driver neo4j.DriverWithContext
}

func (s *Source) SourceKind() string               { return SourceKind }
func (s *Source) Neo4jDriver() neo4j.DriverWithContext { return s.Driver }
func (s *Source) Ping(ctx context.Context) error    { return s.Driver.VerifyConnectivity(ctx) }
func (s *Source) Close() error                      { return s.Driver.Close(context.Background()) }

// Introspect calls db.schema.nodeTypeProperties(), Neo4j's own schema
// discovery procedure, and maps each distinct node label onto one
// pseudo-table with its observed properties as columns. Neo4j has no
// declared schema, so property types/nullability are inferred from what
// the procedure has seen across existing nodes.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.Database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "CALL db.schema.nodeTypeProperties()", nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j: introspect schema failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for result.Next(ctx) {
		record := result.Record()
		labels, _ := record.Get("nodeLabels")
		propertyName, _ := record.Get("propertyName")
		propertyTypes, _ := record.Get("propertyTypes")
		mandatory, _ := record.Get("mandatory")

		labelList, ok := labels.([]any)
		if !ok || len(labelList) == 0 {
			continue
		}
		label := fmt.Sprintf("%v", labelList[0])
		propName, _ := propertyName.(string)
		if propName == "" {
			continue
		}

		table, ok := tables[label]
		if !ok {
			table = metadata.TableMetadata{Name: label, Columns: map[string]metadata.ColumnMetadata{}}
		}
		isMandatory, _ := mandatory.(bool)
		table.Columns[propName] = metadata.ColumnMetadata{
			Name:       propName,
			ScalarType: mapNeo4jType(propertyTypes),
			Nullable:   !isMandatory,
		}
		tables[label] = table
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j: result iteration failed: %w", err)
	}
	return tables, nil
}

func mapNeo4jType(propertyTypes any) string {
	types, ok := propertyTypes.([]any)
	if !ok || len(types) == 0 {
		return "VARCHAR"
	}
	switch fmt.Sprintf("%v", types[0]) {
	case "Integer":
		return "BIGINT"
	case "Float":
		return "DOUBLE"
	case "Boolean":
		return "BOOLEAN"
	case "Date":
		return "DATE"
	case "DateTime", "LocalDateTime":
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}
