// Package bigtable is the Cloud Bigtable source adapter (C8). No teacher
// file covers this kind; it is grounded structurally on the sibling
// bigquery adapter (a cloud.google.com/go client wrapped behind
// Config/Initialize/Source), but introspection differs fundamentally:
// Bigtable tables have no declared columns, only column families, so each
// family becomes one open-ended JSON-typed column rather than a set of
// inferred scalar columns.
package bigtable

import (
	"context"
	"fmt"

	bigtableapi "cloud.google.com/go/bigtable"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "bigtable"

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
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	admin, err := bigtableapi.NewAdminClient(ctx, r.Project, r.Instance)
	if err != nil {
		return nil, fmt.Errorf("unable to create bigtable admin client: %w", err)
	}
	client, err := bigtableapi.NewClient(ctx, r.Project, r.Instance)
	if err != nil {
		admin.Close()
		return nil, fmt.Errorf("unable to create bigtable client: %w", err)
	}
	return &Source{Config: r, Admin: admin, Client: client}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Admin  *bigtableapi.AdminClient
	Client *bigtableapi.Client
}

func (s *Source) SourceKind() string                { return SourceKind }
func (s *Source) BigtableClient() *bigtableapi.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.Admin.Tables(ctx)
	return err
}
func (s *Source) Close() error {
	s.Admin.Close()
	return s.Client.Close()
}

// Introspect reads each table's TableInfo; column qualifiers are
// open-ended within a Bigtable column family, so each family is reported as
// one JSON-typed column rather than individually inferred fields, plus a
// synthetic row-key primary key column every Bigtable table has.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	names, err := s.Admin.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigtable: list tables failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, name := range names {
		info, err := s.Admin.TableInfo(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("bigtable: table info for %s failed: %w", name, err)
		}
		columns := map[string]metadata.ColumnMetadata{
			"_key": {Name: "_key", ScalarType: "VARCHAR", Nullable: false},
		}
		for _, family := range info.Families {
			columns[family] = metadata.ColumnMetadata{Name: family, ScalarType: "JSON", Nullable: true}
		}
		tables[name] = metadata.TableMetadata{
			Name:        name,
			Description: "column families reported as JSON-typed columns; qualifiers within a family are open-ended",
			Columns:     columns,
			PrimaryKeys: []string{"_key"},
		}
	}
	return tables, nil
}
