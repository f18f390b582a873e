// Package snowflake is the Snowflake source adapter (C8). No teacher file
// covers this kind; it is grounded structurally on the sibling mssql/mysql
// adapters (Config/Initialize/Source over a database/sql pool, introspected
// via the shared sqlintrospect helper), dialing through
// snowflakedb/gosnowflake.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "snowflake"

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
	Name      string `json:"name"`
	Account   string `json:"account" validate:"required"`
	User      string `json:"user" validate:"required"`
	Password  string `json:"password,omitempty"`
	Database  string `json:"database" validate:"required"`
	Schema    string `json:"schema,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Role      string `json:"role,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	cfg := &sf.Config{
		Account:   r.Account,
		User:      r.User,
		Password:  r.Password,
		Database:  r.Database,
		Schema:    r.Schema,
		Warehouse: r.Warehouse,
		Role:      r.Role,
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to build snowflake dsn: %w", err)
	}
	pool, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Pool: pool}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool *sql.DB
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) SnowflakePool() *sql.DB          { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error                   { return s.Pool.Close() }

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := s.Schema
	if schema == "" {
		schema = "PUBLIC"
	}
	return sqlintrospect.Columns(ctx, s.Pool, s.Database, schema, sqlintrospect.Dialect{SupportsForeignKeys: false})
}
