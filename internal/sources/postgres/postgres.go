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

// Package postgres is the PostgreSQL source adapter (C8), using pgx's
// stdlib-compatible driver so introspection can share
// internal/sources/sqlintrospect with the other database/sql-backed kinds.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "postgres"

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
	Name          string            `json:"name"`
	Host          string            `json:"host" validate:"required"`
	Port          string            `json:"port" validate:"required"`
	Database      string            `json:"database" validate:"required"`
	Schema        string            `json:"schema,omitempty"`
	User          string            `json:"user" validate:"required"`
	Password      string            `json:"password" validate:"required"`
	QueryParams   map[string]string `json:"queryParams,omitempty"`
	QueryExecMode string            `json:"queryExecMode,omitempty" validate:"omitempty,oneof=cache_statement cache_describe describe_exec exec simple_protocol"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	execMode, err := ParseQueryExecMode(r.QueryExecMode)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", r.User, r.Password, r.Host, r.Port, r.Database)
	if q := ConvertParamMapToRawQuery(r.QueryParams); q != "" {
		dsn += "?" + q
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pool config: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = execMode

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	return &Source{Config: r, Pool: pool, DB: db}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool *pgxpool.Pool
	DB   *sql.DB
}

func (s *Source) SourceKind() string { return SourceKind }
func (s *Source) PostgresPool() *pgxpool.Pool { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }
func (s *Source) Close() error {
	err := s.DB.Close()
	s.Pool.Close()
	return err
}

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := s.Schema
	if schema == "" {
		schema = "public"
	}
	return sqlintrospect.Columns(ctx, s.DB, s.Database, schema, sqlintrospect.Dialect{SupportsForeignKeys: true})
}

// ConvertParamMapToRawQuery renders m as a "k=v&k=v" query string, sorted by
// key for determinism.
func ConvertParamMapToRawQuery(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return strings.Join(parts, "&")
}

// ParseQueryExecMode maps a configuration string onto pgx's QueryExecMode,
// defaulting to the cached, prepared-statement mode pgx itself defaults to.
func ParseQueryExecMode(mode string) (pgx.QueryExecMode, error) {
	switch mode {
	case "", "cache_statement":
		return pgx.QueryExecModeCacheStatement, nil
	case "cache_describe":
		return pgx.QueryExecModeCacheDescribe, nil
	case "describe_exec":
		return pgx.QueryExecModeDescribeExec, nil
	case "exec":
		return pgx.QueryExecModeExec, nil
	case "simple_protocol":
		return pgx.QueryExecModeSimpleProtocol, nil
	default:
		return 0, fmt.Errorf("invalid queryExecMode %q", mode)
	}
}
