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

// Package mssql is the SQL Server source adapter (C8). No teacher file
// covers this kind; it is grounded structurally on the sibling
// clickhouse/singlestore adapters (Config/Initialize/Source over a
// database/sql pool) plus the shared sqlintrospect helper.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "mssql"

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
	Host     string `json:"host" validate:"required"`
	Port     string `json:"port" validate:"required"`
	Database string `json:"database" validate:"required"`
	Schema   string `json:"schema,omitempty"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
	Encrypt  string `json:"encrypt,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	encrypt := r.Encrypt
	if encrypt == "" {
		encrypt = "disable"
	}
	dsn := fmt.Sprintf("server=%s;port=%s;database=%s;user id=%s;password=%s;encrypt=%s",
		r.Host, r.Port, r.Database, r.User, r.Password, encrypt)

	pool, err := sql.Open("sqlserver", dsn)
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

func (s *Source) SourceKind() string            { return SourceKind }
func (s *Source) MSSQLPool() *sql.DB             { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error                   { return s.Pool.Close() }

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := s.Schema
	if schema == "" {
		schema = "dbo"
	}
	return sqlintrospect.Columns(ctx, s.Pool, s.Database, schema, sqlintrospect.Dialect{SupportsForeignKeys: false})
}
