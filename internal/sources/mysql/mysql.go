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

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "mysql"

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
	Name         string            `json:"name"`
	Host         string            `json:"host" validate:"required"`
	Port         string            `json:"port" validate:"required"`
	Database     string            `json:"database" validate:"required"`
	User         string            `json:"user" validate:"required"`
	Password     string            `json:"password" validate:"required"`
	QueryTimeout string            `json:"queryTimeout,omitempty"`
	QueryParams  map[string]string `json:"queryParams,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", r.User, r.Password, r.Host, r.Port, r.Database)
	if r.QueryTimeout != "" {
		timeout, err := time.ParseDuration(r.QueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid queryTimeout %q: %w", r.QueryTimeout, err)
		}
		dsn += fmt.Sprintf("&readTimeout=%s", timeout)
	}
	for k, v := range r.QueryParams {
		dsn += fmt.Sprintf("&%s=%s", k, v)
	}

	pool, err := sql.Open("mysql", dsn)
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
func (s *Source) MySQLPool() *sql.DB             { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error                   { return s.Pool.Close() }

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	return sqlintrospect.Columns(ctx, s.Pool, "", s.Database, sqlintrospect.Dialect{SupportsForeignKeys: false})
}
