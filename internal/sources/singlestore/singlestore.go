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

package singlestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

// SourceKind for SingleStore source
const SourceKind string = "singlestore"

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

// Config holds the configuration parameters for connecting to a SingleStore database.
type Config struct {
	Name         string `json:"name"`
	Host         string `json:"host" validate:"required"`
	Port         string `json:"port" validate:"required"`
	User         string `json:"user" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Database     string `json:"database" validate:"required"`
	QueryTimeout string `json:"queryTimeout,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	pool, err := initSingleStoreConnectionPool(ctx, tracer, r.Name, r.Host, r.Port, r.User, r.Password, r.Database, r.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Pool: pool}, nil
}

var _ sources.Source = &Source{}

// Source represents a SingleStore database source and holds its connection pool.
type Source struct {
	Config
	Pool *sql.DB
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) SingleStorePool() *sql.DB        { return s.Pool }
func (s *Source) Ping(ctx context.Context) error  { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error                    { return s.Pool.Close() }

// Introspect reuses the shared ANSI information_schema helper; SingleStore
// (and the MySQL wire protocol it speaks) has no constraint_column_usage
// view, so foreign keys are not attempted here.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	return sqlintrospect.Columns(ctx, s.Pool, "", s.Database, sqlintrospect.Dialect{SupportsForeignKeys: false})
}

func initSingleStoreConnectionPool(ctx context.Context, tracer trace.Tracer, name, host, port, user, pass, dbname, queryTimeout string) (*sql.DB, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, name)
	defer span.End()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&vector_type_project_format=JSON", user, pass, host, port, dbname)

	customAttrs := []string{"_connector_name"}
	customAttrValues := []string{"ndc-embedded connector"}
	customAttrStrs := make([]string, len(customAttrs))
	for i := range customAttrs {
		customAttrStrs[i] = fmt.Sprintf("%s:%s", customAttrs[i], customAttrValues[i])
	}
	dsn += "&connectionAttributes=" + url.QueryEscape(strings.Join(customAttrStrs, ","))

	if queryTimeout != "" {
		timeout, err := time.ParseDuration(queryTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid queryTimeout %q: %w", queryTimeout, err)
		}
		dsn += "&readTimeout=" + timeout.String()
	}

	pool, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	_ = ctx
	return pool, nil
}
