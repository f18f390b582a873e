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

// Package cloudsqlpostgres is the Cloud SQL for PostgreSQL source adapter
// (C8). Grounded structurally on the sibling postgres adapter (same
// information_schema introspection via pgx's stdlib driver), but the
// connection is tunnelled through cloudsqlconn's dialer instead of a plain
// TCP address, so a caller only ever names the instance connection name
// ("project:region:instance") rather than a host/port pair.
package cloudsqlpostgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "cloudsqlpostgres"

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
	Name               string `json:"name"`
	InstanceConnection string `json:"instanceConnectionName" validate:"required"`
	Database           string `json:"database" validate:"required"`
	Schema             string `json:"schema,omitempty"`
	User               string `json:"user" validate:"required"`
	Password           string `json:"password" validate:"required"`
	IPType             string `json:"ipType,omitempty" validate:"omitempty,oneof=public private psc"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

// ipDialOptions maps the ipType config field onto the connector's dial
// options. The empty string and "public" both mean the dialer's own
// default (public IP, no option needed).
func ipDialOptions(ipType string) []cloudsqlconn.DialOption {
	switch ipType {
	case "private":
		return []cloudsqlconn.DialOption{cloudsqlconn.WithPrivateIP()}
	case "psc":
		return []cloudsqlconn.DialOption{cloudsqlconn.WithPSC()}
	default:
		return nil
	}
}

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	dialOpts := ipDialOptions(r.IPType)

	dialer, err := cloudsqlconn.NewDialer(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create cloudsqlconn dialer: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@localhost/%s", r.User, r.Password, r.Database)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		_ = dialer.Close()
		return nil, fmt.Errorf("unable to parse pool config: %w", err)
	}
	poolCfg.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(ctx, r.InstanceConnection, dialOpts...)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		_ = dialer.Close()
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		_ = dialer.Close()
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	return &Source{Config: r, Pool: pool, DB: db, dialer: dialer}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool   *pgxpool.Pool
	DB     *sql.DB
	dialer *cloudsqlconn.Dialer
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }
func (s *Source) Close() error {
	err := s.DB.Close()
	s.Pool.Close()
	if derr := s.dialer.Close(); derr != nil && err == nil {
		err = derr
	}
	return err
}

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := s.Schema
	if schema == "" {
		schema = "public"
	}
	return sqlintrospect.Columns(ctx, s.DB, s.Database, schema, sqlintrospect.Dialect{SupportsForeignKeys: true})
}
