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

// Package cloudsqlmysql is the Cloud SQL for MySQL source adapter (C8).
// Grounded structurally on the sibling mysql adapter's information_schema
// introspection, dialled through cloudsqlconn via the go-sql-driver/mysql
// package's custom dial-context registration (the driver has no DialFunc
// hook like pgx's; a named network registered once per process is the
// documented way to plug a custom dialer into it).
package cloudsqlmysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	gomysql "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "cloudsqlmysql"

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
	User               string `json:"user" validate:"required"`
	Password           string `json:"password" validate:"required"`
	IPType             string `json:"ipType,omitempty" validate:"omitempty,oneof=public private psc"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

// registerOnce guards one-time registration of the cloudsqlconn-backed
// network name registerName: the mysql driver's RegisterDialContext panics if the
// same name is registered twice, which would happen if two cloudsqlmysql
// sources were configured in the same process.
var (
	registerOnce sync.Once
	registerName = "cloudsqlconn"
)

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

	registerOnce.Do(func() {
		gomysql.RegisterDialContext(registerName, func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.Dial(ctx, addr, dialOpts...)
		})
	})

	mysqlCfg := gomysql.NewConfig()
	mysqlCfg.User = r.User
	mysqlCfg.Passwd = r.Password
	mysqlCfg.DBName = r.Database
	mysqlCfg.Net = registerName
	mysqlCfg.Addr = r.InstanceConnection
	mysqlCfg.ParseTime = true

	pool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		_ = dialer.Close()
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		_ = dialer.Close()
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Pool: pool, dialer: dialer}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool   *sql.DB
	dialer *cloudsqlconn.Dialer
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error {
	err := s.Pool.Close()
	if derr := s.dialer.Close(); derr != nil && err == nil {
		err = derr
	}
	return err
}

func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	return sqlintrospect.Columns(ctx, s.Pool, "", s.Database, sqlintrospect.Dialect{SupportsForeignKeys: false})
}
