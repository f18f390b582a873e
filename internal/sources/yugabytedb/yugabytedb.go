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

package yugabytedb

import (
	"context"
	"fmt"

	"github.com/yugabyte/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/sources/sqlintrospect"
)

const SourceKind string = "yugabytedb"

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
	Name                            string `json:"name"`
	Host                            string `json:"host" validate:"required"`
	Port                            string `json:"port" validate:"required"`
	User                            string `json:"user" validate:"required"`
	Password                        string `json:"password" validate:"required"`
	Database                        string `json:"database" validate:"required"`
	Schema                          string `json:"schema,omitempty"`
	LoadBalance                     string `json:"loadBalance,omitempty"`
	TopologyKeys                    string `json:"topologyKeys,omitempty"`
	YBServersRefreshInterval        string `json:"ybServersRefreshInterval,omitempty"`
	FallBackToTopologyKeysOnly      string `json:"fallbackToTopologyKeysOnly,omitempty"`
	FailedHostReconnectDelaySeconds string `json:"failedHostReconnectDelaySecs,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	pool, err := initYugabyteDBConnectionPool(ctx, tracer, r.Name, r.Host, r.Port, r.User, r.Password, r.Database, r.LoadBalance, r.TopologyKeys, r.YBServersRefreshInterval, r.FallBackToTopologyKeysOnly, r.FailedHostReconnectDelaySeconds)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Pool: pool}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool *pgxpool.Pool
}

func (s *Source) SourceKind() string { return SourceKind }
func (s *Source) YugabyteDBPool() *pgxpool.Pool { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }
func (s *Source) Close() error {
	s.Pool.Close()
	return nil
}

// Introspect mirrors sqlintrospect.Columns' column and primary-key queries
// but against a *pgxpool.Pool instead of a *sql.DB, since yugabytedb is
// accessed through pgx rather than database/sql. Foreign keys are not read.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := s.Schema
	if schema == "" {
		schema = "public"
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, schema)
	if err != nil {
		return nil, fmt.Errorf("yugabytedb: introspect columns failed: %w", err)
	}
	defer rows.Close()

	tables := map[string]metadata.TableMetadata{}
	for rows.Next() {
		var tableName, colName, dataType, isNullable string
		if err := rows.Scan(&tableName, &colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("yugabytedb: scan failed: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			table = metadata.TableMetadata{Schema: schema, Name: tableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[colName] = metadata.ColumnMetadata{
			Name:       colName,
			ScalarType: sqlintrospect.MapScalarType(dataType),
			Nullable:   isNullable == "YES",
		}
		tables[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("yugabytedb: row iteration failed: %w", err)
	}

	pkRows, err := s.Pool.Query(ctx, `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.ordinal_position`, schema)
	if err == nil {
		defer pkRows.Close()
		for pkRows.Next() {
			var tableName, columnName string
			if err := pkRows.Scan(&tableName, &columnName); err == nil {
				if table, ok := tables[tableName]; ok {
					table.PrimaryKeys = append(table.PrimaryKeys, columnName)
					tables[tableName] = table
				}
			}
		}
	}

	return tables, nil
}

func initYugabyteDBConnectionPool(ctx context.Context, tracer trace.Tracer, name, host, port, user, pass, dbname, loadBalance, topologyKeys, refreshInterval, explicitFallback, failedHostTTL string) (*pgxpool.Pool, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, name)
	defer span.End()

	i := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, dbname)
	if loadBalance == "true" {
		i = fmt.Sprintf("%s?load_balance=%s", i, loadBalance)
		if topologyKeys != "" {
			i = fmt.Sprintf("%s&topology_keys=%s", i, topologyKeys)
			if explicitFallback == "true" {
				i = fmt.Sprintf("%s&fallback_to_topology_keys_only=%s", i, explicitFallback)
			}
		}
		if refreshInterval != "" {
			i = fmt.Sprintf("%s&yb_servers_refresh_interval=%s", i, refreshInterval)
		}
		if failedHostTTL != "" {
			i = fmt.Sprintf("%s&failed_host_reconnect_delay_secs=%s", i, failedHostTTL)
		}
	}
	pool, err := pgxpool.New(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return pool, nil
}
