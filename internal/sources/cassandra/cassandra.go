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

package cassandra

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/apache/cassandra-gocql-driver/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "cassandra"

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
	Name                   string   `json:"name"`
	Hosts                  []string `json:"hosts" validate:"required"`
	Username               string   `json:"username,omitempty"`
	Password               string   `json:"password,omitempty"`
	Keyspace               string   `json:"keyspace,omitempty"`
	ProtoVersion           int      `json:"protoVersion,omitempty"`
	CAPath                 string   `json:"caPath,omitempty"`
	CertPath               string   `json:"certPath,omitempty"`
	KeyPath                string   `json:"keyPath,omitempty"`
	EnableHostVerification bool     `json:"enableHostVerification,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	_, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	cluster := gocql.NewCluster(r.Hosts...)
	if r.Keyspace != "" {
		cluster.Keyspace = r.Keyspace
	}
	if r.ProtoVersion > 0 {
		cluster.ProtoVersion = r.ProtoVersion
	}
	if r.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: r.Username, Password: r.Password}
	}
	if r.CAPath != "" {
		tlsConfig, err := buildTLSConfig(r)
		if err != nil {
			return nil, err
		}
		cluster.SslOpts = &gocql.SslOptions{Config: tlsConfig, EnableHostVerification: r.EnableHostVerification}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("unable to create session: %w", err)
	}
	return &Source{Config: r, Session: session}, nil
}

func buildTLSConfig(r Config) (*tls.Config, error) {
	caCert, err := os.ReadFile(r.CAPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read caPath: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caCert)
	tlsConfig := &tls.Config{RootCAs: pool, InsecureSkipVerify: !r.EnableHostVerification}

	if r.CertPath != "" && r.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(r.CertPath, r.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("unable to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Session *gocql.Session
}

func (s *Source) SourceKind() string { return SourceKind }
func (s *Source) CassandraSession() *gocql.Session { return s.Session }
func (s *Source) Ping(ctx context.Context) error {
	return s.Session.Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
}
func (s *Source) Close() error {
	s.Session.Close()
	return nil
}

// Introspect queries system_schema.columns, Cassandra's native catalog of
// table shape; Cassandra has partition/clustering keys rather than a single
// primary-key constraint, reported here as PrimaryKeys combined.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	iter := s.Session.Query(`
		SELECT table_name, column_name, type, kind
		FROM system_schema.columns
		WHERE keyspace_name = ?`, s.Keyspace).WithContext(ctx).Iter()

	tables := map[string]metadata.TableMetadata{}
	var tableName, columnName, colType, kind string
	for iter.Scan(&tableName, &columnName, &colType, &kind) {
		table, ok := tables[tableName]
		if !ok {
			table = metadata.TableMetadata{Schema: s.Keyspace, Name: tableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[columnName] = metadata.ColumnMetadata{
			Name:       columnName,
			ScalarType: mapCQLType(colType),
			Nullable:   kind != "partition_key" && kind != "clustering",
		}
		if kind == "partition_key" || kind == "clustering" {
			table.PrimaryKeys = append(table.PrimaryKeys, columnName)
		}
		tables[tableName] = table
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("cassandra: introspect columns failed: %w", err)
	}
	return tables, nil
}

func mapCQLType(cqlType string) string {
	switch cqlType {
	case "int":
		return "INTEGER"
	case "bigint", "counter", "varint":
		return "BIGINT"
	case "smallint":
		return "SMALLINT"
	case "tinyint":
		return "TINYINT"
	case "float":
		return "FLOAT"
	case "double":
		return "DOUBLE"
	case "decimal":
		return "DECIMAL"
	case "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "timestamp":
		return "TIMESTAMP"
	case "blob":
		return "VARBINARY"
	default:
		return "VARCHAR"
	}
}
