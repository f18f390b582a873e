// Package couchbase is the Couchbase source adapter (C8). No teacher file
// covers this kind; it is grounded structurally on the sibling mongodb
// adapter, but introspection uses Couchbase's own N1QL catalog view
// (system:keyspaces) plus an INFER query per keyspace, Couchbase's native
// schema-inference facility, rather than document sampling by hand.
package couchbase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "couchbase"

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
	Name       string `json:"name"`
	Address    string `json:"address" validate:"required"`
	User       string `json:"user" validate:"required"`
	Password   string `json:"password" validate:"required"`
	BucketName string `json:"bucket" validate:"required"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	cluster, err := gocb.Connect(r.Address, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{Username: r.User, Password: r.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	bucket := cluster.Bucket(r.BucketName)
	if err := bucket.WaitUntilReady(10*time.Second, nil); err != nil {
		return nil, fmt.Errorf("bucket %q not ready: %w", r.BucketName, err)
	}
	return &Source{Config: r, Cluster: cluster, Bucket: bucket}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Cluster *gocb.Cluster
	Bucket  *gocb.Bucket
}

func (s *Source) SourceKind() string          { return SourceKind }
func (s *Source) CouchbaseCluster() *gocb.Cluster { return s.Cluster }
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.Cluster.Ping(nil)
	return err
}
func (s *Source) Close() error { return s.Cluster.Close(nil) }

// Introspect lists keyspaces (collections) via system:keyspaces, then runs
// Couchbase's own INFER statement against each to derive a schema from its
// documents, reporting the most frequent property types as columns.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	result, err := s.Cluster.Query(
		fmt.Sprintf("SELECT name FROM system:keyspaces WHERE `bucket` = '%s'", s.BucketName), nil)
	if err != nil {
		return nil, fmt.Errorf("couchbase: list keyspaces failed: %w", err)
	}

	var keyspaces []string
	for result.Next() {
		var row struct {
			Name string `json:"name"`
		}
		if err := result.Row(&row); err != nil {
			return nil, fmt.Errorf("couchbase: scan keyspace failed: %w", err)
		}
		keyspaces = append(keyspaces, row.Name)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("couchbase: keyspace iteration failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, keyspace := range keyspaces {
		columns, err := s.inferColumns(keyspace)
		if err != nil {
			continue
		}
		columns["_id"] = metadata.ColumnMetadata{Name: "_id", ScalarType: "VARCHAR", Nullable: false}
		tables[keyspace] = metadata.TableMetadata{
			Name:        keyspace,
			Description: "inferred via Couchbase's INFER statement",
			Columns:     columns,
			PrimaryKeys: []string{"_id"},
		}
	}
	return tables, nil
}

func (s *Source) inferColumns(keyspace string) (map[string]metadata.ColumnMetadata, error) {
	result, err := s.Cluster.Query(fmt.Sprintf("INFER `%s`", keyspace), nil)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	for result.Next() {
		var row json.RawMessage
		if err := result.Row(&row); err == nil {
			raw = append(raw, row)
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	columns := map[string]metadata.ColumnMetadata{}
	for _, entry := range raw {
		var inferred []struct {
			Properties map[string]struct {
				Type []string `json:"type"`
			} `json:"properties"`
		}
		if err := json.Unmarshal(entry, &inferred); err != nil {
			continue
		}
		for _, doc := range inferred {
			for name, prop := range doc.Properties {
				scalarType := "VARCHAR"
				if len(prop.Type) > 0 {
					scalarType = mapCouchbaseType(prop.Type[0])
				}
				columns[name] = metadata.ColumnMetadata{Name: name, ScalarType: scalarType, Nullable: true}
			}
		}
	}
	return columns, nil
}

func mapCouchbaseType(inferredType string) string {
	switch inferredType {
	case "number":
		return "DOUBLE"
	case "boolean":
		return "BOOLEAN"
	case "string":
		return "VARCHAR"
	default:
		return "VARCHAR"
	}
}
