// Package redis is the Redis source adapter (C8). No teacher file covers
// this kind; it is grounded structurally on the sibling mongodb adapter
// (sampling live data to infer shape, since Redis keys carry no declared
// schema), dialing through redis/go-redis/v9. Keys are grouped by the text
// before their first ":" — a colon-delimited prefix is the de facto
// namespacing convention Redis users rely on in place of tables.
package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "redis"

var _ sources.Config = Config{}

func init() {
	if !sources.Register(SourceKind, newConfig) {
		panic(fmt.Sprintf("source kind %q already registered", SourceKind))
	}
}

func newConfig(ctx context.Context, name string, options map[string]any) (sources.Config, error) {
	actual := Config{Name: name, SampleSize: 100}
	if err := sources.DecodeOptions(options, &actual); err != nil {
		return nil, err
	}
	return actual, nil
}

type Config struct {
	Name       string `json:"name"`
	Address    string `json:"address" validate:"required"`
	Password   string `json:"password,omitempty"`
	DB         int    `json:"db,omitempty"`
	SampleSize int64  `json:"sampleSize,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	client := goredis.NewClient(&goredis.Options{Addr: r.Address, Password: r.Password, DB: r.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	sampleSize := r.SampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}
	return &Source{Config: r, Client: client, sampleSize: sampleSize}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client     *goredis.Client
	sampleSize int64
}

func (s *Source) SourceKind() string           { return SourceKind }
func (s *Source) RedisClient() *goredis.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error { return s.Client.Ping(ctx).Err() }
func (s *Source) Close() error                 { return s.Client.Close() }

// Introspect scans up to sampleSize keys via SCAN, groups them by their
// colon-delimited prefix, and samples each group's hashes via HGETALL to
// infer field shape. Non-hash keys are reported as a single "value" column.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	tables := map[string]metadata.TableMetadata{}
	var cursor uint64
	var scanned int64

	for {
		keys, next, err := s.Client.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan failed: %w", err)
		}
		for _, key := range keys {
			group := key
			if idx := strings.Index(key, ":"); idx >= 0 {
				group = key[:idx]
			}
			table, ok := tables[group]
			if !ok {
				table = metadata.TableMetadata{Name: group, Columns: map[string]metadata.ColumnMetadata{
					"_key": {Name: "_key", ScalarType: "VARCHAR", Nullable: false},
				}, PrimaryKeys: []string{"_key"}}
			}
			if fields, err := s.Client.HGetAll(ctx, key).Result(); err == nil {
				for field := range fields {
					table.Columns[field] = metadata.ColumnMetadata{Name: field, ScalarType: "VARCHAR", Nullable: true}
				}
			} else if _, ok := table.Columns["value"]; !ok {
				table.Columns["value"] = metadata.ColumnMetadata{Name: "value", ScalarType: "VARCHAR", Nullable: true}
			}
			tables[group] = table

			scanned++
			if scanned >= s.sampleSize {
				return tables, nil
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return tables, nil
}
