// Package valkey is the Valkey source adapter (C8). No teacher file covers
// this kind; it mirrors the sibling redis adapter's key-prefix-grouping
// introspection strategy but dials through valkey-io/valkey-go's
// command-builder client rather than go-redis.
package valkey

import (
	"context"
	"fmt"
	"strings"

	vk "github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "valkey"

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
	Name       string   `json:"name"`
	Addresses  []string `json:"addresses" validate:"required"`
	Password   string   `json:"password,omitempty"`
	SampleSize int64    `json:"sampleSize,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	client, err := vk.NewClient(vk.ClientOption{InitAddress: r.Addresses, Password: r.Password})
	if err != nil {
		return nil, fmt.Errorf("unable to create valkey client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
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
	Client     vk.Client
	sampleSize int64
}

func (s *Source) SourceKind() string         { return SourceKind }
func (s *Source) ValkeyClient() vk.Client    { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	return s.Client.Do(ctx, s.Client.B().Ping().Build()).Error()
}
func (s *Source) Close() error {
	s.Client.Close()
	return nil
}

// Introspect scans up to sampleSize keys, groups them by their
// colon-delimited prefix, and samples each group's hashes to infer field
// shape, mirroring the redis adapter's strategy over valkey-go's API.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	tables := map[string]metadata.TableMetadata{}
	var cursor uint64
	var scanned int64

	for {
		resp := s.Client.Do(ctx, s.Client.B().Scan().Cursor(cursor).Match("*").Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("valkey: scan failed: %w", err)
		}
		for _, key := range entry.Elements {
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
			fields, herr := s.Client.Do(ctx, s.Client.B().Hgetall().Key(key).Build()).AsStrMap()
			if herr == nil && len(fields) > 0 {
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
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return tables, nil
}
