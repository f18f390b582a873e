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

package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "elasticsearch"

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
	Name      string   `json:"name"`
	Addresses []string `json:"addresses" validate:"required"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	APIKey    string   `json:"apikey,omitempty"`
}

func (c Config) SourceConfigKind() string { return SourceKind }

func (c Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	_, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, c.Name)
	defer span.End()

	cfg := elasticsearch.Config{Addresses: c.Addresses}
	switch {
	case c.Username != "" && c.Password != "":
		cfg.Username = c.Username
		cfg.Password = c.Password
	case c.APIKey != "":
		cfg.APIKey = c.APIKey
	default:
		return nil, fmt.Errorf("elasticsearch source %q requires either username/password or an API key", c.Name)
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	res, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch connection failed: status %d", res.StatusCode)
	}

	return &Source{Config: c, Client: client}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client *elasticsearch.Client
}

func (s *Source) SourceKind() string                     { return SourceKind }
func (s *Source) ElasticsearchClient() *elasticsearch.Client { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	res, err := s.Client.Ping()
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}
func (s *Source) Close() error { return nil }

// Introspect reads each index's _mapping, Elasticsearch's native schema
// description, and reports its top-level properties as columns.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	res, err := esapi.CatIndicesRequest{Format: "json"}.Do(ctx, s.Client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: list indices failed: %w", err)
	}
	defer res.Body.Close()

	var cat []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode cat/indices failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, entry := range cat {
		mres, err := esapi.IndicesGetMappingRequest{Index: []string{entry.Index}}.Do(ctx, s.Client)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch: get mapping for %s failed: %w", entry.Index, err)
		}

		var mapping map[string]struct {
			Mappings struct {
				Properties map[string]struct {
					Type string `json:"type"`
				} `json:"properties"`
			} `json:"mappings"`
		}
		if err := json.NewDecoder(mres.Body).Decode(&mapping); err != nil {
			mres.Body.Close()
			return nil, fmt.Errorf("elasticsearch: decode mapping for %s failed: %w", entry.Index, err)
		}
		mres.Body.Close()

		columns := map[string]metadata.ColumnMetadata{}
		for _, idx := range mapping {
			for field, prop := range idx.Mappings.Properties {
				columns[field] = metadata.ColumnMetadata{Name: field, ScalarType: mapESType(prop.Type), Nullable: true}
			}
		}
		columns["_id"] = metadata.ColumnMetadata{Name: "_id", ScalarType: "VARCHAR", Nullable: false}
		tables[entry.Index] = metadata.TableMetadata{
			Name:        entry.Index,
			Description: "inferred from the index mapping",
			Columns:     columns,
			PrimaryKeys: []string{"_id"},
		}
	}
	return tables, nil
}

func mapESType(esType string) string {
	switch esType {
	case "long":
		return "BIGINT"
	case "integer":
		return "INTEGER"
	case "short":
		return "SMALLINT"
	case "byte":
		return "TINYINT"
	case "double":
		return "DOUBLE"
	case "float", "half_float":
		return "FLOAT"
	case "boolean":
		return "BOOLEAN"
	case "date":
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}
