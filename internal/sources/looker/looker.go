// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package looker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/looker-open-source/sdk-codegen/go/rtl"
	v4 "github.com/looker-open-source/sdk-codegen/go/sdk/v4"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/util"
)

const SourceKind string = "looker"

var _ sources.Config = Config{}

func init() {
	if !sources.Register(SourceKind, newConfig) {
		panic(fmt.Sprintf("source kind %q already registered", SourceKind))
	}
}

func newConfig(ctx context.Context, name string, options map[string]any) (sources.Config, error) {
	actual := Config{
		Name:            name,
		SslVerification: true,
		Timeout:         "600s",
	}
	if err := sources.DecodeOptions(options, &actual); err != nil {
		return nil, err
	}
	return actual, nil
}

type Config struct {
	Name            string `json:"name"`
	BaseURL         string `json:"baseUrl" validate:"required"`
	ClientId        string `json:"clientId" validate:"required"`
	ClientSecret    string `json:"clientSecret" validate:"required"`
	SslVerification bool   `json:"verifySsl,omitempty"`
	Timeout         string `json:"timeout,omitempty"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	duration, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to parse timeout string as time.Duration: %w", err)
	}
	if !r.SslVerification {
		if logger, err := util.LoggerFromContext(ctx); err == nil {
			logger.WarnContext(ctx, "TLS certificate verification is disabled for looker source", "source", r.Name)
		}
	}

	cfg := rtl.ApiSettings{
		AgentTag:     "ndc-embedded-connector",
		BaseUrl:      r.BaseURL,
		ApiVersion:   "4.0",
		VerifySsl:    r.SslVerification,
		Timeout:      int32(duration.Seconds()),
		ClientId:     r.ClientId,
		ClientSecret: r.ClientSecret,
	}

	client := v4.NewLookerSDK(rtl.NewAuthSession(cfg))
	if _, err := client.Me("", &cfg); err != nil {
		return nil, fmt.Errorf("incorrect settings: %w", err)
	}

	return &Source{Config: r, Client: client}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Client *v4.LookerSDK
}

func (s *Source) SourceKind() string       { return SourceKind }
func (s *Source) LookerClient() *v4.LookerSDK { return s.Client }
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.Client.Me("", nil)
	return err
}
func (s *Source) Close() error { return nil }

// Introspect lists LookML models/explores via the Looker API and reports
// each explore as one collection, its fields as columns — Looker's own
// equivalent of a catalog, addressed through its REST API rather than SQL.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	models, err := s.Client.AllLookmlModels(v4.RequestAllLookmlModels{}, nil)
	if err != nil {
		return nil, fmt.Errorf("looker: list lookml models failed: %w", err)
	}

	tables := map[string]metadata.TableMetadata{}
	for _, model := range models {
		if model.Name == nil {
			continue
		}
		for _, explore := range model.Explores {
			if explore.Name == nil {
				continue
			}
			full, err := s.Client.LookmlModelExplore(v4.RequestLookmlModelExplore{
				LookmlModelName: *model.Name,
				ExploreName:     *explore.Name,
			}, nil)
			if err != nil {
				continue
			}
			columns := map[string]metadata.ColumnMetadata{}
			if full.Fields != nil {
				for _, dim := range full.Fields.Dimensions {
					if dim.Name == nil {
						continue
					}
					columns[*dim.Name] = metadata.ColumnMetadata{Name: *dim.Name, ScalarType: "VARCHAR", Nullable: true}
				}
				for _, measure := range full.Fields.Measures {
					if measure.Name == nil {
						continue
					}
					columns[*measure.Name] = metadata.ColumnMetadata{Name: *measure.Name, ScalarType: "DOUBLE", Nullable: true}
				}
			}
			tables[*explore.Name] = metadata.TableMetadata{
				Schema:  *model.Name,
				Name:    *explore.Name,
				Columns: columns,
			}
		}
	}
	return tables, nil
}
