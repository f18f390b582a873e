// Package sources is the Source Registry (C8): a kind-name -> factory
// registry in the same shape as the teacher's internal/tools.Register /
// tools.DecodeConfig pattern, adapted from configuring invocable tools to
// configuring introspectable data sources. Each per-kind subpackage calls
// Register in its init() the way the teacher's tool packages do.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
)

// Source is an initialised, live connection to one configured data source:
// it can report its own kind, introspect its tables into the metadata
// shape C2 projects, and release its resources.
type Source interface {
	SourceKind() string
	Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config is a decoded, not-yet-connected source configuration; Initialize
// dials the source and returns the live Source.
type Config interface {
	SourceConfigKind() string
	Initialize(ctx context.Context, tracer trace.Tracer) (Source, error)
}

// Factory decodes one named entry of configuration.json's "sources" map
// (kind plus free-form options) into a Config.
type Factory func(ctx context.Context, name string, options map[string]any) (Config, error)

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

// Register adds kind's factory to the registry. Returns false (and does not
// overwrite) if kind is already registered, mirroring tools.Register's
// collision-detection contract.
func Register(kind string, factory Factory) bool {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		return false
	}
	factories[kind] = factory
	return true
}

// DecodeConfig looks up kind's factory and runs it against options.
func DecodeConfig(ctx context.Context, kind, name string, options map[string]any) (Config, error) {
	mu.Lock()
	factory, ok := factories[kind]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("sources: unknown source kind %q", kind)
	}
	return factory(ctx, name, options)
}

// Kinds returns the sorted list of registered source kinds.
func Kinds() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InitConnectionSpan starts a span describing a connection attempt to one
// named source of the given kind, grounded on the teacher's per-source
// initConnectionPool span convention.
func InitConnectionSpan(ctx context.Context, tracer trace.Tracer, kind, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tracer.Start(ctx, fmt.Sprintf("sources/%s/connect", kind))
	span.SetAttributes(
		attribute.String("source.kind", kind),
		attribute.String("source.name", name),
	)
	return ctx, span
}

// RecordInitError marks span as failed, matching the teacher's
// span.RecordError/SetStatus convention on a failed connection attempt.
func RecordInitError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// DecodeOptions is a small helper for per-kind Factory implementations:
// round-trips options through JSON into the kind's own strongly typed
// Config struct.
func DecodeOptions(options map[string]any, dst any) error {
	return decodeViaJSON(options, dst)
}
