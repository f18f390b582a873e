// Package firebird is the Firebird source adapter (C8). No teacher file
// covers this kind; it is grounded structurally on the sibling oracle
// adapter (a database/sql pool introspected via the engine's own system
// tables rather than an ANSI information_schema, since Firebird exposes
// neither), dialing through nakagami/firebirdsql.
package firebird

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/nakagami/firebirdsql"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "firebird"

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
	Name     string `json:"name"`
	Host     string `json:"host" validate:"required"`
	Port     string `json:"port,omitempty"`
	Database string `json:"database" validate:"required"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r Config) SourceConfigKind() string { return SourceKind }

func (r Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, r.Name)
	defer span.End()

	port := r.Port
	if port == "" {
		port = "3050"
	}
	dsn := fmt.Sprintf("%s:%s@%s:%s/%s", r.User, r.Password, r.Host, port, r.Database)
	pool, err := sql.Open("firebirdsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect successfully: %w", err)
	}
	return &Source{Config: r, Pool: pool}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	Pool *sql.DB
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) FirebirdPool() *sql.DB           { return s.Pool }
func (s *Source) Ping(ctx context.Context) error { return s.Pool.PingContext(ctx) }
func (s *Source) Close() error                   { return s.Pool.Close() }

// Introspect reads RDB$RELATION_FIELDS joined with RDB$FIELDS, Firebird's
// native system-table catalog of column shape (Firebird predates
// information_schema entirely). RDB$SYSTEM_FLAG = 0 excludes system tables.
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	rows, err := s.Pool.QueryContext(ctx, `
		SELECT TRIM(rf.RDB$RELATION_NAME), TRIM(rf.RDB$FIELD_NAME),
		       f.RDB$FIELD_TYPE, f.RDB$FIELD_SUB_TYPE, rf.RDB$NULL_FLAG
		FROM RDB$RELATION_FIELDS rf
		JOIN RDB$FIELDS f ON rf.RDB$FIELD_SOURCE = f.RDB$FIELD_NAME
		JOIN RDB$RELATIONS r ON rf.RDB$RELATION_NAME = r.RDB$RELATION_NAME
		WHERE r.RDB$SYSTEM_FLAG = 0 OR r.RDB$SYSTEM_FLAG IS NULL
		ORDER BY rf.RDB$RELATION_NAME, rf.RDB$FIELD_POSITION`)
	if err != nil {
		return nil, fmt.Errorf("firebird: introspect columns failed: %w", err)
	}
	defer rows.Close()

	tables := map[string]metadata.TableMetadata{}
	for rows.Next() {
		var tableName, columnName string
		var fieldType, subType int
		var nullFlag sql.NullInt16
		if err := rows.Scan(&tableName, &columnName, &fieldType, &subType, &nullFlag); err != nil {
			return nil, fmt.Errorf("firebird: scan failed: %w", err)
		}
		tableName = strings.TrimSpace(tableName)
		columnName = strings.TrimSpace(columnName)
		table, ok := tables[tableName]
		if !ok {
			table = metadata.TableMetadata{Name: tableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[columnName] = metadata.ColumnMetadata{
			Name:       columnName,
			ScalarType: mapFirebirdType(fieldType, subType),
			Nullable:   nullFlag.Int16 == 0,
		}
		tables[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("firebird: row iteration failed: %w", err)
	}
	return tables, nil
}

// mapFirebirdType maps RDB$FIELD_TYPE (and, for numerics, RDB$FIELD_SUB_TYPE)
// onto the engine's scalar names. Codes per Firebird's system tables.
func mapFirebirdType(fieldType, subType int) string {
	switch fieldType {
	case 7: // SMALLINT
		if subType == 1 || subType == 2 {
			return "DECIMAL"
		}
		return "SMALLINT"
	case 8: // INTEGER
		if subType == 1 || subType == 2 {
			return "DECIMAL"
		}
		return "INTEGER"
	case 16: // BIGINT
		if subType == 1 || subType == 2 {
			return "DECIMAL"
		}
		return "BIGINT"
	case 10: // FLOAT
		return "FLOAT"
	case 27: // DOUBLE PRECISION
		return "DOUBLE"
	case 12: // DATE
		return "DATE"
	case 13: // TIME
		return "VARCHAR"
	case 35: // TIMESTAMP
		return "TIMESTAMP"
	case 261: // BLOB
		return "VARBINARY"
	case 14, 37, 40: // CHAR, VARCHAR, CSTRING
		return "VARCHAR"
	default:
		return "VARCHAR"
	}
}
