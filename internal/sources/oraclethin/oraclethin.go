// Package oraclethin is the pure-Go Oracle source adapter (C8), grounded on
// the teacher's sources/oracle/oracle.go connection-string assembly logic
// (tns_alias | connectionString | host+serviceName, mutually exclusive),
// adapted to also satisfy Introspect via ALL_TAB_COLUMNS/ALL_CONSTRAINTS.
// It uses sijms/go-ora, a pure-Go driver requiring no OCI/cgo; see the
// sibling oracle package for the godror/cgo-based "oracle" kind.
package oraclethin

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/sijms/go-ora/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "oracle-thin"

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
	if err := actual.validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle-thin configuration: %w", err)
	}
	return actual, nil
}

// Config is one configured Oracle connection. Exactly one of TnsAlias,
// ConnectionString, or Host+ServiceName must be set.
type Config struct {
	Name             string `json:"name"`
	ConnectionString string `json:"connectionString,omitempty"`
	TnsAlias         string `json:"tnsAlias,omitempty"`
	Host             string `json:"host,omitempty"`
	Port             int    `json:"port,omitempty"`
	ServiceName      string `json:"serviceName,omitempty"`
	Schema           string `json:"schema,omitempty"`
	User             string `json:"user" validate:"required"`
	Password         string `json:"password" validate:"required"`
	TnsAdmin         string `json:"tnsAdmin,omitempty"`
}

func (c Config) validate() error {
	hasTnsAlias := strings.TrimSpace(c.TnsAlias) != ""
	hasConnStr := strings.TrimSpace(c.ConnectionString) != ""
	hasHostService := strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.ServiceName) != ""

	methods := 0
	for _, has := range []bool{hasTnsAlias, hasConnStr, hasHostService} {
		if has {
			methods++
		}
	}
	if methods != 1 {
		return fmt.Errorf("provide exactly one of: tnsAlias, connectionString, or host+serviceName")
	}
	return nil
}

func (c Config) SourceConfigKind() string { return SourceKind }

func (c Config) Initialize(ctx context.Context, tracer trace.Tracer) (sources.Source, error) {
	db, err := connect(ctx, tracer, c)
	if err != nil {
		return nil, fmt.Errorf("unable to create oracle-thin connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to oracle-thin: %w", err)
	}
	return &Source{Config: c, DB: db}, nil
}

var _ sources.Source = &Source{}

type Source struct {
	Config
	DB *sql.DB
}

func (s *Source) SourceKind() string             { return SourceKind }
func (s *Source) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }
func (s *Source) Close() error                   { return s.DB.Close() }

// Introspect reads ALL_TAB_COLUMNS/ALL_CONS_COLUMNS for the connecting
// user's accessible tables; Oracle has no schema concept distinct from the
// connecting user, so Config.Schema defaults to strings.ToUpper(c.User).
func (s *Source) Introspect(ctx context.Context) (map[string]metadata.TableMetadata, error) {
	schema := strings.ToUpper(s.Schema)
	if schema == "" {
		schema = strings.ToUpper(s.User)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, nullable
		FROM all_tab_columns
		WHERE owner = :1
		ORDER BY table_name, column_id`, schema)
	if err != nil {
		return nil, fmt.Errorf("oracle-thin: introspect columns failed: %w", err)
	}
	defer rows.Close()

	tables := map[string]metadata.TableMetadata{}
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("oracle-thin: scan failed: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			table = metadata.TableMetadata{Schema: schema, Name: tableName, Columns: map[string]metadata.ColumnMetadata{}}
		}
		table.Columns[columnName] = metadata.ColumnMetadata{
			Name:       columnName,
			ScalarType: mapOracleType(dataType),
			Nullable:   nullable == "Y",
		}
		tables[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oracle-thin: row iteration failed: %w", err)
	}

	pkRows, err := s.DB.QueryContext(ctx, `
		SELECT acc.table_name, acc.column_name
		FROM all_constraints ac
		JOIN all_cons_columns acc ON ac.constraint_name = acc.constraint_name AND ac.owner = acc.owner
		WHERE ac.constraint_type = 'P' AND ac.owner = :1
		ORDER BY acc.table_name, acc.position`, schema)
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

func mapOracleType(dataType string) string {
	switch {
	case strings.HasPrefix(dataType, "VARCHAR2"), strings.HasPrefix(dataType, "NVARCHAR2"):
		return "VARCHAR"
	case strings.HasPrefix(dataType, "CHAR"):
		return "CHAR"
	case dataType == "NUMBER":
		return "DECIMAL"
	case dataType == "FLOAT", dataType == "BINARY_FLOAT":
		return "FLOAT"
	case dataType == "BINARY_DOUBLE":
		return "DOUBLE"
	case dataType == "DATE":
		return "DATE"
	case strings.HasPrefix(dataType, "TIMESTAMP"):
		return "TIMESTAMP(0)"
	case dataType == "BLOB", dataType == "RAW", dataType == "LONG RAW":
		return "VARBINARY"
	default:
		return "VARCHAR"
	}
}

func connect(ctx context.Context, tracer trace.Tracer, config Config) (*sql.DB, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, config.Name)
	defer span.End()

	if config.TnsAdmin != "" {
		original := os.Getenv("TNS_ADMIN")
		os.Setenv("TNS_ADMIN", config.TnsAdmin)
		defer func() {
			if original != "" {
				os.Setenv("TNS_ADMIN", original)
			} else {
				os.Unsetenv("TNS_ADMIN")
			}
		}()
	}

	var serverString string
	switch {
	case config.TnsAlias != "":
		serverString = strings.TrimSpace(config.TnsAlias)
	case config.ConnectionString != "":
		serverString = strings.TrimSpace(config.ConnectionString)
	case config.Port > 0:
		serverString = fmt.Sprintf("%s:%d/%s", config.Host, config.Port, config.ServiceName)
	default:
		serverString = fmt.Sprintf("%s/%s", config.Host, config.ServiceName)
	}

	connStr := fmt.Sprintf("oracle://%s:%s@%s", config.User, config.Password, serverString)
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to open oracle-thin connection: %w", err)
	}
	_ = ctx
	return db, nil
}
