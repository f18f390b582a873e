// Package oracle is the cgo/OCI Oracle source adapter (C8), sharing the
// connection-string assembly and introspection logic of the sibling
// oraclethin package but dialing through godror/godror (which links OCI)
// instead of a pure-Go driver — the kind to reach for when the OCI client
// libraries are already available in the deployment environment.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/godror/godror"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/sources"
)

const SourceKind string = "oracle"

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
		return nil, fmt.Errorf("invalid oracle configuration: %w", err)
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
		return nil, fmt.Errorf("unable to create oracle connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to oracle: %w", err)
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
		return nil, fmt.Errorf("oracle: introspect columns failed: %w", err)
	}
	defer rows.Close()

	tables := map[string]metadata.TableMetadata{}
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("oracle: scan failed: %w", err)
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
		return nil, fmt.Errorf("oracle: row iteration failed: %w", err)
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
	_, span := sources.InitConnectionSpan(ctx, tracer, SourceKind, config.Name)
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

	var connectString string
	switch {
	case config.TnsAlias != "":
		connectString = strings.TrimSpace(config.TnsAlias)
	case config.ConnectionString != "":
		connectString = strings.TrimSpace(config.ConnectionString)
	case config.Port > 0:
		connectString = fmt.Sprintf("%s:%d/%s", config.Host, config.Port, config.ServiceName)
	default:
		connectString = fmt.Sprintf("%s/%s", config.Host, config.ServiceName)
	}

	params := godror.ConnectionParams{
		StandaloneConnection: true,
	}
	params.Username = config.User
	params.Password = godror.NewPassword(config.Password)
	params.ConnectString = connectString

	return sql.OpenDB(godror.NewConnector(params)), nil
}
