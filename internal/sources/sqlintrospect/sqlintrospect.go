// Package sqlintrospect is a shared ANSI information_schema introspection
// routine reused by every database/sql-backed source kind whose dialect
// exposes the standard information_schema views (postgres, mysql, mssql,
// trino, singlestore; yugabytedb, which pools pgx rather than database/sql,
// shares only MapScalarType). Factoring this out keeps each kind's own
// file a thin Config/Initialize/Source adapter, grounded on how the
// teacher's per-kind source packages (clickhouse.go, mongodb.go) each wrap a
// *sql.DB/*mongo.Client behind the same three methods.
package sqlintrospect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hasura/ndc-embedded/internal/metadata"
)

// schemaFilter renders a literal equality clause for schema, or "1=1" when
// schema is empty. Built as a literal rather than a bind parameter because
// the placeholder syntax for information_schema queries otherwise differs
// per driver ($1 vs. ? vs. @p1); schema names come from configuration.json,
// not untrusted request input.
func schemaFilter(column, schema string) string {
	if schema == "" {
		return "1=1"
	}
	return fmt.Sprintf("%s = '%s'", column, strings.ReplaceAll(schema, "'", "''"))
}

// Dialect carries the few quirks that differ between otherwise
// ANSI-compatible engines.
type Dialect struct {
	// SupportsForeignKeys toggles the constraint_column_usage join; some
	// engines (trino connectors, singlestore columnstore) don't expose it.
	SupportsForeignKeys bool
}

// Columns introspects db's tables (filtered to schema when non-empty) via
// information_schema.columns, keyed by table name.
func Columns(ctx context.Context, db *sql.DB, catalog, schema string, dialect Dialect) (map[string]metadata.TableMetadata, error) {
	query := fmt.Sprintf(`
		SELECT table_schema, table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE %s
		ORDER BY table_name, ordinal_position`, schemaFilter("table_schema", schema))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlintrospect: columns query failed: %w", err)
	}
	defer rows.Close()

	tables := map[string]metadata.TableMetadata{}
	for rows.Next() {
		var tblSchema, tblName, colName, dataType, isNullable string
		if err := rows.Scan(&tblSchema, &tblName, &colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("sqlintrospect: scan failed: %w", err)
		}
		table, ok := tables[tblName]
		if !ok {
			table = metadata.TableMetadata{
				Catalog: catalog,
				Schema:  tblSchema,
				Name:    tblName,
				Columns: map[string]metadata.ColumnMetadata{},
			}
		}
		table.Columns[colName] = metadata.ColumnMetadata{
			Name:       colName,
			ScalarType: MapScalarType(dataType),
			Nullable:   isNullable == "YES",
		}
		tables[tblName] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlintrospect: row iteration failed: %w", err)
	}

	if err := attachPrimaryKeys(ctx, db, schema, tables); err != nil {
		return nil, err
	}
	if dialect.SupportsForeignKeys {
		if err := attachForeignKeys(ctx, db, catalog, schema, tables); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func attachPrimaryKeys(ctx context.Context, db *sql.DB, schema string, tables map[string]metadata.TableMetadata) error {
	query := fmt.Sprintf(`
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND %s
		ORDER BY tc.table_name, kcu.ordinal_position`, schemaFilter("tc.table_schema", schema))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sqlintrospect: primary key query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("sqlintrospect: primary key scan failed: %w", err)
		}
		if table, ok := tables[tableName]; ok {
			table.PrimaryKeys = append(table.PrimaryKeys, columnName)
			tables[tableName] = table
		}
	}
	return rows.Err()
}

func attachForeignKeys(ctx context.Context, db *sql.DB, catalog, schema string, tables map[string]metadata.TableMetadata) error {
	query := fmt.Sprintf(`
		SELECT
			kcu.table_name AS fk_table, kcu.column_name AS fk_column,
			ccu.table_name AS pk_table, ccu.column_name AS pk_column,
			tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND %s`, schemaFilter("tc.table_schema", schema))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		// Not every dialect exposes constraint_column_usage; a missing FK
		// view is not fatal to introspection.
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var fkTable, fkColumn, pkTable, pkColumn, name string
		if err := rows.Scan(&fkTable, &fkColumn, &pkTable, &pkColumn, &name); err != nil {
			return fmt.Errorf("sqlintrospect: foreign key scan failed: %w", err)
		}
		pk, ok := tables[pkTable]
		if !ok {
			continue
		}
		pk.ExportedKeys = append(pk.ExportedKeys, metadata.ForeignKeyEdge{
			PKCatalog: catalog, PKSchema: schema, PKTable: pkTable, PKColumn: pkColumn,
			FKCatalog: catalog, FKSchema: schema, FKTable: fkTable, FKColumn: fkColumn,
			Name: name,
		})
		tables[pkTable] = pk
	}
	return rows.Err()
}

// MapScalarType maps an information_schema.columns data_type string onto
// the engine type names internal/scalars.Registry recognises. Unrecognised
// types fall back to VARCHAR, matching the original connector's
// JDBC-metadata-driven default for opaque column types. Exported so
// pgx-based adapters (yugabytedb) that cannot use Columns directly (they
// pool *pgxpool.Pool, not *sql.DB) can still share the type mapping.
func MapScalarType(dataType string) string {
	switch dataType {
	case "integer", "int", "int4", "serial":
		return "INTEGER"
	case "smallint", "int2":
		return "SMALLINT"
	case "tinyint":
		return "TINYINT"
	case "bigint", "int8", "bigserial":
		return "BIGINT"
	case "real", "float4":
		return "FLOAT"
	case "double precision", "double", "float8":
		return "DOUBLE"
	case "numeric", "decimal":
		return "DECIMAL"
	case "boolean", "bool", "tinyint(1)":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "timestamp", "timestamp without time zone":
		return "TIMESTAMP(0)"
	case "timestamp with time zone", "timestamptz":
		return "TIMESTAMP"
	case "bytea", "varbinary", "blob":
		return "VARBINARY"
	case "character", "char":
		return "CHAR"
	default:
		return "VARCHAR"
	}
}
