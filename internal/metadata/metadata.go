// Package metadata holds the typed description of catalogs, schemas, tables,
// columns and foreign keys as reported by source introspection. Values here
// are produced once during introspection and are read-only afterwards.
package metadata

// ColumnMetadata describes a single column of a table.
type ColumnMetadata struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ScalarType   string `json:"scalarType"`
	Nullable     bool   `json:"nullable"`
}

// ForeignKeyEdge is one exported-key edge in the JDBC exportedKeys sense:
// direction runs from the primary-key side to the foreign-key side.
type ForeignKeyEdge struct {
	PKCatalog string `json:"pkTableCatalog,omitempty"`
	PKSchema  string `json:"pkTableSchema,omitempty"`
	PKTable   string `json:"pkTableName"`
	PKColumn  string `json:"pkColumnName"`
	FKCatalog string `json:"fkTableCatalog,omitempty"`
	FKSchema  string `json:"fkTableSchema,omitempty"`
	FKTable   string `json:"fkTableName"`
	FKColumn  string `json:"fkColumnName"`
	Name      string `json:"fkName,omitempty"`
}

// TableMetadata describes one table as reported by a Source's introspection.
//
// Invariant: every name in PrimaryKeys, and every local column referenced by
// an edge's FKColumn in ExportedKeys, must be a key in Columns.
type TableMetadata struct {
	Catalog      string                    `json:"catalog,omitempty"`
	Schema       string                    `json:"schema,omitempty"`
	Name         string                    `json:"name"`
	Description  string                    `json:"description,omitempty"`
	Columns      map[string]ColumnMetadata `json:"columns"`
	PrimaryKeys  []string                  `json:"primaryKeys,omitempty"`
	ExportedKeys []ForeignKeyEdge          `json:"exportedKeys,omitempty"`
}

// QualifiedName renders (catalog, schema, name) joined by '.', omitting any
// empty parts, for display. Introspected metadata maps are keyed by the bare
// table name, not by this qualified form.
func (t TableMetadata) QualifiedName() string {
	parts := make([]string, 0, 3)
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	parts = append(parts, t.Name)
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}

// MatchesFK reports whether the edge's FK side identifies this table.
func (e ForeignKeyEdge) MatchesFK(catalog, schema, name string) bool {
	return e.FKCatalog == catalog && e.FKSchema == schema && e.FKTable == name
}
