// Package schema projects introspected table metadata (internal/metadata)
// into the NDC SchemaResponse shape (internal/models), grounded on the
// original connector's calcite-schema/src/collections.rs.
package schema

import (
	"fmt"
	"sort"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/models"
	"github.com/hasura/ndc-embedded/internal/util"
)

// Project builds object types and collection infos from table metadata,
// failing with SchemaNameClash if any table name collides with a scalar
// type name. tables is keyed by collection name (typically the table's
// QualifiedName or a short alias chosen at introspection time).
func Project(tables map[string]metadata.TableMetadata, scalarTypes map[string]models.ScalarType) (map[string]models.ObjectType, []models.CollectionInfo, error) {
	objectTypes := make(map[string]models.ObjectType, len(tables))
	var collections []models.CollectionInfo

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, collectionName := range names {
		table := tables[collectionName]
		if _, clash := scalarTypes[table.Name]; clash {
			return nil, nil, util.SchemaNameClash(table.Name)
		}

		objectTypes[collectionName] = models.ObjectType{
			Description: table.Description,
			Fields:      buildFields(table.Columns),
		}

		collections = append(collections, models.CollectionInfo{
			Name:                  table.Name,
			Description:           fmt.Sprintf("A collection of %s", collectionName),
			CollectionType:        table.Name,
			UniquenessConstraints: buildUniquenessConstraints(table),
			ForeignKeys:           buildForeignKeys(table, tables),
		})
	}

	return objectTypes, collections, nil
}

func buildFields(columns map[string]metadata.ColumnMetadata) map[string]models.ObjectField {
	fields := make(map[string]models.ObjectField, len(columns))
	for name, col := range columns {
		t := models.Named(col.ScalarType)
		if col.Nullable {
			t = models.Nullable(t)
		}
		fields[name] = models.ObjectField{Type: t, Description: col.Description}
	}
	return fields
}

func buildUniquenessConstraints(table metadata.TableMetadata) map[string]models.UniquenessConstraint {
	return map[string]models.UniquenessConstraint{
		"PK": {UniqueColumns: append([]string(nil), table.PrimaryKeys...)},
	}
}

// buildForeignKeys scans every table's exported keys looking for edges whose
// FK side identifies `table`; edges sharing the same PK table are merged
// into one constraint keyed by that PK table name.
func buildForeignKeys(table metadata.TableMetadata, all map[string]metadata.TableMetadata) map[string]models.ForeignKeyConstraint {
	constraints := make(map[string]models.ForeignKeyConstraint)
	for _, other := range all {
		for _, edge := range other.ExportedKeys {
			if !edge.MatchesFK(table.Catalog, table.Schema, table.Name) {
				continue
			}
			constraint, ok := constraints[edge.PKTable]
			if !ok {
				constraint = models.ForeignKeyConstraint{
					ColumnMapping:     map[string]string{},
					ForeignCollection: edge.PKTable,
				}
			}
			constraint.ColumnMapping[edge.FKColumn] = edge.PKColumn
			constraints[edge.PKTable] = constraint
		}
	}
	return constraints
}
