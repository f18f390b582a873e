package schema

import (
	"testing"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/models"
)

func scalarTypes() map[string]models.ScalarType {
	return map[string]models.ScalarType{
		"INTEGER": {Representation: models.RepInt32},
		"VARCHAR": {Representation: models.RepString},
	}
}

func TestProjectBuildsCollectionsAndObjectTypes(t *testing.T) {
	tables := map[string]metadata.TableMetadata{
		"orders": {
			Catalog: "sales", Schema: "public", Name: "orders",
			Columns: map[string]metadata.ColumnMetadata{
				"id":          {Name: "id", ScalarType: "INTEGER"},
				"customer_id": {Name: "customer_id", ScalarType: "INTEGER"},
			},
			PrimaryKeys: []string{"id"},
		},
		"customers": {
			Catalog: "sales", Schema: "public", Name: "customers",
			Columns: map[string]metadata.ColumnMetadata{
				"id": {Name: "id", ScalarType: "INTEGER"},
			},
			PrimaryKeys: []string{"id"},
			ExportedKeys: []metadata.ForeignKeyEdge{
				{
					PKCatalog: "sales", PKSchema: "public", PKTable: "customers", PKColumn: "id",
					FKCatalog: "sales", FKSchema: "public", FKTable: "orders", FKColumn: "customer_id",
					Name: "fk_orders_customer",
				},
			},
		},
	}

	objectTypes, collections, err := Project(tables, scalarTypes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objectTypes) != 2 {
		t.Fatalf("expected 2 object types, got %d", len(objectTypes))
	}
	if len(collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(collections))
	}

	var orders *models.CollectionInfo
	for i := range collections {
		if collections[i].Name == "orders" {
			orders = &collections[i]
		}
	}
	if orders == nil {
		t.Fatalf("expected an orders collection")
	}
	fk, ok := orders.ForeignKeys["customers"]
	if !ok {
		t.Fatalf("expected a foreign key constraint to customers, got %+v", orders.ForeignKeys)
	}
	if fk.ColumnMapping["customer_id"] != "id" {
		t.Fatalf("expected customer_id -> id mapping, got %+v", fk.ColumnMapping)
	}
	if fk.ForeignCollection != "customers" {
		t.Fatalf("expected ForeignCollection=customers, got %q", fk.ForeignCollection)
	}
}

func TestProjectSchemaNameClash(t *testing.T) {
	tables := map[string]metadata.TableMetadata{
		"INTEGER": {Name: "INTEGER", Columns: map[string]metadata.ColumnMetadata{}},
	}
	_, _, err := Project(tables, scalarTypes())
	if err == nil {
		t.Fatalf("expected SchemaNameClash error")
	}
}

func TestProjectUniquenessConstraintUsesPrimaryKeys(t *testing.T) {
	tables := map[string]metadata.TableMetadata{
		"orders": {
			Name:        "orders",
			Columns:     map[string]metadata.ColumnMetadata{"id": {Name: "id", ScalarType: "INTEGER"}},
			PrimaryKeys: []string{"id"},
		},
	}
	_, collections, err := Project(tables, scalarTypes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pk, ok := collections[0].UniquenessConstraints["PK"]
	if !ok || len(pk.UniqueColumns) != 1 || pk.UniqueColumns[0] != "id" {
		t.Fatalf("expected PK uniqueness constraint on id, got %+v", collections[0].UniquenessConstraints)
	}
}
