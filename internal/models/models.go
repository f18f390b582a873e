// Package models defines the NDC wire protocol types shared by the schema
// projector, the query orchestrator and the HTTP façade. Field, Aggregate,
// Expression, ComparisonTarget, ComparisonValue and OrderByTarget are closed
// sum types, modeled as tagged structs with a Type discriminator so that
// lowering in internal/querysql can switch exhaustively over the Type field.
package models

// TypeRepresentation is the closed enum of scalar JSON representations.
type TypeRepresentation string

const (
	RepInt8        TypeRepresentation = "int8"
	RepInt16       TypeRepresentation = "int16"
	RepInt32       TypeRepresentation = "int32"
	RepInt64       TypeRepresentation = "int64"
	RepFloat32     TypeRepresentation = "float32"
	RepFloat64     TypeRepresentation = "float64"
	RepString      TypeRepresentation = "string"
	RepBoolean     TypeRepresentation = "boolean"
	RepBytes       TypeRepresentation = "bytes"
	RepDate        TypeRepresentation = "date"
	RepTimestamp   TypeRepresentation = "timestamp"
	RepTimestampTZ TypeRepresentation = "timestamptz"
	RepBigDecimal  TypeRepresentation = "bigdecimal"
	RepJSON        TypeRepresentation = "json"
)

// Type is the closed sum type Named | Nullable | Array.
type Type struct {
	Kind          string `json:"type"` // "named" | "nullable" | "array"
	Name          string `json:"name,omitempty"`
	UnderlyingType *Type  `json:"underlying_type,omitempty"`
	ElementType    *Type  `json:"element_type,omitempty"`
}

func Named(name string) Type { return Type{Kind: "named", Name: name} }

func Nullable(t Type) Type { return Type{Kind: "nullable", UnderlyingType: &t} }

func Array(t Type) Type { return Type{Kind: "array", ElementType: &t} }

// ComparisonOperatorKind discriminates the closed comparison-operator enum.
type ComparisonOperatorKind string

const (
	OpEqual  ComparisonOperatorKind = "equal"
	OpIn     ComparisonOperatorKind = "in"
	OpCustom ComparisonOperatorKind = "custom"
)

type ComparisonOperatorDefinition struct {
	Kind         ComparisonOperatorKind `json:"type"`
	ArgumentType *Type                  `json:"argument_type,omitempty"`
}

func EqualOp() ComparisonOperatorDefinition {
	return ComparisonOperatorDefinition{Kind: OpEqual}
}

func InOp() ComparisonOperatorDefinition {
	return ComparisonOperatorDefinition{Kind: OpIn}
}

func CustomOp(argType Type) ComparisonOperatorDefinition {
	return ComparisonOperatorDefinition{Kind: OpCustom, ArgumentType: &argType}
}

type AggregateFunctionDefinition struct {
	ResultType Type `json:"result_type"`
}

// ScalarType is the registry entry described in C3.
type ScalarType struct {
	Representation      TypeRepresentation                      `json:"representation"`
	AggregateFunctions  map[string]AggregateFunctionDefinition   `json:"aggregate_functions"`
	ComparisonOperators map[string]ComparisonOperatorDefinition  `json:"comparison_operators"`
}

// ObjectField is one field of an NDC object type.
type ObjectField struct {
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
}

// ObjectType is the typed row shape of a collection.
type ObjectType struct {
	Description string                 `json:"description,omitempty"`
	Fields      map[string]ObjectField `json:"fields"`
}

// UniquenessConstraint names an ordered set of columns that uniquely
// identify a row.
type UniquenessConstraint struct {
	UniqueColumns []string `json:"unique_columns"`
}

// ForeignKeyConstraint is the NDC-facing foreign-key: a named mapping from
// local fields to a target collection's fields.
type ForeignKeyConstraint struct {
	ColumnMapping    map[string]string `json:"column_mapping"`
	ForeignCollection string           `json:"foreign_collection"`
}

// CollectionInfo describes one queryable collection.
type CollectionInfo struct {
	Name                  string                          `json:"name"`
	Description           string                          `json:"description,omitempty"`
	CollectionType        string                          `json:"collection_type"`
	UniquenessConstraints map[string]UniquenessConstraint  `json:"uniqueness_constraints"`
	ForeignKeys           map[string]ForeignKeyConstraint  `json:"foreign_keys"`
}

// SchemaResponse is the result of C2 schema projection.
type SchemaResponse struct {
	ScalarTypes map[string]ScalarType     `json:"scalar_types"`
	ObjectTypes map[string]ObjectType     `json:"object_types"`
	Collections []CollectionInfo          `json:"collections"`
}

// CapabilitiesResponse is the static document returned by the capabilities
// endpoint.
type CapabilitiesResponse struct {
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
}

type Capabilities struct {
	Query         QueryCapabilities `json:"query"`
	Relationships struct{}          `json:"relationships"`
	Mutation      struct{}          `json:"mutation"`
}

type QueryCapabilities struct {
	Aggregates struct{} `json:"aggregates"`
	Variables  struct{} `json:"variables"`
}
