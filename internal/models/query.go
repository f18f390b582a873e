package models

// Field is the closed sum type Column | Relationship.
type Field struct {
	Kind             string           `json:"type"` // "column" | "relationship"
	Column           string           `json:"column,omitempty"`
	Fields           map[string]Field `json:"fields,omitempty"`
	RelationshipName string           `json:"relationship,omitempty"`
	Arguments        map[string]Argument `json:"arguments,omitempty"`
	Query            *Query           `json:"query,omitempty"`
}

// Argument is a literal or variable-bound argument value.
type Argument struct {
	Kind  string `json:"type"` // "literal" | "variable"
	Value any    `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Aggregate is the closed sum type ColumnCount | SingleColumn | StarCount.
type Aggregate struct {
	Kind      string   `json:"type"` // "column_count" | "single_column" | "star_count"
	Column    string   `json:"column,omitempty"`
	Distinct  bool     `json:"distinct,omitempty"`
	Function  string   `json:"function,omitempty"`
	FieldPath []string `json:"field_path,omitempty"`
}

// ComparisonTarget discriminates what side of a Binary/Unary expression a
// column reference points at.
type ComparisonTarget struct {
	Kind      string   `json:"type"` // "column" | "root_collection_column"
	Name      string   `json:"name,omitempty"`
	Path      []string `json:"path,omitempty"`
	FieldPath []string `json:"field_path,omitempty"`
}

// ComparisonValue is the closed sum type Scalar | Variable | Column.
type ComparisonValue struct {
	Kind         string           `json:"type"` // "scalar" | "variable" | "column"
	Value        any              `json:"value,omitempty"`
	VariableName string           `json:"name,omitempty"`
	Column       *ComparisonTarget `json:"column,omitempty"`
}

// CollectionRef discriminates Related | Unrelated exists targets.
type CollectionRef struct {
	Kind             string              `json:"type"` // "related" | "unrelated"
	RelationshipName string              `json:"relationship,omitempty"`
	CollectionName   string              `json:"collection,omitempty"`
	Arguments        map[string]Argument `json:"arguments,omitempty"`
}

// Expression is the closed sum type And|Or|Not|Unary(IsNull)|Binary|Exists.
type Expression struct {
	Kind string `json:"type"`
	// And / Or
	Expressions []Expression `json:"expressions,omitempty"`
	// Not
	Expression *Expression `json:"expression,omitempty"`
	// Unary (only IsNull is supported)
	UnaryOperator string            `json:"operator,omitempty"`
	Column        *ComparisonTarget `json:"column,omitempty"`
	// Binary
	BinaryOperator string           `json:"operator_binary,omitempty"`
	Value          *ComparisonValue `json:"value,omitempty"`
	// Exists
	In        *CollectionRef `json:"in_collection,omitempty"`
	Predicate *Expression    `json:"predicate,omitempty"`
}

const (
	ExprAnd    = "and"
	ExprOr     = "or"
	ExprNot    = "not"
	ExprUnary  = "unary_comparison_operator"
	ExprBinary = "binary_comparison_operator"
	ExprExists = "exists"

	UnaryIsNull = "is_null"

	BinEqual = "_eq"
	BinIn    = "_in"
	BinGT    = "_gt"
	BinGTE   = "_gte"
	BinLT    = "_lt"
	BinLTE   = "_lte"
	BinLike  = "_like"

	TargetColumn              = "column"
	TargetRootCollectionColumn = "root_collection_column"

	ValueScalar   = "scalar"
	ValueVariable = "variable"
	ValueColumn   = "column"

	RefRelated   = "related"
	RefUnrelated = "unrelated"

	FieldColumn       = "column"
	FieldRelationship = "relationship"

	AggColumnCount  = "column_count"
	AggSingleColumn = "single_column"
	AggStarCount    = "star_count"
)

// OrderDirection is Asc | Desc.
type OrderDirection string

const (
	Asc  OrderDirection = "asc"
	Desc OrderDirection = "desc"
)

// OrderByTarget discriminates what an OrderByElement targets; only plain
// column targets are supported by the core SQL generator.
type OrderByTarget struct {
	Kind   string            `json:"type"` // "column"
	Column *ComparisonTarget `json:"column,omitempty"`
}

type OrderByElement struct {
	OrderDirection OrderDirection `json:"order_direction"`
	Target         OrderByTarget  `json:"target"`
}

// Query is one request's row/aggregate/predicate/ordering/pagination shape.
type Query struct {
	Fields    map[string]Field     `json:"fields,omitempty"`
	Aggregates map[string]Aggregate `json:"aggregates,omitempty"`
	Predicate *Expression          `json:"predicate,omitempty"`
	OrderBy   []OrderByElement     `json:"order_by,omitempty"`
	Limit     *uint32              `json:"limit,omitempty"`
	Offset    *uint32              `json:"offset,omitempty"`
}

// QueryRequest is the top-level request body for the query endpoint.
type QueryRequest struct {
	Collection          string              `json:"collection"`
	Query               Query               `json:"query"`
	Arguments           map[string]Argument `json:"arguments,omitempty"`
	CollectionRelationships map[string]any  `json:"collection_relationships,omitempty"`
	Variables           []map[string]any    `json:"variables,omitempty"`
}

// RowSet is one element of a QueryResponse; one per variable binding.
type RowSet struct {
	Aggregates map[string]any   `json:"aggregates,omitempty"`
	Rows       []map[string]any `json:"rows,omitempty"`
}

// QueryResponse is the sequence of RowSets returned by the query endpoint.
type QueryResponse []RowSet

// Relationship describes one named join target used by Field.Relationship
// and Expression.Exists(Related).
type Relationship struct {
	ColumnMapping    map[string]string `json:"column_mapping"`
	TargetCollection string            `json:"target_collection"`
}

// QueryPlan is produced by the SQL generator and consumed by the
// orchestrator. It is never serialised over the wire.
type QueryPlan struct {
	VariablesCount *int
	RowSQL         string
	AggregateSQL   string
	IsExplain      bool
	// ExpectedRowAliases/ExpectedAggAliases are the field/aggregate aliases requested, used
	// by the fix-up pass to fill in missing columns with null.
	ExpectedRowAliases []string
	ExpectedAggAliases []string
	// JSONObjectMode is set when RowSQL/AggregateSQL were generated with
	// querysql.Config.SupportsJSONObject, so the engine knows to decode and
	// flatten the single JSON_OBJECT column instead of reading driver
	// columns directly.
	JSONObjectMode bool
}
