package querysql

import (
	"testing"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/models"
)

func ordersTable() map[string]metadata.TableMetadata {
	return map[string]metadata.TableMetadata{
		"orders": {
			Catalog: "sales",
			Schema:  "public",
			Name:    "orders",
			Columns: map[string]metadata.ColumnMetadata{
				"id":    {Name: "id", ScalarType: "INTEGER", Nullable: false},
				"total": {Name: "total", ScalarType: "DECIMAL", Nullable: true},
			},
		},
	}
}

func u32(n uint32) *uint32 { return &n }

// S1 — simple projection.
func TestGenerateSimpleProjection(t *testing.T) {
	query := models.Query{
		Fields: map[string]models.Field{
			"id":    {Kind: models.FieldColumn, Column: "id"},
			"total": {Kind: models.FieldColumn, Column: "total"},
		},
	}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT "sales"."public"."orders"."id" AS "id","sales"."public"."orders"."total" AS "total" FROM "sales"."public"."orders"`
	if plan.RowSQL != want {
		t.Fatalf("got:\n%s\nwant:\n%s", plan.RowSQL, want)
	}
}

// S2 — limit/offset + order.
func TestGenerateLimitOffsetOrder(t *testing.T) {
	query := models.Query{
		Fields: map[string]models.Field{
			"id": {Kind: models.FieldColumn, Column: "id"},
		},
		Limit:  u32(10),
		Offset: u32(5),
		OrderBy: []models.OrderByElement{
			{OrderDirection: models.Desc, Target: models.OrderByTarget{Kind: models.TargetColumn, Column: &models.ComparisonTarget{Kind: models.TargetColumn, Name: "id"}}},
		},
	}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const suffix = ` ORDER BY "id" DESC LIMIT 10 OFFSET 5`
	if len(plan.RowSQL) < len(suffix) || plan.RowSQL[len(plan.RowSQL)-len(suffix):] != suffix {
		t.Fatalf("expected suffix %q, got %q", suffix, plan.RowSQL)
	}
}

// S3 — star count.
func TestGenerateStarCount(t *testing.T) {
	query := models.Query{
		Aggregates: map[string]models.Aggregate{
			"n": {Kind: models.AggStarCount},
		},
	}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(plan.AggregateSQL, `COUNT(*) AS "n"`) {
		t.Fatalf("expected COUNT(*) AS \"n\" in %q", plan.AggregateSQL)
	}
}

// S4 — empty IN.
func TestGenerateEmptyIn(t *testing.T) {
	query := models.Query{
		Fields: map[string]models.Field{"id": {Kind: models.FieldColumn, Column: "id"}},
		Predicate: &models.Expression{
			Kind:           models.ExprBinary,
			Column:         &models.ComparisonTarget{Kind: models.TargetColumn, Name: "id"},
			BinaryOperator: models.BinIn,
			Value:          &models.ComparisonValue{Kind: models.ValueScalar, Value: []any{}},
		},
	}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"id" IN (SELECT "id" FROM "sales"."public"."orders" WHERE FALSE)`
	if !contains(plan.RowSQL, want) {
		t.Fatalf("expected %q in %q", want, plan.RowSQL)
	}
}

// S5 — two variable bindings.
func TestGenerateTwoVariableBindings(t *testing.T) {
	query := models.Query{
		Fields: map[string]models.Field{"id": {Kind: models.FieldColumn, Column: "id"}},
		Predicate: &models.Expression{
			Kind:           models.ExprBinary,
			Column:         &models.ComparisonTarget{Kind: models.TargetColumn, Name: "id"},
			BinaryOperator: models.BinEqual,
			Value:          &models.ComparisonValue{Kind: models.ValueVariable, VariableName: "x"},
		},
	}
	variables := []map[string]any{{"x": float64(1)}, {"x": float64(2)}}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, variables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.VariablesCount == nil || *plan.VariablesCount != 2 {
		t.Fatalf("expected VariablesCount=2, got %v", plan.VariablesCount)
	}
	if !contains(plan.RowSQL, "WITH variables") {
		t.Fatalf("expected variables CTE in %q", plan.RowSQL)
	}
	if !contains(plan.RowSQL, `variables."x"`) {
		t.Fatalf("expected variable reference in %q", plan.RowSQL)
	}
	if !contains(plan.RowSQL, "CROSS JOIN variables") {
		t.Fatalf("expected cross join in %q", plan.RowSQL)
	}
}

// Exists (unrelated) with a variable-bound limit argument must route the
// bound value through the variables CTE, not emit the bare variable name as
// a SQL identifier.
func TestGenerateExistsUnrelatedWithVariableLimitArgument(t *testing.T) {
	query := models.Query{
		Fields: map[string]models.Field{"id": {Kind: models.FieldColumn, Column: "id"}},
		Predicate: &models.Expression{
			Kind: models.ExprExists,
			In: &models.CollectionRef{
				Kind:           models.RefUnrelated,
				CollectionName: "orders",
				Arguments: map[string]models.Argument{
					"limit": {Kind: "variable", Name: "myLimitVar"},
				},
			},
			Predicate: &models.Expression{
				Kind:           models.ExprBinary,
				Column:         &models.ComparisonTarget{Kind: models.TargetColumn, Name: "id"},
				BinaryOperator: models.BinEqual,
				Value:          &models.ComparisonValue{Kind: models.ValueScalar, Value: float64(1)},
			},
		},
	}
	variables := []map[string]any{{"myLimitVar": float64(5)}}
	plan, err := Generate(Config{}, ordersTable(), nil, "orders", query, variables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `LIMIT variables."myLimitVar"`
	if !contains(plan.RowSQL, want) {
		t.Fatalf("expected %q in %q", want, plan.RowSQL)
	}
	if contains(plan.RowSQL, "LIMIT myLimitVar") {
		t.Fatalf("bare variable name leaked as a SQL identifier in %q", plan.RowSQL)
	}
}

// Invariant 7 / S4 empty-in-safety is covered above; the SchemaNameClash
// collision is covered separately in internal/schema.

func TestGenerateUnknownCollection(t *testing.T) {
	_, err := Generate(Config{}, ordersTable(), nil, "missing", models.Query{}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}

// Generator purity: identical inputs produce byte-identical output.
func TestGeneratePurity(t *testing.T) {
	query := models.Query{Fields: map[string]models.Field{"id": {Kind: models.FieldColumn, Column: "id"}}}
	p1, err1 := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	p2, err2 := Generate(Config{}, ordersTable(), nil, "orders", query, nil)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if p1.RowSQL != p2.RowSQL {
		t.Fatalf("generator is not pure: %q vs %q", p1.RowSQL, p2.RowSQL)
	}
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
