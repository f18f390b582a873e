package orchestrator

import (
	"testing"

	"github.com/hasura/ndc-embedded/internal/engine"
	"github.com/hasura/ndc-embedded/internal/models"
)

func intPtr(i int) *int { return &i }

func TestRegroupEmptyInputs(t *testing.T) {
	plan := &models.QueryPlan{}
	out := regroup(plan, nil, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 RowSet, got %d", len(out))
	}
	if out[0].Rows != nil || out[0].Aggregates != nil {
		t.Fatalf("expected empty RowSet, got %+v", out[0])
	}
}

func TestRegroupOnlyRows(t *testing.T) {
	plan := &models.QueryPlan{}
	rows := []engine.Row{{"id": float64(1)}, {"id": float64(2)}}
	out := regroup(plan, rows, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 RowSet, got %d", len(out))
	}
	if len(out[0].Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out[0].Rows))
	}
}

func TestRegroupOnlyAggregates(t *testing.T) {
	plan := &models.QueryPlan{}
	aggRows := []engine.Row{{"n": float64(5)}}
	out := regroup(plan, nil, aggRows)
	if len(out) != 1 {
		t.Fatalf("expected 1 RowSet, got %d", len(out))
	}
	if out[0].Aggregates["n"] != float64(5) {
		t.Fatalf("expected aggregate n=5, got %+v", out[0].Aggregates)
	}
}

func TestRegroupRowsAndAggregatesByVariableSet(t *testing.T) {
	plan := &models.QueryPlan{VariablesCount: intPtr(2)}
	rows := []engine.Row{
		{"id": float64(2), varSetIndexColumn: float64(1)},
	}
	aggRows := []engine.Row{
		{"n": float64(0), varSetIndexColumn: float64(0)},
		{"n": float64(1), varSetIndexColumn: float64(1)},
	}
	out := regroup(plan, rows, aggRows)
	if len(out) != 2 {
		t.Fatalf("expected 2 RowSets, got %d", len(out))
	}
	if len(out[0].Rows) != 0 {
		t.Fatalf("expected empty rows for index 0, got %+v", out[0].Rows)
	}
	if len(out[1].Rows) != 1 {
		t.Fatalf("expected 1 row for index 1, got %+v", out[1].Rows)
	}
	if out[0].Aggregates["n"] != float64(0) || out[1].Aggregates["n"] != float64(1) {
		t.Fatalf("aggregates misrouted: %+v", out)
	}
}

func TestRegroupDropsInvalidIndex(t *testing.T) {
	plan := &models.QueryPlan{VariablesCount: intPtr(2)}
	rows := []engine.Row{
		{"id": float64(1), varSetIndexColumn: float64(7)},  // out of range
		{"id": float64(2)},                                 // missing index
		{"id": float64(3), varSetIndexColumn: "not-a-number"}, // non-integer
		{"id": float64(4), varSetIndexColumn: float64(0)},
	}
	out := regroup(plan, rows, nil)
	if len(out[0].Rows) != 1 {
		t.Fatalf("expected exactly 1 surviving row, got %d: %+v", len(out[0].Rows), out)
	}
	if out[0].Rows[0]["id"] != float64(4) {
		t.Fatalf("expected surviving row id=4, got %+v", out[0].Rows[0])
	}
	if len(out[1].Rows) != 0 {
		t.Fatalf("expected no rows for index 1, got %+v", out[1].Rows)
	}
}

func TestFixupsStripConstantAndNullSentinel(t *testing.T) {
	rows := []engine.Row{
		{constantAlias: float64(1), "name": "null"},
	}
	fixupAll(rows, []string{"name", "extra"})
	if _, ok := rows[0][constantAlias]; ok {
		t.Fatalf("CONSTANT alias should be stripped")
	}
	if rows[0]["name"] != nil {
		t.Fatalf("expected sentinel \"null\" replaced with nil, got %v", rows[0]["name"])
	}
	if v, ok := rows[0]["extra"]; !ok || v != nil {
		t.Fatalf("expected missing alias filled with nil, got %v (ok=%v)", v, ok)
	}
}

func TestFixupsIdempotent(t *testing.T) {
	rows := []engine.Row{
		{constantAlias: float64(1), "name": "null"},
	}
	fixupAll(rows, []string{"name"})
	once := map[string]any{}
	for k, v := range rows[0] {
		once[k] = v
	}
	fixupAll(rows, []string{"name"})
	if len(rows[0]) != len(once) {
		t.Fatalf("second fixup pass changed row shape: %+v vs %+v", rows[0], once)
	}
	for k, v := range once {
		if rows[0][k] != v {
			t.Fatalf("second fixup pass changed value for %q: %v vs %v", k, rows[0][k], v)
		}
	}
}
