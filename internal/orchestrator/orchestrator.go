// Package orchestrator is the Query Orchestrator (C6): executes a QueryPlan
// built by internal/querysql through internal/engine, regroups results by
// variable-set index and normalises engine quirks. Grounded on the original
// connector's connectors/ndc-calcite/src/query.rs, including its unit tests
// (ported in orchestrator_test.go).
package orchestrator

import (
	"context"
	"fmt"

	"github.com/hasura/ndc-embedded/internal/engine"
	"github.com/hasura/ndc-embedded/internal/models"
)

const varSetIndexColumn = "__var_set_index"
const constantAlias = "CONSTANT"

// Config toggles the row fix-up pass (§4.5).
type Config struct {
	Fixes bool
}

// Execute runs plan through eng and returns the sequence of RowSets, one per
// variable binding (or exactly one if the plan carries no variables).
func Execute(ctx context.Context, eng *engine.Handle, cfg Config, plan *models.QueryPlan, traceID, spanID string) ([]models.RowSet, error) {
	var rows, aggRows []engine.Row
	var err error

	if plan.RowSQL != "" {
		rows, err = eng.Execute(ctx, plan.RowSQL, traceID, spanID, plan.IsExplain, plan.JSONObjectMode)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: row query failed: %w", err)
		}
	}
	if plan.AggregateSQL != "" {
		aggRows, err = eng.Execute(ctx, plan.AggregateSQL, traceID, spanID, plan.IsExplain, plan.JSONObjectMode)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: aggregate query failed: %w", err)
		}
	}

	if cfg.Fixes {
		fixupAll(rows, plan.ExpectedRowAliases)
		fixupAll(aggRows, plan.ExpectedAggAliases)
	}

	return regroup(plan, rows, aggRows), nil
}

// fixupAll applies the row fix-up pass in place: fills missing expected
// aliases with null, replaces the four-character sentinel string "null"
// with a JSON null, and removes the reserved "CONSTANT" alias. Idempotent:
// applying it twice is a no-op on the second pass.
func fixupAll(rows []engine.Row, expectedAliases []string) {
	for _, row := range rows {
		for _, alias := range expectedAliases {
			if _, ok := row[alias]; !ok {
				row[alias] = nil
			}
		}
		for key, val := range row {
			if s, ok := val.(string); ok && s == "null" {
				row[key] = nil
			}
		}
		delete(row, constantAlias)
	}
}

// regroup implements §4.5 step 4: without variables, a single RowSet; with
// N variable bindings, pre-create N empty RowSets and route each row/
// aggregate record to its __var_set_index, dropping records whose index is
// missing, non-integer, or out of [0, N).
func regroup(plan *models.QueryPlan, rows, aggRows []engine.Row) []models.RowSet {
	if plan.VariablesCount == nil {
		rowSet := models.RowSet{}
		if rows != nil {
			rowSet.Rows = stripIndexAll(rows)
		}
		if len(aggRows) > 0 {
			rowSet.Aggregates = stripIndex(aggRows[0])
		}
		return []models.RowSet{rowSet}
	}

	n := *plan.VariablesCount
	if n < 1 {
		n = 1
	}
	out := make([]models.RowSet, n)

	for _, row := range rows {
		idx, ok := varSetIndex(row, n)
		if !ok {
			continue
		}
		clean := stripIndex(row)
		out[idx].Rows = append(out[idx].Rows, clean)
	}
	for _, row := range aggRows {
		idx, ok := varSetIndex(row, n)
		if !ok {
			continue
		}
		out[idx].Aggregates = stripIndex(row)
	}
	return out
}

func varSetIndex(row engine.Row, n int) (int, bool) {
	raw, ok := row[varSetIndexColumn]
	if !ok {
		return 0, false
	}
	var idx int
	switch v := raw.(type) {
	case float64:
		idx = int(v)
		if float64(idx) != v {
			return 0, false
		}
	case int:
		idx = v
	case int64:
		idx = int(v)
	default:
		return 0, false
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func stripIndex(row engine.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if k == varSetIndexColumn {
			continue
		}
		out[k] = v
	}
	return out
}

func stripIndexAll(rows []engine.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = stripIndex(r)
	}
	return out
}
