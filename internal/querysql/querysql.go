// Package querysql is the pure SQL generator (C4): a function from
// (Query, variable bindings, metadata) to row-SQL and/or aggregate-SQL.
// Grounded line-by-line on the original connector's
// connectors/ndc-calcite/src/sql.rs, extended per the expanded spec with a
// variables-CTE batching mode (sql.rs instead executes once per binding;
// the CTE join is this implementation's chosen design, see DESIGN.md).
package querysql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/models"
	"github.com/hasura/ndc-embedded/internal/util"
)

// Config toggles the projection mode (§4.3).
type Config struct {
	SupportsJSONObject bool
}

const varSetIndexColumn = "__var_set_index"
const constantAlias = "CONSTANT"

// Generate produces a QueryPlan for one collection, query and set of
// variable bindings against the given table metadata and relationships.
func Generate(cfg Config, tables map[string]metadata.TableMetadata, relationships map[string]models.Relationship, collectionName string, query models.Query, variables []map[string]any) (*models.QueryPlan, error) {
	table, ok := tables[collectionName]
	if !ok {
		return nil, util.CollectionNotFound(collectionName)
	}
	qualified := qualifiedTableName(table)

	g := &generator{cfg: cfg, tables: tables, relationships: relationships, variables: distinctVariableNames(variables)}

	projection, rowAliases, err := g.projection(query, qualified, collectionName)
	if err != nil {
		return nil, err
	}

	where, err := g.predicateClause(collectionName, query.Predicate)
	if err != nil {
		return nil, err
	}

	orderBy, err := g.orderByClause(query)
	if err != nil {
		return nil, err
	}

	pagination := g.paginationClause(query)

	aggExprs, aggAliases := g.aggregates(query)

	plan := &models.QueryPlan{
		ExpectedRowAliases: rowAliases,
		ExpectedAggAliases: aggAliases,
		JSONObjectMode:     cfg.SupportsJSONObject,
	}

	cteSQL, crossJoin := "", ""
	if len(variables) > 0 {
		cteSQL = g.variablesCTE(variables)
		crossJoin = " CROSS JOIN variables"
		n := len(variables)
		plan.VariablesCount = &n
	}

	if len(query.Fields) > 0 || (len(query.Aggregates) == 0 && len(projection) == 0) {
		rowProjection := projection
		if len(rowProjection) == 0 {
			rowProjection = []string{g.constantProjection()}
		}
		if len(variables) > 0 {
			rowProjection = append(rowProjection, g.varSetIndexProjection())
		}
		plan.RowSQL = g.assembleSelect(cteSQL, rowProjection, qualified, crossJoin, where, orderBy, pagination)
	}

	if len(query.Aggregates) > 0 {
		aggProjection := aggExprs
		if len(variables) > 0 {
			aggProjection = append(append([]string{}, aggExprs...), g.varSetIndexProjection())
		}
		plan.AggregateSQL = g.assembleSelect(cteSQL, aggProjection, qualified, crossJoin, where, orderBy, pagination)
	}

	return plan, nil
}

type generator struct {
	cfg           Config
	tables        map[string]metadata.TableMetadata
	relationships map[string]models.Relationship
	variables     []string
}

// qualifiedTableName renders "catalog"."schema"."name", omitting empty parts.
func qualifiedTableName(t metadata.TableMetadata) string {
	var parts []string
	if t.Catalog != "" {
		parts = append(parts, quoteIdent(t.Catalog))
	}
	if t.Schema != "" {
		parts = append(parts, quoteIdent(t.Schema))
	}
	parts = append(parts, quoteIdent(t.Name))
	return strings.Join(parts, ".")
}

func quoteIdent(s string) string { return `"` + s + `"` }

func columnName(name string, fieldPath []string) string {
	if len(fieldPath) == 0 {
		return name
	}
	return strings.Join(append(append([]string{}, fieldPath...), name), ".")
}

func (g *generator) fieldStatement(key, column, table string) string {
	if g.cfg.SupportsJSONObject {
		return fmt.Sprintf("'%s', %s.%s", key, table, quoteIdent(column))
	}
	return fmt.Sprintf("%s.%s AS %s", table, quoteIdent(column), quoteIdent(key))
}

// projection walks query.Fields and returns the select-list items plus the
// set of expected row aliases (for the fix-up pass).
func (g *generator) projection(query models.Query, table, collectionName string) ([]string, []string, error) {
	var items []string
	var aliases []string
	seen := map[string]bool{}

	keys := sortedKeys(query.Fields)
	for _, key := range keys {
		field := query.Fields[key]
		aliases = append(aliases, key)
		switch field.Kind {
		case models.FieldColumn:
			stmt := g.fieldStatement(key, field.Column, table)
			if !seen[stmt] {
				seen[stmt] = true
				items = append(items, stmt)
			}
		case models.FieldRelationship:
			if g.cfg.SupportsJSONObject {
				items = append(items, fmt.Sprintf("'%s', 1", key))
			} else {
				items = append(items, fmt.Sprintf("1 AS %s", quoteIdent(key)))
			}
			if rel, ok := g.relationships[field.RelationshipName]; ok {
				pkCols := sortedKeysOf(rel.ColumnMapping)
				for _, pk := range pkCols {
					var stmt string
					if g.cfg.SupportsJSONObject {
						stmt = fmt.Sprintf("'%s', %s.%s", pk, table, quoteIdent(pk))
					} else {
						stmt = fmt.Sprintf("%s.%s", table, quoteIdent(pk))
					}
					if !seen[stmt] {
						seen[stmt] = true
						items = append(items, stmt)
					}
				}
			}
		default:
			return nil, nil, util.UnsupportedPredicate(fmt.Sprintf("unsupported field kind %q", field.Kind))
		}
	}
	return items, aliases, nil
}

func (g *generator) constantProjection() string {
	if g.cfg.SupportsJSONObject {
		return fmt.Sprintf("'%s', 1", constantAlias)
	}
	return fmt.Sprintf("1 AS %s", quoteIdent(constantAlias))
}

func (g *generator) varSetIndexProjection() string {
	if g.cfg.SupportsJSONObject {
		return fmt.Sprintf("'%s', variables.%s", varSetIndexColumn, quoteIdent(varSetIndexColumn))
	}
	return fmt.Sprintf("variables.%s AS %s", quoteIdent(varSetIndexColumn), quoteIdent(varSetIndexColumn))
}

func (g *generator) orderByClause(query models.Query) (string, error) {
	var parts []string
	for _, elem := range query.OrderBy {
		if elem.Target.Kind != models.TargetColumn {
			return "", util.UnsupportedPredicate("only column order-by targets are supported")
		}
		col := elem.Target.Column
		name := columnName(col.Name, col.FieldPath)
		dir := "ASC"
		if elem.OrderDirection == models.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", quoteIdent(name), dir))
	}
	return strings.Join(parts, ", "), nil
}

func (g *generator) paginationClause(query models.Query) string {
	var parts []string
	if query.Limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *query.Limit))
	}
	if query.Offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *query.Offset))
	}
	return strings.Join(parts, " ")
}

func (g *generator) aggregateColumnName(column string, fieldPath []string) string {
	return quoteIdent(columnName(column, fieldPath))
}

func (g *generator) aggregateStatement(name, expr string) string {
	if g.cfg.SupportsJSONObject {
		return fmt.Sprintf("'%s', %s", name, expr)
	}
	return fmt.Sprintf("%s AS %s", expr, quoteIdent(name))
}

func (g *generator) aggregates(query models.Query) ([]string, []string) {
	var items []string
	var aliases []string
	for _, name := range sortedKeysOf(query.Aggregates) {
		agg := query.Aggregates[name]
		aliases = append(aliases, name)
		var expr string
		switch agg.Kind {
		case models.AggColumnCount:
			distinct := ""
			if agg.Distinct {
				distinct = "DISTINCT "
			}
			expr = fmt.Sprintf("COUNT(%s%s)", distinct, g.aggregateColumnName(agg.Column, agg.FieldPath))
		case models.AggSingleColumn:
			expr = fmt.Sprintf("%s(%s)", agg.Function, g.aggregateColumnName(agg.Column, agg.FieldPath))
		case models.AggStarCount:
			expr = "COUNT(*)"
		}
		items = append(items, g.aggregateStatement(name, expr))
	}
	return items, aliases
}

// predicateClause lowers query.Predicate, if present, in the context of
// collectionName's table.
func (g *generator) predicateClause(collectionName string, predicate *models.Expression) (string, error) {
	if predicate == nil {
		return "", nil
	}
	return g.lower(collectionName, predicate)
}

func (g *generator) lower(collectionName string, expr *models.Expression) (string, error) {
	table, ok := g.tables[collectionName]
	if !ok {
		return "", util.CollectionNotFound(collectionName)
	}
	qualified := qualifiedTableName(table)

	switch expr.Kind {
	case models.ExprAnd:
		parts, err := g.lowerAll(collectionName, expr.Expressions)
		if err != nil {
			return "", err
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case models.ExprOr:
		parts, err := g.lowerAll(collectionName, expr.Expressions)
		if err != nil {
			return "", err
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case models.ExprNot:
		inner, err := g.lower(collectionName, expr.Expression)
		if err != nil {
			return "", err
		}
		return "(NOT " + inner + ")", nil
	case models.ExprUnary:
		if expr.UnaryOperator != models.UnaryIsNull {
			return "", util.UnsupportedPredicate(fmt.Sprintf("unsupported unary operator %q", expr.UnaryOperator))
		}
		if expr.Column.Kind != models.TargetColumn {
			return "", util.UnsupportedPredicate("root_collection_column is not supported")
		}
		name := columnName(expr.Column.Name, expr.Column.FieldPath)
		return fmt.Sprintf("%s IS NULL", quoteIdent(name)), nil
	case models.ExprBinary:
		return g.lowerBinary(collectionName, qualified, expr)
	case models.ExprExists:
		return g.lowerExists(collectionName, qualified, expr)
	default:
		return "", util.UnsupportedPredicate(fmt.Sprintf("unsupported expression kind %q", expr.Kind))
	}
}

func (g *generator) lowerAll(collectionName string, exprs []models.Expression) ([]string, error) {
	out := make([]string, 0, len(exprs))
	for i := range exprs {
		s, err := g.lower(collectionName, &exprs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

var sqlOperators = map[string]string{
	models.BinGT:    ">",
	models.BinLT:    "<",
	models.BinGTE:   ">=",
	models.BinLTE:   "<=",
	models.BinEqual: "=",
	models.BinIn:    "IN",
	models.BinLike:  "LIKE",
}

func (g *generator) lowerBinary(collectionName, qualified string, expr *models.Expression) (string, error) {
	if expr.Column.Kind != models.TargetColumn {
		return "", util.UnsupportedPredicate("root_collection_column is not supported")
	}
	op, ok := sqlOperators[expr.BinaryOperator]
	if !ok {
		return "", util.UnsupportedPredicate(fmt.Sprintf("unsupported binary operator %q", expr.BinaryOperator))
	}
	left := quoteIdent(columnName(expr.Column.Name, expr.Column.FieldPath))

	var right string
	switch expr.Value.Kind {
	case models.ValueColumn:
		if expr.Value.Column.Kind != models.TargetColumn {
			return "", util.UnsupportedPredicate("root_collection_column is not supported")
		}
		right = columnName(expr.Value.Column.Name, expr.Value.Column.FieldPath)
	case models.ValueScalar:
		lit, isEmptyArray := literal(expr.Value.Value)
		if isEmptyArray && expr.BinaryOperator == models.BinIn {
			return fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE FALSE)", left, left, qualified), nil
		}
		right = lit
	case models.ValueVariable:
		right = fmt.Sprintf("variables.%s", quoteIdent(expr.Value.VariableName))
	default:
		return "", util.UnsupportedPredicate(fmt.Sprintf("unsupported comparison value kind %q", expr.Value.Kind))
	}
	return fmt.Sprintf("%s %s %s", left, op, right), nil
}

func (g *generator) lowerExists(collectionName, qualified string, expr *models.Expression) (string, error) {
	switch expr.In.Kind {
	case models.RefRelated:
		rel, ok := g.relationships[expr.In.RelationshipName]
		if !ok {
			return "", util.UnsupportedPredicate(fmt.Sprintf("unknown relationship %q", expr.In.RelationshipName))
		}
		foreignTable, ok := g.tables[rel.TargetCollection]
		if !ok {
			return "", util.CollectionNotFound(rel.TargetCollection)
		}
		if expr.Predicate == nil {
			return "", nil
		}
		joinCols := sortedKeysOf(rel.ColumnMapping)
		joinConds := make([]string, 0, len(joinCols))
		for _, source := range joinCols {
			target := rel.ColumnMapping[source]
			joinConds = append(joinConds, fmt.Sprintf("%s.%s = %s", qualified, quoteIdent(source), quoteIdent(target)))
		}
		inner, err := g.lower(collectionName, expr.Predicate)
		if err != nil {
			return "", err
		}
		args := argumentClauses(expr.In.Arguments)
		sub := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE (%s AND %s)%s)",
			qualifiedTableName(foreignTable), strings.Join(joinConds, " AND "), inner, argSuffix(args))
		return sub, nil
	case models.RefUnrelated:
		if expr.Predicate == nil {
			return "", nil
		}
		foreignTable, ok := g.tables[expr.In.CollectionName]
		if !ok {
			return "", util.CollectionNotFound(expr.In.CollectionName)
		}
		inner, err := g.lower(expr.In.CollectionName, expr.Predicate)
		if err != nil {
			return "", err
		}
		args := argumentClauses(expr.In.Arguments)
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s%s)", qualifiedTableName(foreignTable), inner, argSuffix(args)), nil
	default:
		return "", util.UnsupportedPredicate("nested-collection exists is not supported")
	}
}

func argumentClauses(arguments map[string]models.Argument) []string {
	var out []string
	for _, name := range sortedKeysOf(arguments) {
		arg := arguments[name]
		var value string
		switch arg.Kind {
		case "literal":
			value = fmt.Sprintf("%v", arg.Value)
		case "variable":
			value = fmt.Sprintf("variables.%s", quoteIdent(arg.Name))
		default:
			continue
		}
		switch name {
		case "limit":
			out = append(out, "LIMIT "+value)
		case "offset":
			out = append(out, "OFFSET "+value)
		}
	}
	return out
}

func argSuffix(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return " " + strings.Join(args, " ")
}

// literal renders a scalar JSON value as its canonical SQL literal. Returns
// true as the second value when v is an empty array, so callers can apply
// the empty-IN-safety rewrite instead of emitting "IN ()".
func literal(v any) (string, bool) {
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return "()", true
		}
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i], _ = literal(item)
		}
		return "(" + strings.Join(parts, ", ") + ")", false
	case string:
		return quoteSQLString(val), false
	case nil:
		return "NULL", false
	case bool:
		if val {
			return "TRUE", false
		}
		return "FALSE", false
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), false
	default:
		return sanitizeQuotes(fmt.Sprintf("%v", val)), false
	}
}

// sanitizeQuotes replaces embedded double quotes with a reserved sentinel so
// the assembled SQL's identifier quoting cannot be confused.
func sanitizeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "__UTF8__")
}

// quoteSQLString renders a string scalar as a single-quoted SQL literal:
// single quotes are escaped as \', embedded double quotes are replaced with
// the reserved sentinel.
func quoteSQLString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "\\'")
	return "'" + sanitizeQuotes(escaped) + "'"
}

func (g *generator) variablesCTE(variables []map[string]any) string {
	names := g.variables
	rows := make([]string, 0, len(variables))
	for i, binding := range variables {
		vals := make([]string, 0, len(names)+1)
		for _, name := range names {
			lit, _ := literal(binding[name])
			vals = append(vals, lit)
		}
		vals = append(vals, strconv.Itoa(i))
		rows = append(rows, "("+strings.Join(vals, ", ")+")")
	}
	cols := make([]string, 0, len(names)+1)
	for _, name := range names {
		cols = append(cols, quoteIdent(name))
	}
	cols = append(cols, quoteIdent(varSetIndexColumn))
	return fmt.Sprintf("WITH variables(%s) AS (VALUES %s) ", strings.Join(cols, ", "), strings.Join(rows, ", "))
}

func (g *generator) assembleSelect(cte string, projection []string, table, crossJoin, where, orderBy, pagination string) string {
	selectClause := strings.Join(projection, ",")
	if selectClause == "" {
		selectClause = g.constantProjection()
	}

	var b strings.Builder
	b.WriteString(cte)
	if g.cfg.SupportsJSONObject {
		b.WriteString("SELECT JSON_OBJECT(")
		b.WriteString(selectClause)
		b.WriteString(") FROM ")
	} else {
		b.WriteString("SELECT ")
		b.WriteString(selectClause)
		b.WriteString(" FROM ")
	}
	b.WriteString(table)
	b.WriteString(crossJoin)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	if pagination != "" {
		b.WriteString(" ")
		b.WriteString(pagination)
	}
	return b.String()
}

func distinctVariableNames(variables []map[string]any) []string {
	seen := map[string]bool{}
	var names []string
	for _, binding := range variables {
		for name := range binding {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]models.Field) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
