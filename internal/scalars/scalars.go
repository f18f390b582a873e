// Package scalars is the static catalogue of supported scalar types, keyed
// by engine type name, with their JSON representation, aggregate functions
// and comparison operators. Grounded on the original connector's
// scalars.rs/aggregates.rs/comparators.rs — entries and representation
// choices (including the BIGINT/DECIMAL-as-String idiosyncrasy) are carried
// over unchanged.
package scalars

import "github.com/hasura/ndc-embedded/internal/models"

// NumericAggregates returns the {sum, max, avg, min} aggregate set, each
// returning Nullable(Named(underlyingType)).
func NumericAggregates(underlyingType string) map[string]models.AggregateFunctionDefinition {
	out := make(map[string]models.AggregateFunctionDefinition, 4)
	for _, fn := range []string{"sum", "max", "avg", "min"} {
		out[fn] = models.AggregateFunctionDefinition{
			ResultType: models.Nullable(models.Named(underlyingType)),
		}
	}
	return out
}

// NumericComparators returns {_eq, _in, _gt, _gte, _lt, _lte: Custom(underlying)}.
func NumericComparators(underlying string) map[string]models.ComparisonOperatorDefinition {
	return map[string]models.ComparisonOperatorDefinition{
		"_eq":  models.EqualOp(),
		"_in":  models.InOp(),
		"_gt":  models.CustomOp(models.Named(underlying)),
		"_gte": models.CustomOp(models.Named(underlying)),
		"_lt":  models.CustomOp(models.Named(underlying)),
		"_lte": models.CustomOp(models.Named(underlying)),
	}
}

// StringComparators is the numeric set plus {_like: Custom(Named("VARCHAR"))}.
func StringComparators(numeric map[string]models.ComparisonOperatorDefinition) map[string]models.ComparisonOperatorDefinition {
	out := make(map[string]models.ComparisonOperatorDefinition, len(numeric)+1)
	for k, v := range numeric {
		out[k] = v
	}
	out["_like"] = models.CustomOp(models.Named("VARCHAR"))
	return out
}

// Registry returns the static scalar-type catalogue. Safe to call
// repeatedly; it always returns the same logical contents (a fresh map each
// time, so callers may safely mutate their own copy).
func Registry() map[string]models.ScalarType {
	numericOps := NumericComparators("VARCHAR")
	stringOps := StringComparators(numericOps)
	boolOps := map[string]models.ComparisonOperatorDefinition{"_eq": models.EqualOp()}
	noOps := map[string]models.ComparisonOperatorDefinition{}
	noAggs := map[string]models.AggregateFunctionDefinition{}

	entry := func(rep models.TypeRepresentation, aggs map[string]models.AggregateFunctionDefinition, ops map[string]models.ComparisonOperatorDefinition) models.ScalarType {
		if aggs == nil {
			aggs = noAggs
		}
		return models.ScalarType{Representation: rep, AggregateFunctions: aggs, ComparisonOperators: ops}
	}

	return map[string]models.ScalarType{
		"CHAR":                                entry(models.RepString, nil, stringOps),
		"VARCHAR":                              entry(models.RepString, nil, stringOps),
		"VARCHAR(65536)":                       entry(models.RepString, nil, stringOps),
		"VARCHAR NOT NULL":                     entry(models.RepString, nil, stringOps),
		"JavaType(class java.util.ArrayList)":  entry(models.RepJSON, nil, noOps),
		"JavaType(class java.lang.String)":     entry(models.RepString, nil, stringOps),
		"INTEGER":                              entry(models.RepInt32, NumericAggregates("INTEGER"), numericOps),
		"SMALLINT":                             entry(models.RepInt16, NumericAggregates("INTEGER"), numericOps),
		"TINYINT":                              entry(models.RepInt8, NumericAggregates("INTEGER"), numericOps),
		"BIGINT":                               entry(models.RepString, nil, stringOps),
		"BIGINT NOT NULL":                      entry(models.RepString, nil, stringOps),
		"FLOAT":                                entry(models.RepFloat32, NumericAggregates("DOUBLE"), numericOps),
		"DOUBLE":                               entry(models.RepFloat64, NumericAggregates("DOUBLE"), numericOps),
		"DECIMAL":                              entry(models.RepString, nil, stringOps),
		"BOOLEAN":                              entry(models.RepBoolean, nil, boolOps),
		"VARBINARY":                            entry(models.RepBytes, nil, noOps),
		"BINARY":                               entry(models.RepBytes, nil, noOps),
		"DATE":                                 entry(models.RepDate, nil, stringOps),
		"TIME(0)":                              entry(models.RepString, nil, stringOps),
		"TIMESTAMP(0)":                         entry(models.RepTimestamp, nil, stringOps),
		"TIMESTAMP(3)":                         entry(models.RepTimestamp, nil, stringOps),
		"TIMESTAMP":                            entry(models.RepTimestampTZ, nil, stringOps),
	}
}
