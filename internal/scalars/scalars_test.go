package scalars

import (
	"testing"

	"github.com/hasura/ndc-embedded/internal/models"
)

func TestRegistryPreservesBigintAndDecimalAsString(t *testing.T) {
	reg := Registry()
	for _, name := range []string{"BIGINT", "BIGINT NOT NULL", "DECIMAL"} {
		st, ok := reg[name]
		if !ok {
			t.Fatalf("expected %q in registry", name)
		}
		if st.Representation != models.RepString {
			t.Fatalf("expected %q to be represented as String, got %q", name, st.Representation)
		}
	}
}

func TestRegistryIntegerRepresentationsAndAggregates(t *testing.T) {
	reg := Registry()
	cases := map[string]models.TypeRepresentation{
		"INTEGER":  models.RepInt32,
		"SMALLINT": models.RepInt16,
		"TINYINT":  models.RepInt8,
		"FLOAT":    models.RepFloat32,
		"DOUBLE":   models.RepFloat64,
	}
	for name, rep := range cases {
		st, ok := reg[name]
		if !ok {
			t.Fatalf("expected %q in registry", name)
		}
		if st.Representation != rep {
			t.Fatalf("%q: expected representation %q, got %q", name, rep, st.Representation)
		}
		if len(st.AggregateFunctions) != 4 {
			t.Fatalf("%q: expected 4 numeric aggregates, got %d", name, len(st.AggregateFunctions))
		}
		for _, fn := range []string{"sum", "max", "avg", "min"} {
			if _, ok := st.AggregateFunctions[fn]; !ok {
				t.Fatalf("%q: expected aggregate %q", name, fn)
			}
		}
	}
}

func TestRegistryStringComparatorsIncludeLike(t *testing.T) {
	reg := Registry()
	st, ok := reg["VARCHAR"]
	if !ok {
		t.Fatalf("expected VARCHAR in registry")
	}
	if _, ok := st.ComparisonOperators["_like"]; !ok {
		t.Fatalf("expected _like comparator on VARCHAR")
	}
	if _, ok := st.ComparisonOperators["_eq"]; !ok {
		t.Fatalf("expected _eq comparator on VARCHAR")
	}
}

func TestRegistryBooleanOnlySupportsEqual(t *testing.T) {
	reg := Registry()
	st, ok := reg["BOOLEAN"]
	if !ok {
		t.Fatalf("expected BOOLEAN in registry")
	}
	if len(st.ComparisonOperators) != 1 {
		t.Fatalf("expected exactly 1 comparison operator for BOOLEAN, got %d", len(st.ComparisonOperators))
	}
	if _, ok := st.ComparisonOperators["_eq"]; !ok {
		t.Fatalf("expected _eq comparator on BOOLEAN")
	}
}

func TestRegistryIsFreshEachCall(t *testing.T) {
	a := Registry()
	b := Registry()
	a["INTEGER"] = models.ScalarType{}
	if b["INTEGER"].Representation != models.RepInt32 {
		t.Fatalf("mutating one registry copy should not affect another")
	}
}
