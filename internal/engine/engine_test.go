package engine

import "testing"

func TestDecodeValueLeavesScalarStringsAlone(t *testing.T) {
	tcs := []struct {
		desc string
		in   any
		want any
	}{
		{desc: "decimal-as-string stays a string", in: "10.00", want: "10.00"},
		{desc: "bigint-as-string stays a string", in: "123", want: "123"},
		{desc: "bool-looking string stays a string", in: "true", want: "true"},
		{desc: "array-looking string stays a string", in: "[1,2]", want: "[1,2]"},
		{desc: "ordinary varchar stays a string", in: "hello", want: "hello"},
		{desc: "nil stays nil", in: nil, want: nil},
		{desc: "bytes become a string", in: []byte("abc"), want: "abc"},
		{desc: "non-string values pass through", in: int64(42), want: int64(42)},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			got := decodeValue(tc.in)
			if got != tc.want {
				t.Fatalf("decodeValue(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeJSONObjectRowFlattensTheObjectColumn(t *testing.T) {
	cols := []string{"JSON_OBJECT('id', \"t\".\"id\", 'name', \"t\".\"name\")"}
	raw := []any{[]byte(`{"id":1,"name":"alice"}`)}

	row, err := decodeJSONObjectRow(cols, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row["id"] != float64(1) {
		t.Errorf("row[id] = %#v, want 1", row["id"])
	}
	if row["name"] != "alice" {
		t.Errorf("row[name] = %#v, want alice", row["name"])
	}
	if _, ok := row[cols[0]]; ok {
		t.Errorf("expected the driver's expression column name not to survive flattening, got %+v", row)
	}
}

func TestDecodeJSONObjectRowKeepsNonObjectColumnsAsScalars(t *testing.T) {
	cols := []string{"JSON_OBJECT('id', \"t\".\"id\")", "__var_set_index"}
	raw := []any{[]byte(`{"id":1}`), int64(2)}

	row, err := decodeJSONObjectRow(cols, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row["id"] != float64(1) {
		t.Errorf("row[id] = %#v, want 1", row["id"])
	}
	if row["__var_set_index"] != int64(2) {
		t.Errorf("row[__var_set_index] = %#v, want 2", row["__var_set_index"])
	}
}

func TestDecodeJSONObjectRowPreservesDecimalStringsInsideTheObject(t *testing.T) {
	cols := []string{"JSON_OBJECT('price', \"t\".\"price\")"}
	raw := []any{[]byte(`{"price":"10.00"}`)}

	row, err := decodeJSONObjectRow(cols, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row["price"] != "10.00" {
		t.Errorf("row[price] = %#v, want the string \"10.00\" (DECIMAL-as-string)", row["price"])
	}
}
