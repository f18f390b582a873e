package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hasura/ndc-embedded/internal/metadata"
)

func sampleConfig() *Config {
	return &Config{
		Version:           SupportedVersion,
		Schema:            "schema.json",
		Model:             json.RawMessage(`{"kind":"jdbc"}`),
		ModelFilePath:      "/etc/connector/models/model.json",
		Fixes:             true,
		SupportJSONObject: false,
		Jars:              "/extra/jars",
		Metadata: map[string]metadata.TableMetadata{
			"orders": {
				Name:    "orders",
				Columns: map[string]metadata.ColumnMetadata{"id": {Name: "id", ScalarType: "INTEGER"}},
			},
		},
		Sources: map[string]SourceConfig{
			"main": {Kind: "postgres", Options: map[string]any{"host": "localhost"}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configuration.json")
	want := sampleConfig()

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestReadRejectsMissingVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configuration.json")
	if err := os.WriteFile(path, []byte(`{"fixes": true}`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected an error for a configuration missing version")
	}
}

func TestReadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configuration.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected a ConfigParse error for malformed JSON")
	}
}

func TestWriteSchemaProducesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	if err := WriteSchema(path); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema.json is not valid JSON: %v", err)
	}
}
