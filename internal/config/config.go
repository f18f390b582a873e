// Package config reads and writes configuration.json/schema.json (C9).
// Grounded on the distilled spec's §6 external-interfaces shape; the
// encode/decode pair is hand-rolled over encoding/json (justified in
// DESIGN.md — no pack library targets bare-struct JSON document codec, as
// opposed to the pack's YAML tool-config libraries), schema emission uses
// invopop/jsonschema, struct validation uses go-playground/validator/v10
// in the same role the teacher uses it for tool/source Config structs, and
// optional hot-reload watching uses fsnotify, mirroring the teacher's
// tools-file watcher.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/util"
)

// SupportedVersion is the only configuration version this implementation
// exercises (Open Question 1, decided in DESIGN.md): upgrade is a no-op
// passthrough for any other value.
const SupportedVersion = "5"

// SourceConfig names one registered C8 source kind and its connection
// parameters, read from configuration.json's "sources" map. Parameters are
// intentionally untyped here; each source.Factory decodes Options itself.
type SourceConfig struct {
	Kind    string         `json:"kind" validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}

// Config is the decoded shape of configuration.json.
type Config struct {
	Version           string                               `json:"version" validate:"required"`
	Schema            string                                `json:"$schema,omitempty"`
	Model             json.RawMessage                        `json:"model,omitempty"`
	ModelFilePath     string                                `json:"modelFilePath,omitempty"`
	Fixes             bool                                   `json:"fixes"`
	SupportJSONObject bool                                   `json:"supportJsonObject"`
	Jars              string                                 `json:"jars,omitempty"`
	Metadata          map[string]metadata.TableMetadata       `json:"metadata,omitempty"`
	Sources           map[string]SourceConfig                `json:"sources,omitempty"`
}

var validate = validator.New()

// Read parses and validates configuration.json at path.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.NewNDCError(util.CategoryConfigParse, fmt.Sprintf("unable to read %s", path), err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, util.ConfigParse(path, lineOf(data, err), 0, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, util.ConfigParse(path, 0, 0, err)
	}
	return &cfg, nil
}

// Write serialises cfg as compact JSON to path. Compact rather than indented
// so that an embedded "model" raw message round-trips byte-for-byte: Indent
// would reformat whitespace inside it, and a later Read would then capture
// a RawMessage that differs from what Write was given even though the
// decoded document is semantically identical. parse(Write(path, c)) must
// reproduce c exactly (the round-trip invariant of §6).
func Write(path string, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return util.ConfigWrite(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return util.ConfigWrite(path, err)
	}
	return nil
}

// WriteSchema emits the JSON Schema for Config to path, for configuration.json's
// sibling schema.json and its "$schema" reference.
func WriteSchema(path string) error {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&Config{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return util.ConfigWrite(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return util.ConfigWrite(path, err)
	}
	return nil
}

// Watcher observes path for writes and invokes onChange with the freshly
// parsed configuration. Used by the serve command's optional hot-reload.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// Watch starts observing path; call Close when done. Parse errors during a
// reload are swallowed by onErr rather than tearing down the watch loop.
func Watch(path string, onChange func(*Config), onErr func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: unable to start watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: unable to watch %s: %w", path, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Read(path)
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				onChange(cfg)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()
	return &Watcher{fsw: fsw}, nil
}

func (w *Watcher) Close() error { return w.fsw.Close() }

// lineOf estimates the 1-based line number a json.SyntaxError's byte offset
// falls on, for ConfigParse's (line, column) detail.
func lineOf(data []byte, err error) int {
	se, ok := err.(*json.SyntaxError)
	if !ok {
		return 0
	}
	line := 1
	for i := int64(0); i < se.Offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
		}
	}
	return line
}
