// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/hasura/ndc-embedded/internal/config"
	"github.com/hasura/ndc-embedded/internal/engine"
	"github.com/hasura/ndc-embedded/internal/log"
	"github.com/hasura/ndc-embedded/internal/orchestrator"
	"github.com/hasura/ndc-embedded/internal/querysql"
	"github.com/hasura/ndc-embedded/internal/server"
	"github.com/hasura/ndc-embedded/internal/util"
)

func withDefaults(c server.ServerConfig) server.ServerConfig {
	if c.Address == "" {
		c.Address = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.LoggingFormat == "" {
		c.LoggingFormat = "standard"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TelemetryServiceName == "" {
		c.TelemetryServiceName = "ndc-embedded"
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	return c
}

// invokeCommand runs args against a fresh root command with RunE replaced
// by a no-op for every reachable subcommand, mirroring the teacher's
// invokeCommand helper: it lets flag-parsing be exercised without actually
// dialing a source or starting a server.
func invokeCommand(args []string) (*Command, string, error) {
	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true

	buf := new(bytes.Buffer)
	c.SetOut(buf)
	c.SetErr(buf)
	c.SetArgs(args)

	for _, sub := range c.Commands() {
		sub.RunE = func(*cobra.Command, []string) error { return nil }
	}

	err := c.Execute()
	return c, buf.String(), err
}

func TestServeFlags(t *testing.T) {
	tcs := []struct {
		desc string
		args []string
		want server.ServerConfig
	}{
		{
			desc: "default values",
			args: []string{"serve"},
			want: withDefaults(server.ServerConfig{}),
		},
		{
			desc: "address short",
			args: []string{"serve", "-a", "127.0.1.1"},
			want: withDefaults(server.ServerConfig{Address: "127.0.1.1"}),
		},
		{
			desc: "address long",
			args: []string{"serve", "--address", "0.0.0.0"},
			want: withDefaults(server.ServerConfig{Address: "0.0.0.0"}),
		},
		{
			desc: "port short",
			args: []string{"serve", "-p", "5052"},
			want: withDefaults(server.ServerConfig{Port: 5052}),
		},
		{
			desc: "port long",
			args: []string{"serve", "--port", "5050"},
			want: withDefaults(server.ServerConfig{Port: 5050}),
		},
		{
			desc: "logging format",
			args: []string{"serve", "--logging-format", "JSON"},
			want: withDefaults(server.ServerConfig{LoggingFormat: "JSON"}),
		},
		{
			desc: "log level",
			args: []string{"serve", "--log-level", "WARN"},
			want: withDefaults(server.ServerConfig{LogLevel: "WARN"}),
		},
		{
			desc: "telemetry service name",
			args: []string{"serve", "--telemetry-service-name", "custom"},
			want: withDefaults(server.ServerConfig{TelemetryServiceName: "custom"}),
		},
		{
			desc: "dir",
			args: []string{"serve", "--dir", "/tmp/cfg"},
			want: withDefaults(server.ServerConfig{Dir: "/tmp/cfg"}),
		},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			c, _, err := invokeCommand(tc.args)
			if err != nil {
				t.Fatalf("unexpected error invoking command: %s", err)
			}
			if c.cfg != tc.want {
				t.Fatalf("got %+v, want %+v", c.cfg, tc.want)
			}
		})
	}
}

func TestInitializeWritesConfigurationAndSchema(t *testing.T) {
	dir := t.TempDir()
	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetArgs([]string{"initialize", "--dir", dir})

	if err := c.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("initialize failed: %s", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		t.Fatalf("configuration.json not written: %s", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("configuration.json is not valid JSON: %s", err)
	}
	if cfg.Version != config.SupportedVersion {
		t.Errorf("got version %q, want %q", cfg.Version, config.SupportedVersion)
	}

	if _, err := os.Stat(filepath.Join(dir, schemaFileName)); err != nil {
		t.Fatalf("schema.json not written: %s", err)
	}
}

func TestInitializeFailsWhenConfigurationAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(`{"version":"5"}`), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetArgs([]string{"initialize", "--dir", dir})

	err := c.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	ndcErr, ok := err.(*util.NDCError)
	if !ok {
		t.Fatalf("got error of type %T, want *util.NDCError", err)
	}
	if ndcErr.NDCCategory() != util.CategoryDirectoryNotEmpty {
		t.Errorf("got category %q, want %q", ndcErr.NDCCategory(), util.CategoryDirectoryNotEmpty)
	}
}

func TestUpgradeCopiesConfigurationAndSchema(t *testing.T) {
	from := t.TempDir()
	to := t.TempDir()
	wantCfg := []byte(`{"version":"5","sources":{}}`)
	wantSchema := []byte(`{"type":"object"}`)
	if err := os.WriteFile(filepath.Join(from, configFileName), wantCfg, 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := os.WriteFile(filepath.Join(from, schemaFileName), wantSchema, 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetArgs([]string{"upgrade", "--dir-from", from, "--dir-to", to})

	if err := c.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("upgrade failed: %s", err)
	}

	gotCfg, err := os.ReadFile(filepath.Join(to, configFileName))
	if err != nil {
		t.Fatalf("configuration.json not copied: %s", err)
	}
	if !bytes.Equal(gotCfg, wantCfg) {
		t.Errorf("got %s, want %s", gotCfg, wantCfg)
	}

	gotSchema, err := os.ReadFile(filepath.Join(to, schemaFileName))
	if err != nil {
		t.Fatalf("schema.json not copied: %s", err)
	}
	if !bytes.Equal(gotSchema, wantSchema) {
		t.Errorf("got %s, want %s", gotSchema, wantSchema)
	}
}

func TestUpgradeRequiresBothDirFlags(t *testing.T) {
	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetArgs([]string{"upgrade"})

	if err := c.Execute(); err == nil {
		t.Fatal("expected an error when --dir-from/--dir-to are omitted")
	}
}

func TestUpdateFailsOnMissingConfiguration(t *testing.T) {
	dir := t.TempDir()
	c := NewCommand()
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.SetArgs([]string{"update", "--dir", dir})

	if err := c.ExecuteContext(context.Background()); err == nil {
		t.Fatal("expected an error when configuration.json is absent")
	}
}

// buildDeps must wire configuration.json's "fixes"/"supportJsonObject"
// options into the query generator and orchestrator it hands the server,
// not silently drop them to their zero values.
func TestBuildDepsWiresFixesAndSupportJSONObject(t *testing.T) {
	logger, err := log.NewLogger("standard", "info", io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error building logger: %v", err)
	}
	eng := engine.New(engine.Options{DataSourceName: ":memory:"})

	cfg := &config.Config{Fixes: true, SupportJSONObject: true}
	deps := buildDeps(cfg, eng, logger)

	if deps.OrchestratorConfig != (orchestrator.Config{Fixes: true}) {
		t.Errorf("OrchestratorConfig = %+v, want Fixes: true", deps.OrchestratorConfig)
	}
	if deps.QueryConfig != (querysql.Config{SupportsJSONObject: true}) {
		t.Errorf("QueryConfig = %+v, want SupportsJSONObject: true", deps.QueryConfig)
	}

	cfg2 := &config.Config{Fixes: false, SupportJSONObject: false}
	deps2 := buildDeps(cfg2, eng, logger)
	if deps2.OrchestratorConfig != (orchestrator.Config{}) {
		t.Errorf("OrchestratorConfig = %+v, want zero value", deps2.OrchestratorConfig)
	}
	if deps2.QueryConfig != (querysql.Config{}) {
		t.Errorf("QueryConfig = %+v, want zero value", deps2.QueryConfig)
	}
}
