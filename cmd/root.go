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

// Package cmd is the CLI (C10): cobra/pflag subcommands wiring Configuration
// I/O (C9), the Source Registry (C8) and the Connector Façade (C7) into
// initialize/update/upgrade/serve, grounded on the teacher's NewCommand/
// Command{*cobra.Command, cfg} shape (cmd/root_test.go) but targeting the
// JSON-configuration-file contract instead of the teacher's YAML tools-file
// one.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hasura/ndc-embedded/internal/config"
	"github.com/hasura/ndc-embedded/internal/engine"
	"github.com/hasura/ndc-embedded/internal/log"
	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/orchestrator"
	"github.com/hasura/ndc-embedded/internal/querysql"
	"github.com/hasura/ndc-embedded/internal/scalars"
	"github.com/hasura/ndc-embedded/internal/server"
	"github.com/hasura/ndc-embedded/internal/sources"
	"github.com/hasura/ndc-embedded/internal/telemetry"
	"github.com/hasura/ndc-embedded/internal/util"

	// Source kind adapters register themselves on import.
	_ "github.com/hasura/ndc-embedded/internal/sources/alloydbpostgres"
	_ "github.com/hasura/ndc-embedded/internal/sources/bigquery"
	_ "github.com/hasura/ndc-embedded/internal/sources/bigtable"
	_ "github.com/hasura/ndc-embedded/internal/sources/cassandra"
	_ "github.com/hasura/ndc-embedded/internal/sources/clickhouse"
	_ "github.com/hasura/ndc-embedded/internal/sources/cloudsqlmysql"
	_ "github.com/hasura/ndc-embedded/internal/sources/cloudsqlpostgres"
	_ "github.com/hasura/ndc-embedded/internal/sources/couchbase"
	_ "github.com/hasura/ndc-embedded/internal/sources/elasticsearch"
	_ "github.com/hasura/ndc-embedded/internal/sources/firebird"
	_ "github.com/hasura/ndc-embedded/internal/sources/firestore"
	_ "github.com/hasura/ndc-embedded/internal/sources/looker"
	_ "github.com/hasura/ndc-embedded/internal/sources/mongodb"
	_ "github.com/hasura/ndc-embedded/internal/sources/mssql"
	_ "github.com/hasura/ndc-embedded/internal/sources/mysql"
	_ "github.com/hasura/ndc-embedded/internal/sources/neo4j"
	_ "github.com/hasura/ndc-embedded/internal/sources/oracle"
	_ "github.com/hasura/ndc-embedded/internal/sources/oraclethin"
	_ "github.com/hasura/ndc-embedded/internal/sources/postgres"
	_ "github.com/hasura/ndc-embedded/internal/sources/redis"
	_ "github.com/hasura/ndc-embedded/internal/sources/singlestore"
	_ "github.com/hasura/ndc-embedded/internal/sources/snowflake"
	_ "github.com/hasura/ndc-embedded/internal/sources/spanner"
	_ "github.com/hasura/ndc-embedded/internal/sources/trino"
	_ "github.com/hasura/ndc-embedded/internal/sources/valkey"
	_ "github.com/hasura/ndc-embedded/internal/sources/yugabytedb"
)

const configFileName = "configuration.json"
const schemaFileName = "schema.json"

// maxUpdateAttempts bounds update's re-read/retry loop (§4.9): the
// configuration file may change underneath a long introspection pass, and
// the command retries up to this many times before failing with
// ConcurrentConfigChange.
const maxUpdateAttempts = 3

// Command wraps the root cobra command together with the flag-bound state
// each subcommand's RunE reads back, mirroring the teacher's Command{cfg}
// pattern so tests can assert on parsed values without re-invoking cobra's
// parser themselves.
type Command struct {
	*cobra.Command

	initCfg initializeFlags
	updCfg  updateFlags
	upgCfg  upgradeFlags
	cfg     server.ServerConfig
}

type initializeFlags struct {
	Dir          string
	WithMetadata bool
}

type updateFlags struct {
	Dir string
}

type upgradeFlags struct {
	DirFrom string
	DirTo   string
}

// NewCommand builds the root command and its four subcommands.
func NewCommand() *Command {
	c := &Command{}
	c.Command = &cobra.Command{
		Use:           "ndc-embedded",
		Short:         "An embedded-engine Native Data Connector",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	c.AddCommand(c.newInitializeCommand())
	c.AddCommand(c.newUpdateCommand())
	c.AddCommand(c.newUpgradeCommand())
	c.AddCommand(c.newServeCommand())

	return c
}

func (c *Command) newInitializeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Write a starter configuration.json and schema.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInitialize(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&c.initCfg.Dir, "dir", ".", "directory to write configuration.json/schema.json into")
	cmd.Flags().BoolVar(&c.initCfg.WithMetadata, "with-metadata", false, "introspect every declared source and populate metadata")
	return cmd
}

func (c *Command) runInitialize(ctx context.Context) error {
	dir := c.initCfg.Dir
	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil {
		return util.DirectoryNotEmpty(dir)
	}

	cfg := &config.Config{Version: config.SupportedVersion}

	if c.initCfg.WithMetadata {
		metadataEntries, err := introspectAll(ctx, cfg)
		if err != nil {
			return err
		}
		cfg.Metadata = metadataEntries
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("initialize: unable to create %s: %w", dir, err)
	}
	if err := config.Write(configPath, cfg); err != nil {
		return err
	}
	return config.WriteSchema(filepath.Join(dir, schemaFileName))
}

func (c *Command) newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-introspect declared sources and refresh configuration.json's metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUpdate(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&c.updCfg.Dir, "dir", ".", "directory holding configuration.json")
	return cmd
}

func (c *Command) runUpdate(ctx context.Context) error {
	configPath := filepath.Join(c.updCfg.Dir, configFileName)

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		before, err := os.ReadFile(configPath)
		if err != nil {
			return util.NewNDCError(util.CategoryConfigParse, fmt.Sprintf("unable to read %s", configPath), err)
		}

		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}

		metadataEntries, err := introspectAll(ctx, cfg)
		if err != nil {
			return err
		}
		cfg.Metadata = metadataEntries

		after, err := os.ReadFile(configPath)
		if err != nil {
			return util.NewNDCError(util.CategoryConfigParse, fmt.Sprintf("unable to read %s", configPath), err)
		}
		if string(before) != string(after) {
			continue
		}

		return config.Write(configPath, cfg)
	}
	return util.ConcurrentConfigChange(maxUpdateAttempts)
}

// introspectAll dials every declared source in turn and merges its tables
// into one metadata map, failing closed on the first source that cannot be
// initialized or introspected.
func introspectAll(ctx context.Context, cfg *config.Config) (map[string]metadata.TableMetadata, error) {
	tables := map[string]metadata.TableMetadata{}
	for name, sourceCfg := range cfg.Sources {
		decoded, err := sources.DecodeConfig(ctx, sourceCfg.Kind, name, sourceCfg.Options)
		if err != nil {
			return nil, util.DecodeError(fmt.Sprintf("source %q", name), err)
		}
		src, err := decoded.Initialize(ctx, nil)
		if err != nil {
			return nil, util.EngineError(fmt.Sprintf("unable to connect to source %q", name), err)
		}
		found, err := src.Introspect(ctx)
		_ = src.Close()
		if err != nil {
			return nil, util.EngineError(fmt.Sprintf("unable to introspect source %q", name), err)
		}
		for table, meta := range found {
			tables[table] = meta
		}
	}
	return tables, nil
}

func (c *Command) newUpgradeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade a configuration directory to the currently supported version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUpgrade(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&c.upgCfg.DirFrom, "dir-from", "", "source configuration directory")
	cmd.Flags().StringVar(&c.upgCfg.DirTo, "dir-to", "", "destination configuration directory")
	_ = cmd.MarkFlagRequired("dir-from")
	_ = cmd.MarkFlagRequired("dir-to")
	return cmd
}

// runUpgrade is a no-op passthrough: SupportedVersion is the only version
// this connector exercises (Open Question 1), so upgrading just copies the
// configuration and schema files across unchanged.
func (c *Command) runUpgrade(ctx context.Context) error {
	if err := os.MkdirAll(c.upgCfg.DirTo, 0o755); err != nil {
		return fmt.Errorf("upgrade: unable to create %s: %w", c.upgCfg.DirTo, err)
	}
	for _, name := range []string{configFileName, schemaFileName} {
		data, err := os.ReadFile(filepath.Join(c.upgCfg.DirFrom, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && name == schemaFileName {
				continue
			}
			return fmt.Errorf("upgrade: unable to read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(c.upgCfg.DirTo, name), data, 0o644); err != nil {
			return fmt.Errorf("upgrade: unable to write %s: %w", name, err)
		}
	}
	return nil
}

func (c *Command) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the connector's HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&c.cfg.Address, "address", "a", "127.0.0.1", "address the server listens on")
	flags.IntVarP(&c.cfg.Port, "port", "p", 5000, "port the server listens on")
	flags.StringVar(&c.cfg.LoggingFormat, "logging-format", "standard", "logging format: standard or JSON")
	flags.StringVar(&c.cfg.LogLevel, "log-level", "info", "minimum severity logged: debug, info, warn or error")
	flags.StringVar(&c.cfg.TelemetryServiceName, "telemetry-service-name", "ndc-embedded", "service name reported on traces/metrics")
	flags.StringVar(&c.cfg.Dir, "dir", ".", "directory holding configuration.json")
	return cmd
}

// buildDeps maps the options read from configuration.json onto the server's
// dependency bundle, so configuration.json's "fixes" and "supportJsonObject"
// settings (§4.3, §4.5) actually reach the query generator and orchestrator
// the running server uses, not just their zero values.
func buildDeps(cfg *config.Config, eng *engine.Handle, logger log.Logger) *server.Deps {
	return &server.Deps{
		Tables:             cfg.Metadata,
		ScalarTypes:        scalars.Registry(),
		Engine:             eng,
		QueryConfig:        querysql.Config{SupportsJSONObject: cfg.SupportJSONObject},
		OrchestratorConfig: orchestrator.Config{Fixes: cfg.Fixes},
		Logger:             logger,
	}
}

func (c *Command) runServe(ctx context.Context) error {
	logger, err := log.NewLogger(c.cfg.LoggingFormat, c.cfg.LogLevel, os.Stdout, os.Stderr)
	if err != nil {
		return fmt.Errorf("serve: unable to configure logging: %w", err)
	}

	configPath := filepath.Join(c.cfg.Dir, configFileName)
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	tp, err := telemetry.New(ctx, telemetry.Config{ServiceName: c.cfg.TelemetryServiceName, Enabled: true})
	if err != nil {
		return fmt.Errorf("serve: unable to configure telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	eng := engine.New(engine.Options{DataSourceName: ":memory:"})
	if err := eng.Init(ctx); err != nil {
		return util.EngineError("unable to initialise engine", err)
	}
	defer eng.Close()

	deps := buildDeps(cfg, eng, logger)

	watcher, err := config.Watch(configPath, func(fresh *config.Config) {
		deps.Tables = fresh.Metadata
		logger.InfoContext(ctx, "configuration reloaded", "path", configPath)
	}, func(watchErr error) {
		logger.WarnContext(ctx, "configuration reload failed", "error", watchErr.Error())
	})
	if err == nil {
		defer watcher.Close()
	} else {
		logger.WarnContext(ctx, "configuration hot-reload disabled", "error", err.Error())
	}

	router := server.NewRouter(deps)
	addr := c.cfg.Address + ":" + strconv.Itoa(c.cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server listening", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return err
	case <-sigCtx.Done():
		logger.InfoContext(ctx, "shutting down", "address", addr)
		return server.Shutdown(context.Background(), httpServer)
	}
}
