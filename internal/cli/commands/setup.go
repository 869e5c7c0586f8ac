package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/query"

	// Adapter implementations register themselves via init()
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapters *adapter.Registry
	Queries  *query.Registry
	Out      io.Writer
	Mode     OutputMode
}

// NewCommandContext opens the configured adapters and registers the
// configured named queries. When history is enabled every execution is
// recorded. The returned cleanup prunes the history and closes everything.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)

	adapters, err := cfg.OpenAdapters(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	var history *state.Store
	if cfg.History.Enabled {
		history, err = cfg.OpenHistory(ctx, logger)
		if err != nil {
			_ = adapters.Close()
			return nil, nil, err
		}
	}

	cleanup := func() {
		if err := adapters.Close(); err != nil {
			logger.Warn("failed to close adapters", "error", err.Error())
		}
		if history == nil {
			return
		}
		if n, err := history.PruneRuns(context.WithoutCancel(ctx), cfg.History.Keep); err != nil {
			logger.Warn("failed to prune run history", "error", err.Error())
		} else if n > 0 {
			logger.Debug("pruned run history", "removed", n)
		}
		if err := history.Close(); err != nil {
			logger.Warn("failed to close run history", "error", err.Error())
		}
	}

	qcfg := query.Config{
		Adapters:       adapters,
		DefaultAdapter: cfg.DefaultAdapter,
		Logger:         logger,
	}
	if history != nil {
		qcfg.Recorder = history
	}
	queries := query.NewRegistry(qcfg)
	if err := RegisterQueries(queries, cfg); err != nil {
		cleanup()
		return nil, nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Adapters: adapters,
		Queries:  queries,
		Out:      cmd.OutOrStdout(),
		Mode:     ResolveMode(cfg.Output, cmd.OutOrStdout()),
	}, cleanup, nil
}

// RegisterQueries stores every configured query in reg under its name.
func RegisterQueries(reg *query.Registry, cfg *config.Config) error {
	for _, name := range cfg.QueryNames() {
		if err := reg.Store(ApplyQueryConfig(reg.Named(name), cfg.Queries[name])); err != nil {
			return err
		}
	}
	return nil
}
