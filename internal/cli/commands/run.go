package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// namedResult is the outcome of one named query.
type namedResult struct {
	Name     string            `json:"name"`
	Action   string            `json:"action"`
	Records  []criteria.Record `json:"records"`
	Duration time.Duration     `json:"-"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Run named queries from the configuration",
		Long: `Run the named queries declared under "queries" in leapquery.yaml.

Without arguments every declared query runs. Queries run concurrently,
bounded by --concurrency; results are printed in argument order.`,
		Example: `  # Run every named query
  leapquery run

  # Run two queries as JSON
  leapquery run popular inactive -o json`,
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return namedQueries(cmd), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			names := args
			if len(names) == 0 {
				names = cmdCtx.Cfg.QueryNames()
			}
			if len(names) == 0 {
				return fmt.Errorf("no queries declared\nHint: add a queries section to leapquery.yaml")
			}

			results, err := runNamed(cmd, cmdCtx, names)
			if err != nil {
				return err
			}
			return renderNamed(cmdCtx, results)
		},
	}
	return cmd
}

func runNamed(cmd *cobra.Command, cmdCtx *CommandContext, names []string) ([]namedResult, error) {
	for _, name := range names {
		if _, ok := cmdCtx.Cfg.Queries[name]; !ok {
			return nil, fmt.Errorf("unknown query %q", name)
		}
	}
	results := make([]namedResult, len(names))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cmdCtx.Cfg.Concurrency)
	for i, name := range names {
		qc := cmdCtx.Cfg.Queries[name]
		g.Go(func() error {
			q, err := cmdCtx.Queries.Lookup(name)
			if err != nil {
				return err
			}
			start := time.Now()
			records, err := Execute(ctx, q, qc.Action)
			if err != nil {
				return fmt.Errorf("query %s: %w", name, err)
			}
			results[i] = namedResult{Name: name, Action: qc.Action, Records: records, Duration: time.Since(start)}
			cmdCtx.Logger.Debug("query completed",
				"query", name,
				"records", len(records),
				"duration", results[i].Duration.String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderNamed(cmdCtx *CommandContext, results []namedResult) error {
	if cmdCtx.Mode == ModeJSON {
		for i := range results {
			if results[i].Records == nil {
				results[i].Records = []criteria.Record{}
			}
		}
		return renderJSON(cmdCtx.Out, results)
	}
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(cmdCtx.Out)
		}
		_, _ = fmt.Fprintf(cmdCtx.Out, "%s (%s)\n", r.Name, r.Action)
		if err := renderTable(cmdCtx.Out, r.Records); err != nil {
			return err
		}
	}
	return nil
}

// namedQueries loads the configuration for shell completion.
func namedQueries(cmd *cobra.Command) []string {
	cfgFile, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgFile, nil)
	if err != nil {
		return nil
	}
	return cfg.QueryNames()
}
