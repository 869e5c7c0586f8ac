package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/internal/engine"
	"github.com/leapstack-labs/leapquery/internal/state"
)

// historyEntry is the printable form of a recorded run.
type historyEntry struct {
	ID         string        `json:"id"`
	Query      string        `json:"query,omitempty"`
	Action     string        `json:"action"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Count      int           `json:"count"`
	Error      string        `json:"error,omitempty"`
	Nodes      []historyNode `json:"nodes,omitempty"`
}

type historyNode struct {
	Key        string `json:"key"`
	Adapter    string `json:"adapter"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		name  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded query runs",
		Long: `Show runs recorded in the run history database.

Recording is enabled with history.enabled in leapquery.yaml. Without
arguments the most recent runs are listed; with a run id the run and
each of its steps are shown.`,
		Example: `  # Last 10 runs of a named query
  leapquery history --query popular --limit 10

  # Steps of one run
  leapquery history 6f1c2b9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			logger := config.GetLogger(ctx)

			store, err := cfg.OpenHistory(ctx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			mode := ResolveMode(cfg.Output, out)

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				entry := toHistoryEntry(run)
				if mode == ModeJSON {
					return renderJSON(out, entry)
				}
				return renderRunDetail(out, entry)
			}

			runs, err := store.ListRuns(ctx, state.ListOptions{Label: name, Limit: limit})
			if err != nil {
				return err
			}
			entries := make([]historyEntry, len(runs))
			for i, run := range runs {
				entries[i] = toHistoryEntry(run)
			}
			if mode == ModeJSON {
				return renderJSON(out, entries)
			}
			return renderRunList(out, entries)
		},
	}

	cmd.Flags().StringVar(&name, "query", "", "Only runs of this named query")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	_ = cmd.RegisterFlagCompletionFunc("query", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return namedQueries(cmd), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func toHistoryEntry(run *engine.Run) historyEntry {
	e := historyEntry{
		ID:         run.ID,
		Query:      run.Label,
		Action:     run.Action,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt.UTC(),
		DurationMS: run.Duration().Milliseconds(),
		Error:      run.Error,
	}
	if run.Result != nil {
		e.Count = run.Result.Count
	}
	for _, nr := range run.Nodes {
		e.Nodes = append(e.Nodes, historyNode{
			Key:        nr.Key,
			Adapter:    nr.Adapter,
			Status:     string(nr.Status),
			Count:      nr.Count,
			DurationMS: nr.Duration.Milliseconds(),
			Error:      nr.Error,
		})
	}
	return e
}

func renderRunList(w io.Writer, entries []historyEntry) error {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Query", "Action", "Status", "Started", "Duration", "Count"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID, e.Query, e.Action, e.Status,
			e.StartedAt.Format(time.DateTime),
			fmt.Sprintf("%dms", e.DurationMS),
			e.Count,
		})
	}
	t.Render()
	return nil
}

func renderRunDetail(w io.Writer, e historyEntry) error {
	_, _ = fmt.Fprintf(w, "Run:      %s\n", e.ID)
	if e.Query != "" {
		_, _ = fmt.Fprintf(w, "Query:    %s\n", e.Query)
	}
	_, _ = fmt.Fprintf(w, "Status:   %s\n", e.Status)
	_, _ = fmt.Fprintf(w, "Started:  %s\n", e.StartedAt.Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "Duration: %dms\n", e.DurationMS)
	if e.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:    %s\n", e.Error)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Node", "Adapter", "Status", "Count", "Duration"})
	for i, n := range e.Nodes {
		t.AppendRow(table.Row{i + 1, n.Key, n.Adapter, n.Status, n.Count, fmt.Sprintf("%dms", n.DurationMS)})
	}
	t.Render()
	return nil
}
