package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/pkg/query"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// explainNode is the JSON form of a topology node.
type explainNode struct {
	Key         string   `json:"key"`
	Adapter     string   `json:"adapter"`
	Resource    string   `json:"resource"`
	Action      string   `json:"action"`
	Terminal    bool     `json:"terminal"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	var flags queryFlags
	var named string

	cmd := &cobra.Command{
		Use:   "explain [resource]",
		Short: "Show the execution plan of a query",
		Long: `Compile a query into its execution topology without running it.

Each node is one adapter call. Nodes run in the order shown; values fetched
by earlier nodes replace the cross-resource references of later ones.`,
		Example: `  # Explain an ad hoc cross-adapter query
  leapquery explain twitter.user --select facebook.user -w email=@facebook.user.email

  # Explain a named query
  leapquery explain --query popular`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if named == "" && len(args) == 0 {
				return fmt.Errorf("a resource or --query is required")
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var q *query.Query
			if named != "" {
				if q, err = cmdCtx.Queries.Lookup(named); err != nil {
					return err
				}
			} else {
				qc, err := flags.queryConfig(args[0])
				if err != nil {
					return err
				}
				q = ApplyQueryConfig(cmdCtx.Queries.New(), qc)
			}

			topo, err := q.Compile()
			if err != nil {
				return err
			}
			return renderTopology(cmdCtx, topo)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&named, "query", "", "Explain a named query from the configuration")
	_ = cmd.RegisterFlagCompletionFunc("query", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return namedQueries(cmd), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func renderTopology(cmdCtx *CommandContext, topo *topology.Topology) error {
	nodes := make([]explainNode, len(topo.Nodes))
	for i, n := range topo.Nodes {
		en := explainNode{
			Key:       n.Key,
			Adapter:   n.Resource.Adapter,
			Resource:  n.Resource.Resource,
			Action:    n.Action.String(),
			Terminal:  n.Terminal,
			DependsOn: n.DependsOn,
		}
		for _, c := range n.Constraints {
			en.Constraints = append(en.Constraints, c.String())
		}
		nodes[i] = en
	}

	if cmdCtx.Mode == ModeJSON {
		return renderJSON(cmdCtx.Out, nodes)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmdCtx.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Node", "Adapter", "Depends On", "Constraints"})
	for i, n := range nodes {
		key := n.Key
		if n.Terminal {
			key += " *"
		}
		t.AppendRow(table.Row{i + 1, key, n.Adapter, strings.Join(n.DependsOn, "\n"), strings.Join(n.Constraints, "\n")})
	}
	t.Render()
	return nil
}
