package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// queryFlags holds the ad hoc query flags shared by find and explain.
type queryFlags struct {
	use     string
	selects []string
	where   []string
	sort    []string
	limit   int
	page    int
	offset  int
	returns string
	action  string
}

func (f *queryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.use, "use", "", "Default adapter for unqualified paths")
	cmd.Flags().StringSliceVar(&f.selects, "select", nil, "Additional resources to select")
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "Filter as attr:op:value or attr=value (repeatable)")
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "Sort attributes, prefix with - for descending")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum number of records")
	cmd.Flags().IntVar(&f.page, "page", 0, "Page number (1-based, requires --limit)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Records to skip")
	cmd.Flags().StringVar(&f.returns, "returns", "", "Resource whose records are returned")
	cmd.Flags().StringVar(&f.action, "action", config.DefaultAction, "Terminal action (find|count|exists)")

	_ = cmd.RegisterFlagCompletionFunc("action", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"find", "count", "exists"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// queryConfig converts the flags into a query definition starting at resource.
func (f *queryFlags) queryConfig(resource string) (*config.QueryConfig, error) {
	qc := &config.QueryConfig{
		Use:     f.use,
		Start:   resource,
		Select:  f.selects,
		Sort:    f.sort,
		Limit:   f.limit,
		Page:    f.page,
		Offset:  f.offset,
		Returns: f.returns,
		Action:  f.action,
	}
	for _, expr := range f.where {
		filter, err := ParseFilter(expr)
		if err != nil {
			return nil, err
		}
		qc.Where = append(qc.Where, filter)
	}
	return qc, nil
}

// NewFindCommand creates the find command.
func NewFindCommand() *cobra.Command {
	var flags queryFlags
	var stream bool

	cmd := &cobra.Command{
		Use:   "find <resource>",
		Short: "Query a resource across adapters",
		Long: `Build and run an ad hoc query starting at a resource.

Paths take the form adapter.resource.attribute; the adapter segment may be
omitted for the default adapter, and the resource segment for the started
resource.`,
		Example: `  # Users with at least 10 likes, most liked first
  leapquery find users -w likeCount:gte:10 --sort -likeCount

  # Join twitter users to facebook users with the same email
  leapquery find twitter.user --select facebook.user \
    -w email=@facebook.user.email -w facebook.user.likeCount:gte:10

  # Count matching records
  leapquery find users -w active=true --action count

  # Stream newline-delimited JSON
  leapquery find users --stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, err := flags.queryConfig(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			q := ApplyQueryConfig(cmdCtx.Queries.New(), qc)
			if stream {
				return streamQuery(cmd, cmdCtx, q)
			}

			records, err := Execute(cmd.Context(), q, qc.Action)
			if err != nil {
				return err
			}
			return renderRecords(cmdCtx.Out, cmdCtx.Mode, records)
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "Emit records as newline-delimited JSON while they arrive")
	return cmd
}

func streamQuery(cmd *cobra.Command, cmdCtx *CommandContext, q *query.Query) error {
	n := 0
	err := q.Pipe(cmd.Context(), func(rec criteria.Record) error {
		n++
		return renderJSONLine(cmdCtx.Out, rec)
	})
	if err != nil {
		return err
	}
	cmdCtx.Logger.Debug("stream closed", "records", n)
	return nil
}
