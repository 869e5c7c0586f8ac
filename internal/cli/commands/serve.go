package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve named queries over HTTP",
		Long: `Start an HTTP server exposing the named queries from leapquery.yaml.

Routes:
  GET /healthz                 liveness check
  GET /queries                 list named queries
  GET /queries/{name}          run a query (?limit= and ?page= override paging)
  GET /queries/{name}/events   stream matching record changes (server-sent events)`,
		Example: `  leapquery serve --addr :9000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := server.New(server.Config{
				Queries:     cmdCtx.Queries,
				Definitions: cmdCtx.Cfg.Queries,
				Execute:     Execute,
				Addr:        addr,
				Logger:      cmdCtx.Logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "Listen address")
	return cmd
}
