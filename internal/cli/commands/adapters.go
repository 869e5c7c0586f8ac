package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

// adapterInfo is the JSON form of an adapter listing.
type adapterInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Default      bool     `json:"default"`
	Capabilities []string `json:"capabilities"`
	Actions      []string `json:"actions,omitempty"`
}

// NewAdaptersCommand creates the adapters command.
func NewAdaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List configured adapters",
		Long: `Open every configured adapter and list its capabilities and the
actions it declares for validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var infos []adapterInfo
			for _, name := range cmdCtx.Adapters.Names() {
				a, err := cmdCtx.Adapters.Lookup(name)
				if err != nil {
					return err
				}
				typ := "memory"
				if ac, ok := cmdCtx.Cfg.Adapters[name]; ok {
					typ = ac.Type
				}
				info := adapterInfo{
					Name:         name,
					Type:         typ,
					Default:      name == cmdCtx.Cfg.DefaultAdapter,
					Capabilities: capabilities(a),
				}
				if s := a.Schema(); s != nil {
					info.Actions = s.Keys()
				}
				infos = append(infos, info)
			}

			if cmdCtx.Mode == ModeJSON {
				return renderJSON(cmdCtx.Out, infos)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmdCtx.Out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Type", "Default", "Capabilities", "Actions"})
			for _, info := range infos {
				def := ""
				if info.Default {
					def = "yes"
				}
				t.AppendRow(table.Row{info.Name, info.Type, def, strings.Join(info.Capabilities, ", "), len(info.Actions)})
			}
			t.Render()
			return nil
		},
	}
}

// capabilities lists the optional adapter interfaces a implements.
func capabilities(a adapter.Adapter) []string {
	caps := []string{"execute"}
	if _, ok := a.(adapter.Streamer); ok {
		caps = append(caps, "stream")
	}
	if _, ok := a.(adapter.Watcher); ok {
		caps = append(caps, "watch")
	}
	if _, ok := a.(adapter.Describer); ok {
		caps = append(caps, "describe")
	}
	return caps
}
