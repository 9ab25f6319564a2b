package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newCmdAgents(f *Factory, streams IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:     "agents",
		Aliases: []string{"definitions"},
		Short:   "List the agent definitions sub-agents can be spawned from",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := f.Client().ListDefinitions(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable("NAME", "MODEL", "LIFECYCLE", "TOOLS")
			for _, d := range defs {
				t.AddRow(d.Name, orDash(d.Model), orDash(string(d.Lifecycle)), orDash(strings.Join(d.Tools, ",")))
			}
			printTable(streams.Out, t, "No agent definitions.")
			return nil
		},
	}
}
