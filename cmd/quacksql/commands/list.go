package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gandaldf/quacksql/internal/ui"
)

func newListCommand(a *app) *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the queries loaded from the configured modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			names := a.mgr.Names()
			if !showSQL {
				ui.PrintList(out, names)
				return nil
			}
			for _, name := range names {
				q, _ := a.mgr.SQL(name)
				ui.Success(out, "%s", name)
				fmt.Fprintln(out, q)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "print each query's SQL text")
	return cmd
}
