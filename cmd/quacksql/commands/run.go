package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gandaldf/quacksql"
	"github.com/gandaldf/quacksql/internal/ui"
)

func newRunCommand(a *app) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "run NAME [ARGS...]",
		Short: "Run a loaded query and print its result",
		Long: `Run a loaded query. ARGS bind to positional placeholders (? or $1),
--param name=value binds to $name placeholders. Values are passed as text;
cast in SQL where a type matters (e.g. ?::INT).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			named, err := parseParams(params)
			if err != nil {
				return err
			}

			callArgs := make([]any, 0, len(args))
			for _, s := range args[1:] {
				callArgs = append(callArgs, s)
			}
			if len(named) > 0 {
				callArgs = append(callArgs, named)
			}

			if _, err := a.mgr.ConnectContext(cmd.Context(), a.cfg.Database, a.cfg.ReadOnly); err != nil {
				return err
			}
			defer a.mgr.Close()

			res, err := a.mgr.Invoke(args[0], callArgs...)
			if err != nil {
				return err
			}
			f, err := res.FrameContext(cmd.Context())
			if err != nil {
				return err
			}
			return ui.PrintFrame(cmd.OutOrStdout(), f, a.cfg.Format)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "named parameter as name=value (repeatable)")
	return cmd
}

// parseParams turns name=value pairs into named parameters.
func parseParams(pairs []string) (quacksql.P, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	p := make(quacksql.P, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=value", kv)
		}
		p[k] = v
	}
	return p, nil
}
