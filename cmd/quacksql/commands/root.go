// Package commands implements the quacksql CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gandaldf/quacksql"
	"github.com/gandaldf/quacksql/internal/config"
	"github.com/gandaldf/quacksql/internal/debug"
)

// Version information (set at build time).
var Version = "dev"

// app carries state shared by subcommands for one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	mgr     *quacksql.Manager
}

// NewRootCommand builds the quacksql command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "quacksql",
		Short: "Run named SQL files against an embedded DuckDB database",
		Long: `quacksql loads directories of .sql files and runs them by name.
Each file becomes a query called after its name without the extension.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.mgr == nil {
				return nil
			}
			return a.mgr.Close()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default: .quacksql.yaml in ., $HOME or $HOME/.config/quacksql)")
	f.String("db", ":memory:", "database path, or :memory: for an in-memory database")
	f.Bool("read-only", false, "open the database read-only")
	f.String("driver", quacksql.DriverDuckDB, "engine driver (duckdb or sqlite3)")
	f.StringSlice("module", nil, "directory of .sql files to load (repeatable)")
	f.String("format", "table", "output format: table, json or text")
	f.Bool("debug", false, "enable debug logging on stderr")

	cmd.AddCommand(newListCommand(a))
	cmd.AddCommand(newRunCommand(a))
	return cmd
}

// setup resolves configuration and loads every configured module.
func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	for key, flag := range map[string]string{
		"database":  "db",
		"read_only": "read-only",
		"driver":    "driver",
		"modules":   "module",
		"format":    "format",
		"debug":     "debug",
	} {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			return err
		}
	}

	cfg, err := config.Load(v, a.cfgFile != "")
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.mgr = quacksql.New(
		quacksql.WithDriver(cfg.Driver),
		quacksql.WithLogger(debug.New(cmd.ErrOrStderr(), cfg.Debug)),
	)
	for _, dir := range cfg.Modules {
		if _, err := a.mgr.Module(dir); err != nil {
			return fmt.Errorf("loading module %s: %w", dir, err)
		}
	}
	return nil
}
