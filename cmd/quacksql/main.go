// Command quacksql runs named .sql files against an embedded database.
package main

import (
	"context"
	"os"

	"github.com/gandaldf/quacksql/cmd/quacksql/commands"
	"github.com/gandaldf/quacksql/internal/ui"
)

func main() {
	if err := commands.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		ui.Error(os.Stderr, err)
		os.Exit(1)
	}
}
