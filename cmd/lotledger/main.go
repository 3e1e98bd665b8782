// Command lotledger administers the campus parking occupancy ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/lotledger/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
