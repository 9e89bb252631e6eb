// Command karma runs the inventory ledger and workflow engine.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/albardn2/karma-sub001/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
