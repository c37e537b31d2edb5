package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/braidyn-bc/nwbpack/internal/cli"
)

func main() {
	cmd := cli.NewFindMissingCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
