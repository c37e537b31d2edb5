package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/braidyn-bc/nwbpack/internal/cli"
)

func main() {
	cmd := cli.NewPackageCommand()
	if err := cmd.Execute(); err != nil {
		// Fatal errors were already formatted by the command; only flag
		// parse errors and other pre-run failures still need printing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
