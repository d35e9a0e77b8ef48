// bd is the CLI for beads, a git-native issue tracker.
package main

import (
	"fmt"
	"os"

	"beads/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
