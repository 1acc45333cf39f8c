// Command eme runs ground-truth causal verification experiments.
package main

import (
	"fmt"
	"os"

	"github.com/Architect8989/EME/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
