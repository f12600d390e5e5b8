// Dendrite - Relationship graphs for every commit of a Python repository.
//
// Dendrite parses each snapshot of a repository's history into a
// structural graph of folders, files, classes, functions, and variables,
// enabling cross-commit structure analysis and search.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/dendrite-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
