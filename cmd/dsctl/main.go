// Package main provides dsctl, developer tooling for the graph datasource:
// query fingerprints and pagination cursors.
package main

import (
	"os"

	"github.com/goliatone/go-graph-datasource/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args, os.Stdout, os.Stderr))
}
