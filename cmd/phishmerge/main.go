// Package main is the entry point for the phishmerge CLI binary.
package main

import (
	"os"

	cli "phish-merge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
