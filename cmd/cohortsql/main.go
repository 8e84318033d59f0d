// Package main provides the cohortsql command-line entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/cohortsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
