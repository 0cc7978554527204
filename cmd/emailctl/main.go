/*
Package main provides the CLI entry point for emailctl.
*/
package main

import (
	"os"

	"github.com/devonik/email-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
