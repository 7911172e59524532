// Package main provides the entry point for the relatedness CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/relatedness-core/cmd/relatedness/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
