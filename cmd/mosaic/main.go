// Package main is the entry point for the mosaic application.
package main

import (
	"os"

	"mosaic/cmd/mosaic/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
