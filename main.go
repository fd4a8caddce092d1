// Package main is the entry point for hmsniff.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/hmsniff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
