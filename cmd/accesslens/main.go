// Package main is the entry point for the AccessLens CLI. AccessLens
// enriches cloud resource-access reports with identity context from the
// governance platform and resolves access paths back to the directly
// assigned entitlements that grant them.
package main

import (
	"fmt"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
