// Package main is the coachd entry point.
package main

import (
	"fmt"
	"os"

	"github.com/okian/coachd/cmd/coachd/commands"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
