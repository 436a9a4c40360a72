package main

import (
	"fmt"
	"os"

	"github.com/role-assignment-api/cmd/roleadmin/cmd"
	"github.com/role-assignment-api/internal/engine"
)

// Version is set by build flags.
var Version = "dev"

func main() {
	if err := cmd.NewRootCommand(Version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", engine.Describe(err))
		os.Exit(1)
	}
}
