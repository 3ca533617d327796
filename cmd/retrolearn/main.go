// retrolearn: workflows that learn from retrospectives.
//
// Usage:
//
//	retrolearn learning import learnings.yaml
//	retrolearn adjust sprint.yaml --unit epic-3 --tags api
//	retrolearn record L-001 success --unit epic-3
//	retrolearn serve    # MCP server (stdio transport)
package main

import (
	"fmt"
	"os"

	"github.com/roach88/retrolearn/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
