package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mcpSession = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"cli-test","version":"1.0.0"}}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
`

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	assert.NotNil(t, serveCmd.Flags().Lookup("metrics-addr"))
	noMaint := serveCmd.Flags().Lookup("no-maintenance")
	require.NotNil(t, noMaint)
	assert.Equal(t, "false", noMaint.DefValue)
}

func TestServe_StdioSession(t *testing.T) {
	tests := []struct {
		name          string
		noMaintenance bool
	}{
		{"with_maintenance", false},
		{"without_maintenance", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			out, logs := &bytes.Buffer{}, &bytes.Buffer{}

			opts := &ServeOptions{
				RootOptions:   &RootOptions{Format: "text", Database: env.db, Now: env.clock.Now},
				NoMaintenance: tt.noMaintenance,
				Stdin:         strings.NewReader(mcpSession),
				Stdout:        out,
			}
			cmd := &cobra.Command{}
			cmd.SetErr(logs)
			cmd.SetContext(t.Context())

			// The session ends when stdin is exhausted.
			require.NoError(t, runServe(opts, cmd))

			assert.Contains(t, out.String(), `"id":1`)
			assert.Contains(t, out.String(), "retrolearn")
			for _, tool := range []string{
				"get_relevant_learnings", "adjust_workflow", "record_outcome",
				"run_maintenance", "get_adjustment_history",
			} {
				assert.Contains(t, out.String(), tool)
			}
			assert.Contains(t, logs.String(), "mcp server stopped")
			if !tt.noMaintenance {
				assert.Contains(t, logs.String(), "maintenance scheduler started")
			}
		})
	}
}
