// Package mcpserver exposes the learning service as MCP tools over stdio.
//
// Each tool is a struct holding its dependency, with Definition returning
// the mcp.Tool schema and Handle processing a call. Tool-level failures are
// returned as error results, not Go errors, so the client sees the message.
package mcpserver

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/roach88/retrolearn/internal/adjust"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/maintenance"
	"github.com/roach88/retrolearn/internal/service"
	"github.com/roach88/retrolearn/internal/workflow"
)

// Engine is the subset of service.Service the tools call.
type Engine interface {
	GetRelevantLearnings(ctx context.Context, pc learning.PlanningContext, limit int) (service.Relevant, error)
	AdjustWorkflow(ctx context.Context, base *workflow.Graph, unitID string, pc learning.PlanningContext) (adjust.Result, error)
	RecordOutcome(ctx context.Context, learningID, unitID, outcome, note string) (learning.Learning, error)
	RunMaintenance(ctx context.Context) (maintenance.Report, error)
	AdjustmentHistory(ctx context.Context, unitID string) ([]adjust.Record, error)
}

var _ Engine = (*service.Service)(nil)

// New creates the MCP server with every tool registered.
func New(engine Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"retrolearn",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	relevant := NewRelevantTool(engine)
	s.AddTool(relevant.Definition(), relevant.Handle)

	adjustTool := NewAdjustTool(engine)
	s.AddTool(adjustTool.Definition(), adjustTool.Handle)

	record := NewRecordTool(engine)
	s.AddTool(record.Definition(), record.Handle)

	maint := NewMaintenanceTool(engine)
	s.AddTool(maint.Definition(), maint.Handle)

	history := NewHistoryTool(engine)
	s.AddTool(history.Definition(), history.Handle)

	return s
}

// Version is reported to MCP clients during initialization.
var Version = "0.1.0"

// Serve runs s over the stdio transport on in/out until ctx is cancelled
// or the client closes in. Diagnostics must go to stderr, never out.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

const instructions = `retrolearn adjusts planned workflows using learnings from past retrospectives.

Call get_relevant_learnings while planning to see which learnings apply.
Call adjust_workflow with the planned workflow to get a validated, adjusted version; the original is returned unchanged when nothing applies, the per-unit budget is spent, or the adjustment would be invalid.
Call record_outcome after a unit of work finishes to report whether each applied learning helped.`
