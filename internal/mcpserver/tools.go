package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roach88/retrolearn/internal/adjust"
	"github.com/roach88/retrolearn/internal/maintenance"
	"github.com/roach88/retrolearn/internal/workflow"
)

// ─── RelevantTool ───────────────────────────────────────────────────────────

// RelevantTool handles the get_relevant_learnings MCP tool.
type RelevantTool struct {
	engine Engine
}

func NewRelevantTool(engine Engine) *RelevantTool {
	return &RelevantTool{engine: engine}
}

// Definition returns the MCP tool definition for get_relevant_learnings.
func (t *RelevantTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Rank the learnings relevant to a planning context. Read-only. " +
				"Returns an empty list (degraded=true) when the learning store is unavailable.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum learnings to return (default: 5)"),
		),
	}, contextOptions()...)
	return mcp.NewTool("get_relevant_learnings", opts...)
}

func (t *RelevantTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pc, err := planningContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.engine.GetRelevantLearnings(ctx, pc, intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

// ─── AdjustTool ─────────────────────────────────────────────────────────────

// AdjustTool handles the adjust_workflow MCP tool.
type AdjustTool struct {
	engine Engine
}

func NewAdjustTool(engine Engine) *AdjustTool {
	return &AdjustTool{engine: engine}
}

// Definition returns the MCP tool definition for adjust_workflow.
func (t *AdjustTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Adjust a planned workflow using relevant learnings. The result is always a valid, acyclic workflow: " +
				"when no learning applies, the unit's adjustment budget is spent, or the adjusted workflow fails " +
				"validation, the original is returned with adjusted=false and a reason.",
		),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow definition as YAML or JSON: {name, steps: [{name, phase, depends_on, params}]}"),
		),
		mcp.WithString("unit_id",
			mcp.Required(),
			mcp.Description("Unit of work id (e.g. the epic) the adjustment budget is tracked against"),
		),
	}, contextOptions()...)
	return mcp.NewTool("adjust_workflow", opts...)
}

// adjustResponse is the adjust_workflow payload.
type adjustResponse struct {
	Adjusted bool            `json:"adjusted"`
	Reason   string          `json:"reason,omitempty"`
	State    adjust.State    `json:"state"`
	Workflow *workflow.Graph `json:"workflow"`
	Rendered string          `json:"rendered"`
	Changes  []adjust.Record `json:"changes,omitempty"`
}

func (t *AdjustTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := req.GetString("workflow", "")
	unitID := req.GetString("unit_id", "")
	if src == "" {
		return mcp.NewToolResultError("'workflow' is required"), nil
	}
	if unitID == "" {
		return mcp.NewToolResultError("'unit_id' is required"), nil
	}

	def, err := workflow.Parse([]byte(src), workflow.FormatYAML, "workflow")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow: %v", err)), nil
	}
	base, err := def.Graph()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow: %v", err)), nil
	}
	pc, err := planningContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.engine.AdjustWorkflow(ctx, base, unitID, pc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(adjustResponse{
		Adjusted: res.Adjusted,
		Reason:   res.Reason,
		State:    res.State,
		Workflow: res.Graph,
		Rendered: workflow.RenderString(res.Graph),
		Changes:  res.Records,
	})
}

// ─── RecordTool ─────────────────────────────────────────────────────────────

// RecordTool handles the record_outcome MCP tool.
type RecordTool struct {
	engine Engine
}

func NewRecordTool(engine Engine) *RecordTool {
	return &RecordTool{engine: engine}
}

// Definition returns the MCP tool definition for record_outcome.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("record_outcome",
		mcp.WithDescription("Record whether applying a learning helped a unit of work. Updates its success rate and confidence."),
		mcp.WithString("learning_id",
			mcp.Required(),
			mcp.Description("Id of the applied learning"),
		),
		mcp.WithString("unit_id",
			mcp.Required(),
			mcp.Description("Unit of work the learning was applied to"),
		),
		mcp.WithString("outcome",
			mcp.Required(),
			mcp.Description("success, failure or partial"),
		),
		mcp.WithString("context",
			mcp.Description("Free-form note on what happened"),
		),
	)
}

func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	learningID := req.GetString("learning_id", "")
	unitID := req.GetString("unit_id", "")
	outcome := req.GetString("outcome", "")
	if learningID == "" {
		return mcp.NewToolResultError("'learning_id' is required"), nil
	}
	if outcome == "" {
		return mcp.NewToolResultError("'outcome' is required"), nil
	}

	l, err := t.engine.RecordOutcome(ctx, learningID, unitID, outcome, req.GetString("context", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record outcome: %v", err)), nil
	}
	return jsonResult(l)
}

// ─── MaintenanceTool ────────────────────────────────────────────────────────

// MaintenanceTool handles the run_maintenance MCP tool.
type MaintenanceTool struct {
	engine Engine
}

func NewMaintenanceTool(engine Engine) *MaintenanceTool {
	return &MaintenanceTool{engine: engine}
}

// Definition returns the MCP tool definition for run_maintenance.
func (t *MaintenanceTool) Definition() mcp.Tool {
	return mcp.NewTool("run_maintenance",
		mcp.WithDescription(
			"Run one maintenance pass: recompute decay, deactivate disproven learnings, "+
				"link superseded learnings and prune old applications. Safe to call repeatedly.",
		),
	)
}

func (t *MaintenanceTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.engine.RunMaintenance(ctx)
	if errors.Is(err, maintenance.ErrRunInProgress) {
		return mcp.NewToolResultText("maintenance already running; try again later"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("maintenance failed: %v", err)), nil
	}
	return jsonResult(report)
}

// ─── HistoryTool ────────────────────────────────────────────────────────────

// HistoryTool handles the get_adjustment_history MCP tool.
type HistoryTool struct {
	engine Engine
}

func NewHistoryTool(engine Engine) *HistoryTool {
	return &HistoryTool{engine: engine}
}

// Definition returns the MCP tool definition for get_adjustment_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_adjustment_history",
		mcp.WithDescription("List the committed workflow adjustments of a unit of work, oldest first."),
		mcp.WithString("unit_id",
			mcp.Required(),
			mcp.Description("Unit of work id"),
		),
	)
}

func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID := req.GetString("unit_id", "")
	if unitID == "" {
		return mcp.NewToolResultError("'unit_id' is required"), nil
	}
	records, err := t.engine.AdjustmentHistory(ctx, unitID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if records == nil {
		records = []adjust.Record{}
	}
	return jsonResult(records)
}
