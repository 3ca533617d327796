package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roach88/retrolearn/internal/learning"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// planningContext reads the shared planning context arguments.
func planningContext(req mcp.CallToolRequest) (learning.PlanningContext, error) {
	pc := learning.PlanningContext{
		ScaleLevel:  learning.ScaleLevel(intArg(req, "scale_level", int(learning.ScaleAny))),
		ProjectType: req.GetString("project_type", ""),
		Tags:        learning.ParseTags(req.GetString("tags", "")),
		Phase:       req.GetString("phase", ""),
	}
	for _, name := range learning.ParseTags(req.GetString("categories", "")) {
		c, err := learning.ParseCategory(name)
		if err != nil {
			return learning.PlanningContext{}, err
		}
		pc.Categories = append(pc.Categories, c)
	}
	if !pc.ScaleLevel.Valid() {
		return learning.PlanningContext{}, fmt.Errorf("scale_level must be -1 or 0-4, got %d", pc.ScaleLevel)
	}
	return pc, nil
}

// contextOptions are the tool options shared by tools taking a planning context.
func contextOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("scale_level",
			mcp.Description("Size of the unit of work, 0 (single change) to 4 (multi-team). Omit for any."),
		),
		mcp.WithString("project_type",
			mcp.Description("Project type, e.g. web-app, cli, library"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma separated context tags, e.g. 'api,auth'"),
		),
		mcp.WithString("phase",
			mcp.Description("Planning phase, e.g. design, implementation"),
		),
		mcp.WithString("categories",
			mcp.Description("Comma separated categories to consider: quality, process, architectural (default: all)"),
		),
	}
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
