// Package server exposes the timer, repositories and focus bridge as MCP
// tools over stdio.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sadopc/sumtimer/internal/app"
)

// Version is set at build time via ldflags.
var Version = "dev"

type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools lists every tool bound to a.
func Tools(a *app.App) []Tool {
	return []Tool{
		NewTimerStatusTool(a),
		NewTimerStartTool(a),
		NewTimerActionTool(a, "timer_pause", "Pause the running session. The open span is closed at the current time.", a.Timer.Pause),
		NewTimerActionTool(a, "timer_resume", "Resume a paused session.", a.Timer.Resume),
		NewTimerActionTool(a, "timer_reset", "Discard the live session without writing a record.", a.Timer.Reset),
		NewTimerFinishTool(a),
		NewTimerMemoTool(a),
		NewCategoryListTool(a),
		NewActivityListTool(a),
		NewRecordListTool(a),
		NewRecordAddTool(a),
		NewRecordDeleteTool(a),
		NewCacheRecomputeTool(a),
		NewFocusCheckTool(a),
	}
}

// New creates the MCP server with every tool registered.
func New(a *app.App) *server.MCPServer {
	s := server.NewMCPServer(
		"sumtimer",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(a) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

const instructions = `sumtimer tracks time against activities grouped into categories.
Use timer_status first. timer_start accepts an activity id or label; starting a
different activity finishes the current session. Totals per category and
activity come from category_list and activity_list.`
