package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/ongoing"
)

// TimerStatusTool handles the timer_status MCP tool.
type TimerStatusTool struct {
	app *app.App
}

func NewTimerStatusTool(a *app.App) *TimerStatusTool {
	return &TimerStatusTool{app: a}
}

func (t *TimerStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("timer_status",
		mcp.WithDescription("Show the live session: state, activity, category, elapsed and paused time, memo."),
	)
}

func (t *TimerStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.app.Snapshot(ctx)
	if err != nil {
		return errorResult("read timer", err), nil
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

func formatSnapshot(s ongoing.Snapshot) string {
	if s.State == ongoing.Idle {
		return "Timer is idle."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", s.State)
	fmt.Fprintf(&b, "Activity: %s (%s)\n", s.ActivityName, s.AID)
	fmt.Fprintf(&b, "Category: %s\n", s.CategoryName)
	fmt.Fprintf(&b, "Started: %s\n", s.RecStart.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Elapsed: %s\n", formatElapsed(s.Elapsed))
	if s.State == ongoing.Paused {
		fmt.Fprintf(&b, "Paused for: %s (auto-finish after %s)\n", formatElapsed(s.Paused), formatElapsed(s.MaxPause))
	}
	if len(s.Subs) > 0 {
		fmt.Fprintf(&b, "Frames: %d closed\n", len(s.Subs))
	}
	if s.Memo != "" {
		fmt.Fprintf(&b, "Memo: %s\n", s.Memo)
	}
	return b.String()
}

// TimerStartTool handles the timer_start MCP tool.
type TimerStartTool struct {
	app *app.App
}

func NewTimerStartTool(a *app.App) *TimerStartTool {
	return &TimerStartTool{app: a}
}

func (t *TimerStartTool) Definition() mcp.Tool {
	return mcp.NewTool("timer_start",
		mcp.WithDescription(
			"Start timing an activity. Starting the activity already being timed does nothing; "+
				"starting a different one finishes the current session first.",
		),
		mcp.WithString("activity",
			mcp.Required(),
			mcp.Description("Activity id or label"),
		),
	)
}

func (t *TimerStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := req.GetString("activity", "")
	if ref == "" {
		return mcp.NewToolResultError("'activity' is required"), nil
	}
	act, err := t.app.FindActivity(ctx, ref)
	if err != nil {
		return errorResult("find activity", err), nil
	}
	if err := t.app.Timer.Start(ctx, act.ID); err != nil {
		return errorResult("start timer", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Timing %q.", act.Label)), nil
}

// TimerActionTool wraps a timer operation that takes no arguments.
type TimerActionTool struct {
	app    *app.App
	name   string
	desc   string
	action func(context.Context) error
}

func NewTimerActionTool(a *app.App, name, desc string, action func(context.Context) error) *TimerActionTool {
	return &TimerActionTool{app: a, name: name, desc: desc, action: action}
}

func (t *TimerActionTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name, mcp.WithDescription(t.desc))
}

func (t *TimerActionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.action(ctx); err != nil {
		return errorResult(strings.TrimPrefix(t.name, "timer_")+" timer", err), nil
	}
	snap, err := t.app.Snapshot(ctx)
	if err != nil {
		return errorResult("read timer", err), nil
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

// TimerFinishTool handles the timer_finish MCP tool.
type TimerFinishTool struct {
	app *app.App
}

func NewTimerFinishTool(a *app.App) *TimerFinishTool {
	return &TimerFinishTool{app: a}
}

func (t *TimerFinishTool) Definition() mcp.Tool {
	return mcp.NewTool("timer_finish",
		mcp.WithDescription("Finish the live session and save it as a record."),
	)
}

func (t *TimerFinishTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := t.app.Timer.Finish(ctx)
	if err != nil {
		return errorResult("finish timer", err), nil
	}
	if rec == nil {
		return mcp.NewToolResultText("Timer is idle; nothing to finish."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved record %s: %s over %d frame(s).",
		rec.ID, formatElapsed(msDuration(rec.Duration)), len(rec.Interval.Spans()))), nil
}

// TimerMemoTool handles the timer_memo MCP tool.
type TimerMemoTool struct {
	app *app.App
}

func NewTimerMemoTool(a *app.App) *TimerMemoTool {
	return &TimerMemoTool{app: a}
}

func (t *TimerMemoTool) Definition() mcp.Tool {
	return mcp.NewTool("timer_memo",
		mcp.WithDescription("Set the memo saved with the live session's record."),
		mcp.WithString("memo",
			mcp.Required(),
			mcp.Description("Memo text, at most 500 characters"),
		),
	)
}

func (t *TimerMemoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memo := req.GetString("memo", "")
	if err := t.app.Timer.UpdateMemo(ctx, memo); err != nil {
		return errorResult("update memo", err), nil
	}
	return mcp.NewToolResultText("Memo updated."), nil
}
