package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/focus"
)

// CacheRecomputeTool handles the cache_recompute MCP tool.
type CacheRecomputeTool struct {
	app *app.App
}

func NewCacheRecomputeTool(a *app.App) *CacheRecomputeTool {
	return &CacheRecomputeTool{app: a}
}

func (t *CacheRecomputeTool) Definition() mcp.Tool {
	return mcp.NewTool("cache_recompute",
		mcp.WithDescription(
			"Rebuild the category and activity totals from the records. "+
				"With check=true, only report where the stored totals differ.",
		),
		mcp.WithBoolean("check",
			mcp.Description("Report drift without rewriting (default: false)"),
		),
	)
}

func (t *CacheRecomputeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if boolArg(req, "check", false) {
		mismatches, err := t.app.Cache.Verify(ctx)
		if err != nil {
			return errorResult("verify totals", err), nil
		}
		if len(mismatches) == 0 {
			return mcp.NewToolResultText("Totals match the records."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d mismatch(es):\n", len(mismatches))
		for _, m := range mismatches {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	c, err := t.app.Cache.Recompute(ctx)
	if err != nil {
		return errorResult("recompute totals", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rebuilt totals for %d categories and %d activities.",
		len(c.Categories), len(c.Activities))), nil
}

// FocusCheckTool handles the focus_check MCP tool.
type FocusCheckTool struct {
	app *app.App
}

func NewFocusCheckTool(a *app.App) *FocusCheckTool {
	return &FocusCheckTool{app: a}
}

func (t *FocusCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("focus_check",
		mcp.WithDescription(
			"Decide whether a browser tab must be blocked. Tabs are only blocked while the "+
				"activity being timed belongs to a focus category.",
		),
		mcp.WithString("url",
			mcp.Description("Tab URL"),
		),
		mcp.WithString("title",
			mcp.Description("Tab title"),
		),
	)
}

func (t *FocusCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tab := focus.Tab{URL: req.GetString("url", ""), Title: req.GetString("title", "")}
	if tab.URL == "" && tab.Title == "" {
		return mcp.NewToolResultError("'url' or 'title' is required"), nil
	}
	d := t.app.Focus.Check(tab)
	if !d.Block {
		if !t.app.Focus.InFocus() {
			return mcp.NewToolResultText("allow: focus mode is off"), nil
		}
		return mcp.NewToolResultText("allow"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("block: %s\nredirect: %s", d.Reason, d.RedirectURL)), nil
}
