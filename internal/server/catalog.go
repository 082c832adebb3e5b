package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/store"
)

// CategoryListTool handles the category_list MCP tool.
type CategoryListTool struct {
	app *app.App
}

func NewCategoryListTool(a *app.App) *CategoryListTool {
	return &CategoryListTool{app: a}
}

func (t *CategoryListTool) Definition() mcp.Tool {
	return mcp.NewTool("category_list",
		mcp.WithDescription("List categories in display order with their all-time totals."),
	)
}

func (t *CategoryListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := t.app.Repos.Categories.List(ctx)
	if err != nil {
		return errorResult("list categories", err), nil
	}
	agg, err := t.app.Cache.Get(ctx)
	if err != nil {
		return errorResult("read totals", err), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("No categories. Run `sumtimer init` to add the presets."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Categories (%d)\n\n", len(cats))
	for _, c := range cats {
		var total int64
		if agg != nil {
			total = agg.Categories[c.ID].Duration
		}
		fmt.Fprintf(&b, "- %s %s [%s] total %s\n", c.Color, c.Label, c.ID, formatElapsed(msDuration(total)))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ActivityListTool handles the activity_list MCP tool.
type ActivityListTool struct {
	app *app.App
}

func NewActivityListTool(a *app.App) *ActivityListTool {
	return &ActivityListTool{app: a}
}

func (t *ActivityListTool) Definition() mcp.Tool {
	return mcp.NewTool("activity_list",
		mcp.WithDescription("List activities, most recently used first, with record counts and totals."),
		mcp.WithString("category",
			mcp.Description("Only list activities in this category id"),
		),
	)
}

func (t *ActivityListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		acts []store.Activity
		err  error
	)
	if cid := req.GetString("category", ""); cid != "" {
		acts, err = t.app.Repos.Activities.ByCategory(ctx, cid)
	} else {
		acts, err = t.app.Repos.Activities.List(ctx)
	}
	if err != nil {
		return errorResult("list activities", err), nil
	}
	agg, err := t.app.Cache.Get(ctx)
	if err != nil {
		return errorResult("read totals", err), nil
	}
	if len(acts) == 0 {
		return mcp.NewToolResultText("No activities."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Activities (%d)\n\n", len(acts))
	for _, a := range acts {
		category := "Uncategorized"
		var cached store.CachedActivity
		if agg != nil {
			cached = agg.Activities[a.ID]
			if c, ok := agg.Categories[a.CID]; ok {
				category = c.Label
			}
		}
		fmt.Fprintf(&b, "- %s [%s] in %s: %d record(s), total %s\n",
			a.Label, a.ID, category, cached.Count, formatElapsed(msDuration(cached.Duration)))
	}
	return mcp.NewToolResultText(b.String()), nil
}
