package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

const recordsPerPage = 20

// RecordListTool handles the record_list MCP tool.
type RecordListTool struct {
	app *app.App
}

func NewRecordListTool(a *app.App) *RecordListTool {
	return &RecordListTool{app: a}
}

func (t *RecordListTool) Definition() mcp.Tool {
	return mcp.NewTool("record_list",
		mcp.WithDescription(
			"List records newest first. With 'days', only records overlapping the last N days "+
				"(days start at the configured hour) are listed and the time inside that window is summed.",
		),
		mcp.WithString("activity",
			mcp.Description("Activity id or label to filter by"),
		),
		mcp.WithNumber("days",
			mcp.Description("Window size in days, counting today"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum records to list (default: 20)"),
		),
	)
}

func (t *RecordListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := store.RecordFilter{Limit: intArg(req, "limit", recordsPerPage)}
	if ref := req.GetString("activity", ""); ref != "" {
		act, err := t.app.FindActivity(ctx, ref)
		if err != nil {
			return errorResult("find activity", err), nil
		}
		f.AID = act.ID
	}

	var window *timeutil.Span
	if days := intArg(req, "days", 0); days > 0 {
		cal := t.app.Calendar()
		now := t.app.Now()
		w := timeutil.Span{Start: cal.StartOfDay(now).AddDate(0, 0, -(days - 1)), End: now}
		window = &w
		f.From, f.To = &w.Start, &w.End
	}

	recs, err := t.app.Repos.Records.List(ctx, f)
	if err != nil {
		return errorResult("list records", err), nil
	}
	agg, err := t.app.Cache.Get(ctx)
	if err != nil {
		return errorResult("read totals", err), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("No records."), nil
	}

	var b strings.Builder
	var inWindow time.Duration
	fmt.Fprintf(&b, "# Records (%d)\n\n", len(recs))
	for _, r := range recs {
		name, _, _ := ongoing.Names(agg, r.AID)
		fmt.Fprintf(&b, "- [%s] %s %s - %s, %s",
			r.ID, name,
			r.Start().Local().Format("2006-01-02 15:04"),
			r.End().Local().Format("15:04"),
			formatElapsed(msDuration(r.Duration)))
		if n := len(r.Interval.Spans()); n > 1 {
			fmt.Fprintf(&b, " in %d frames", n)
		}
		if r.Memo != "" {
			fmt.Fprintf(&b, " (%s)", r.Memo)
		}
		b.WriteString("\n")
		if window != nil {
			inWindow += timeutil.ComputeDurationIn(r.Interval, *window)
		}
	}
	if window != nil {
		fmt.Fprintf(&b, "\n**Inside window:** %s\n", formatElapsed(inWindow))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecordAddTool handles the record_add MCP tool.
type RecordAddTool struct {
	app *app.App
}

func NewRecordAddTool(a *app.App) *RecordAddTool {
	return &RecordAddTool{app: a}
}

func (t *RecordAddTool) Definition() mcp.Tool {
	return mcp.NewTool("record_add",
		mcp.WithDescription("Log a finished stretch of time that was not timed live."),
		mcp.WithString("activity",
			mcp.Required(),
			mcp.Description("Activity id or label"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time, RFC 3339"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time, RFC 3339"),
		),
		mcp.WithString("memo",
			mcp.Description("Optional memo"),
		),
	)
}

func (t *RecordAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := timeArg(req, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := timeArg(req, "end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if start.IsZero() || end.IsZero() {
		return mcp.NewToolResultError("'start' and 'end' are required"), nil
	}
	act, err := t.app.FindActivity(ctx, req.GetString("activity", ""))
	if err != nil {
		return errorResult("find activity", err), nil
	}
	rec, err := t.app.Repos.Records.Add(ctx, act.ID, []timeutil.Span{{Start: start, End: end}}, req.GetString("memo", ""))
	if err != nil {
		return errorResult("add record", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved record %s: %s of %s.",
		rec.ID, formatElapsed(msDuration(rec.Duration)), act.Label)), nil
}

// RecordDeleteTool handles the record_delete MCP tool.
type RecordDeleteTool struct {
	app *app.App
}

func NewRecordDeleteTool(a *app.App) *RecordDeleteTool {
	return &RecordDeleteTool{app: a}
}

func (t *RecordDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("record_delete",
		mcp.WithDescription("Delete a record and subtract it from the totals."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record id"),
		),
	)
}

func (t *RecordDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if err := t.app.Repos.Records.Delete(ctx, id); err != nil {
		return errorResult("delete record", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted record %s.", id)), nil
}
