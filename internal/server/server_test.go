package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/config"
	"github.com/sadopc/sumtimer/internal/focus"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestApp(t *testing.T) (*app.App, *clock) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	clk := &clock{t: time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)}
	cfg := config.Config{
		UserID:           "u",
		DayStartHour:     4,
		WeekStart:        time.Monday,
		MaxPauseDuration: 30 * time.Minute,
		TickInterval:     time.Second,
	}
	a, err := app.New(context.Background(), s, cfg, zap.NewNop(), app.Options{Now: clk.Now})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	_, err = a.Bootstrap(context.Background())
	require.NoError(t, err)
	return a, clk
}

func call(t *testing.T, tool Tool, args map[string]interface{}) (string, bool) {
	t.Helper()
	res, err := tool.Handle(context.Background(), makeReq(args))
	require.NoError(t, err)
	return resultText(res), res.IsError
}

// ─── Registration ────────────────────────────────────────────────────────────

func TestToolsHaveUniqueNames(t *testing.T) {
	a, _ := newTestApp(t)
	seen := map[string]bool{}
	for _, tool := range Tools(a) {
		name := tool.Definition().Name
		require.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate tool %s", name)
		seen[name] = true
	}
	for _, want := range []string{"timer_status", "timer_start", "timer_finish", "category_list", "focus_check"} {
		assert.True(t, seen[want], "missing tool %s", want)
	}
	assert.NotNil(t, New(a))
}

// ─── Timer ───────────────────────────────────────────────────────────────────

func TestTimerLifecycle(t *testing.T) {
	a, clk := newTestApp(t)

	text, isErr := call(t, NewTimerStatusTool(a), nil)
	assert.False(t, isErr)
	assert.Equal(t, "Timer is idle.", text)

	text, isErr = call(t, NewTimerStartTool(a), map[string]interface{}{"activity": "general work"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "General work")

	clk.Advance(90 * time.Second)
	text, _ = call(t, NewTimerStatusTool(a), nil)
	assert.Contains(t, text, "State: running")
	assert.Contains(t, text, "Category: Work")
	assert.Contains(t, text, "Elapsed: 1m30s")

	pause := NewTimerActionTool(a, "timer_pause", "", a.Timer.Pause)
	text, isErr = call(t, pause, nil)
	require.False(t, isErr, text)
	assert.Contains(t, text, "State: paused")

	clk.Advance(time.Minute)
	resume := NewTimerActionTool(a, "timer_resume", "", a.Timer.Resume)
	text, _ = call(t, resume, nil)
	assert.Contains(t, text, "State: running")
	assert.Contains(t, text, "Frames: 1 closed")

	_, isErr = call(t, NewTimerMemoTool(a), map[string]interface{}{"memo": "deep work"})
	require.False(t, isErr)

	clk.Advance(30 * time.Second)
	text, isErr = call(t, NewTimerFinishTool(a), nil)
	require.False(t, isErr, text)
	assert.Contains(t, text, "2m00s over 2 frame(s)")

	text, _ = call(t, NewTimerFinishTool(a), nil)
	assert.Contains(t, text, "nothing to finish")

	text, _ = call(t, NewCategoryListTool(a), nil)
	assert.Contains(t, text, "Work")
	assert.Contains(t, text, "total 2m00s")

	text, _ = call(t, NewRecordListTool(a), map[string]interface{}{"activity": "General work"})
	assert.Contains(t, text, "in 2 frames")
	assert.Contains(t, text, "(deep work)")
}

func TestTimerStartErrors(t *testing.T) {
	a, _ := newTestApp(t)

	text, isErr := call(t, NewTimerStartTool(a), nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "required")

	text, isErr = call(t, NewTimerStartTool(a), map[string]interface{}{"activity": "skydiving"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")
}

func TestTimerMemoTooLong(t *testing.T) {
	a, _ := newTestApp(t)
	_, isErr := call(t, NewTimerStartTool(a), map[string]interface{}{"activity": "Walking"})
	require.False(t, isErr)

	long := make([]rune, 501)
	for i := range long {
		long[i] = 'x'
	}
	_, isErr = call(t, NewTimerMemoTool(a), map[string]interface{}{"memo": string(long)})
	assert.True(t, isErr)
}

// ─── Records ─────────────────────────────────────────────────────────────────

func TestRecordAddListDelete(t *testing.T) {
	a, clk := newTestApp(t)
	now := clk.Now()

	text, isErr := call(t, NewRecordAddTool(a), map[string]interface{}{
		"activity": "Walking",
		"start":    now.Add(-2 * time.Hour).Format(time.RFC3339),
		"end":      now.Add(-time.Hour).Format(time.RFC3339),
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "1h00m00s of Walking")

	_, isErr = call(t, NewRecordAddTool(a), map[string]interface{}{
		"activity": "Sleep",
		"start":    now.AddDate(0, 0, -10).Format(time.RFC3339),
		"end":      now.AddDate(0, 0, -10).Add(8 * time.Hour).Format(time.RFC3339),
	})
	require.False(t, isErr)

	text, _ = call(t, NewRecordListTool(a), nil)
	assert.Contains(t, text, "# Records (2)")

	text, _ = call(t, NewRecordListTool(a), map[string]interface{}{"days": float64(1)})
	assert.Contains(t, text, "# Records (1)")
	assert.Contains(t, text, "**Inside window:** 1h00m00s")

	recs, err := a.Repos.Records.List(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	text, isErr = call(t, NewRecordDeleteTool(a), map[string]interface{}{"id": recs[0].ID})
	require.False(t, isErr, text)

	text, _ = call(t, NewRecordListTool(a), map[string]interface{}{"days": float64(1)})
	assert.Equal(t, "No records.", text)

	_, isErr = call(t, NewRecordDeleteTool(a), map[string]interface{}{"id": recs[0].ID})
	assert.True(t, isErr)
}

func TestRecordAddValidation(t *testing.T) {
	a, _ := newTestApp(t)
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing times", map[string]interface{}{"activity": "Walking"}},
		{"bad start", map[string]interface{}{"activity": "Walking", "start": "yesterday", "end": "2024-03-05T09:00:00Z"}},
		{"inverted", map[string]interface{}{"activity": "Walking", "start": "2024-03-05T09:00:00Z", "end": "2024-03-05T08:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := call(t, NewRecordAddTool(a), tt.args)
			assert.True(t, isErr)
		})
	}
}

func TestActivityList(t *testing.T) {
	a, _ := newTestApp(t)
	text, _ := call(t, NewActivityListTool(a), nil)
	assert.Contains(t, text, "# Activities (7)")
	assert.Contains(t, text, "Errands")

	cats, err := a.Repos.Categories.List(context.Background())
	require.NoError(t, err)
	var chore string
	for _, c := range cats {
		if c.Label == "Chore" {
			chore = c.ID
		}
	}
	text, _ = call(t, NewActivityListTool(a), map[string]interface{}{"category": chore})
	assert.Contains(t, text, "# Activities (2)")
	assert.Contains(t, text, "in Chore")
}

// ─── Maintenance ─────────────────────────────────────────────────────────────

func TestCacheRecompute(t *testing.T) {
	a, _ := newTestApp(t)

	text, _ := call(t, NewCacheRecomputeTool(a), map[string]interface{}{"check": true})
	assert.Equal(t, "Totals match the records.", text)

	text, isErr := call(t, NewCacheRecomputeTool(a), nil)
	require.False(t, isErr)
	assert.Contains(t, text, "7 categories and 7 activities")
}

func TestFocusCheck(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	tool := NewFocusCheckTool(a)

	_, isErr := call(t, tool, nil)
	assert.True(t, isErr)

	text, _ := call(t, tool, map[string]interface{}{"url": "https://youtube.com"})
	assert.Equal(t, "allow: focus mode is off", text)

	work, err := a.FindActivity(ctx, "General work")
	require.NoError(t, err)
	require.NoError(t, focus.SaveRules(ctx, a.Store, focus.Rules{
		Enabled:     true,
		Categories:  []string{work.CID},
		URLPatterns: []string{`youtube\.com`},
	}))
	require.NoError(t, a.Timer.Start(ctx, work.ID))

	text, _ = call(t, tool, map[string]interface{}{"url": "https://youtube.com"})
	assert.Contains(t, text, "block: url matches")
	assert.Contains(t, text, "redirect: about:blank")

	text, _ = call(t, tool, map[string]interface{}{"url": "https://go.dev"})
	assert.Equal(t, "allow", text)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second + 400*time.Millisecond, "1h02m03s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d))
	}
}
