package app

import (
	"context"
	"testing"
	"time"

	"github.com/sadopc/sumtimer/internal/config"
	"github.com/sadopc/sumtimer/internal/focus"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		UserID:           "u",
		DayStartHour:     4,
		WeekStart:        time.Monday,
		MaxPauseDuration: 30 * time.Minute,
		TickInterval:     time.Second,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	now := timeutil.Millis(1_700_000_000_000)
	a, err := New(context.Background(), s, testConfig(), zap.NewNop(), Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLoadPresets(t *testing.T) {
	p, err := LoadPresets()
	require.NoError(t, err)
	require.Len(t, p.Categories, 7)
	require.Len(t, p.Activities, 7)
	assert.Equal(t, "Work", p.Categories[0].Label)
	assert.Equal(t, "#ef5350", p.Categories[0].Color)
	assert.Equal(t, "chore", p.Activities[6].Category)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	wrote, err := a.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)

	cats, err := a.Repos.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 7)
	assert.Equal(t, "Work", cats[0].Label)
	assert.Equal(t, "Others", cats[6].Label)

	c, err := a.Cache.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Categories, 7)
	assert.Len(t, c.Activities, 7)

	mismatches, err := a.Cache.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	wrote, err = a.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestBootstrapSkipsExistingAccount(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Repos.Activities.Add(ctx, "Solo", "")
	require.NoError(t, err)

	wrote, err := a.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestApplyConfig(t *testing.T) {
	a := newTestApp(t)
	cfg := testConfig()
	cfg.DayStartHour = 0
	cfg.WeekStart = time.Sunday
	cfg.MaxPauseDuration = time.Minute

	a.ApplyConfig(cfg)
	assert.Equal(t, 0, a.Calendar().DayStartHour)
	assert.Equal(t, time.Sunday, a.Calendar().WeekStart)

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ongoing.Idle, snap.State)
	assert.Equal(t, time.Minute, snap.MaxPause)
}

func TestTimerDrivesFocus(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Bootstrap(ctx)
	require.NoError(t, err)

	cats, err := a.Repos.Categories.List(ctx)
	require.NoError(t, err)
	work := cats[0]
	require.NoError(t, focus.SaveRules(ctx, a.Store, focus.Rules{
		Enabled:     true,
		Categories:  []string{work.ID},
		URLPatterns: []string{`youtube\.com`},
	}))

	acts, err := a.Repos.Activities.ByCategory(ctx, work.ID)
	require.NoError(t, err)
	require.NotEmpty(t, acts)

	require.NoError(t, a.Timer.Start(ctx, acts[0].ID))
	assert.True(t, a.Focus.InFocus())
	assert.True(t, a.Focus.Check(focus.Tab{URL: "https://youtube.com"}).Block)

	snap, err := a.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "General work", snap.ActivityName)
	assert.Equal(t, "Work", snap.CategoryName)

	require.NoError(t, a.Timer.Reset(ctx))
	assert.False(t, a.Focus.InFocus())
}

func TestFindActivity(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	walk, err := a.Repos.Activities.Add(ctx, "Walking", "")
	require.NoError(t, err)
	_, err = a.Repos.Activities.Add(ctx, "Reading", "")
	require.NoError(t, err)
	_, err = a.Repos.Activities.Add(ctx, "reading", "")
	require.NoError(t, err)

	got, err := a.FindActivity(ctx, walk.ID)
	require.NoError(t, err)
	assert.Equal(t, walk.ID, got.ID)

	got, err = a.FindActivity(ctx, "WALKING")
	require.NoError(t, err)
	assert.Equal(t, walk.ID, got.ID)

	_, err = a.FindActivity(ctx, "swimming")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = a.FindActivity(ctx, "Reading")
	assert.ErrorContains(t, err, "matches 2")
}
