package focus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sadopc/sumtimer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTabs struct {
	tabs       []Tab
	redirected map[int]string
	fail       bool
}

func (f *fakeTabs) ActiveTabs(ctx context.Context) ([]Tab, error) {
	if f.fail {
		return nil, errors.New("extension gone")
	}
	return f.tabs, nil
}

func (f *fakeTabs) Redirect(ctx context.Context, id int, url string) error {
	if f.redirected == nil {
		f.redirected = map[int]string{}
	}
	f.redirected[id] = url
	return nil
}

var rules = Rules{
	Enabled:       true,
	Categories:    []string{"work"},
	URLPatterns:   []string{`youtube\.com`, `^https://news\.`},
	TitlePatterns: []string{`(?i)trailer`},
}

func TestCheckOutsideFocus(t *testing.T) {
	b := NewBridge(nil, zap.NewNop())
	require.NoError(t, b.SetRules(context.Background(), rules))

	assert.False(t, b.InFocus())
	assert.Equal(t, Decision{}, b.Check(Tab{URL: "https://youtube.com/watch"}))
}

func TestCheckInFocus(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(nil, zap.NewNop())
	require.NoError(t, b.SetRules(ctx, rules))
	require.NoError(t, b.SetOngoingCategory(ctx, "work"))
	require.True(t, b.InFocus())

	tests := []struct {
		name  string
		tab   Tab
		block bool
	}{
		{"url match", Tab{URL: "https://www.youtube.com/watch?v=1"}, true},
		{"anchored url", Tab{URL: "https://news.example.com"}, true},
		{"anchored url elsewhere", Tab{URL: "https://example.com/?q=https://news."}, false},
		{"title match", Tab{URL: "https://example.com", Title: "New TRAILER out"}, true},
		{"allowed", Tab{URL: "https://go.dev", Title: "Go"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := b.Check(tt.tab)
			assert.Equal(t, tt.block, d.Block)
			if tt.block {
				assert.Equal(t, DefaultRedirectURL, d.RedirectURL)
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestFocusRequiresEnabledAndCategory(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(nil, zap.NewNop())

	disabled := rules
	disabled.Enabled = false
	require.NoError(t, b.SetRules(ctx, disabled))
	require.NoError(t, b.SetOngoingCategory(ctx, "work"))
	assert.False(t, b.InFocus())

	require.NoError(t, b.SetRules(ctx, rules))
	assert.True(t, b.InFocus())

	require.NoError(t, b.SetOngoingCategory(ctx, "play"))
	assert.False(t, b.InFocus())

	require.NoError(t, b.SetOngoingCategory(ctx, ""))
	assert.False(t, b.InFocus())
}

func TestEnteringFocusEnforcesTabs(t *testing.T) {
	ctx := context.Background()
	tabs := &fakeTabs{tabs: []Tab{
		{ID: 1, URL: "https://youtube.com"},
		{ID: 2, URL: "https://go.dev"},
	}}
	r := rules
	r.RedirectURL = "https://sumtimer.local/focus"
	b := NewBridge(tabs, zap.NewNop())
	require.NoError(t, b.SetRules(ctx, r))
	assert.Empty(t, tabs.redirected)

	require.NoError(t, b.SetOngoingCategory(ctx, "work"))
	assert.Equal(t, map[int]string{1: "https://sumtimer.local/focus"}, tabs.redirected)

	// staying in focus does not re-enforce
	tabs.redirected = nil
	require.NoError(t, b.SetOngoingCategory(ctx, "work"))
	assert.Empty(t, tabs.redirected)
}

func TestEnforceTabError(t *testing.T) {
	ctx := context.Background()
	tabs := &fakeTabs{fail: true}
	b := NewBridge(tabs, zap.NewNop())
	require.NoError(t, b.SetRules(ctx, rules))

	err := b.SetOngoingCategory(ctx, "work")
	require.Error(t, err)
	assert.True(t, b.InFocus())
}

func TestSetRulesRejectsBadPattern(t *testing.T) {
	b := NewBridge(nil, zap.NewNop())
	bad := rules
	bad.URLPatterns = []string{"("}
	require.Error(t, b.SetRules(context.Background(), bad))
	assert.Equal(t, Rules{}, b.Rules())
}

func TestRulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	empty, err := LoadRules(ctx, s, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, empty.Enabled)
	assert.Empty(t, empty.URLPatterns)

	require.NoError(t, SaveRules(ctx, s, rules))
	got, err := LoadRules(ctx, s, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, rules, got)

	bad := rules
	bad.TitlePatterns = []string{"[a-"}
	require.Error(t, SaveRules(ctx, s, bad))
	got, err = LoadRules(ctx, s, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, rules, got)
}

func TestLoadRulesLogsBadEnabledFlag(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	b := s.Batch()
	b.SetSetting(keyEnabled, "maybe")
	b.SetSetting(keyRedirectURL, "https://calm.test")
	require.NoError(t, b.Commit(ctx))

	core, logs := observer.New(zap.WarnLevel)
	got, err := LoadRules(ctx, s, zap.New(core))
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "https://calm.test", got.RedirectURL)

	entries := logs.FilterField(zap.String("key", keyEnabled)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad focus setting", entries[0].Message)
}

func TestWatchFollowsOngoing(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	b := s.Batch()
	b.CreateCategory(store.Category{ID: "work", UID: "u", Label: "Work", Color: "#ef5350", Order: 1})
	b.CreateCategory(store.Category{ID: "play", UID: "u", Label: "Play", Color: "#42a5f5", Order: 2})
	b.CreateActivity(store.Activity{ID: "code", UID: "u", Label: "Coding", CID: "work", Updated: time.UnixMilli(0)})
	b.CreateActivity(store.Activity{ID: "game", UID: "u", Label: "Games", CID: "play", Updated: time.UnixMilli(0)})
	require.NoError(t, b.Commit(ctx))
	require.NoError(t, SaveRules(ctx, s, rules))

	tabs := &fakeTabs{tabs: []Tab{{ID: 7, URL: "https://youtube.com"}}}
	bridge := NewBridge(tabs, zap.NewNop())
	stop, err := bridge.Watch(ctx, s, "u")
	require.NoError(t, err)
	defer stop()
	assert.False(t, bridge.InFocus())

	now := time.UnixMilli(1000)
	b = s.Batch()
	b.SetOngoing(store.Ongoing{UID: "u", AID: "game", CID: "play", RecStart: now, CurStart: &now})
	require.NoError(t, b.Commit(ctx))
	assert.False(t, bridge.InFocus())

	// moving the timed activity into a focus category turns focus on
	b = s.Batch()
	b.UpdateActivity(store.Activity{ID: "game", UID: "u", Label: "Games", CID: "work", Updated: now})
	require.NoError(t, b.Commit(ctx))
	assert.True(t, bridge.InFocus())
	assert.Equal(t, DefaultRedirectURL, tabs.redirected[7])

	b = s.Batch()
	b.DeleteOngoing("u")
	require.NoError(t, b.Commit(ctx))
	assert.False(t, bridge.InFocus())

	off := rules
	off.Enabled = false
	require.NoError(t, SaveRules(ctx, s, off))
	assert.False(t, bridge.Rules().Enabled)
}

func TestOngoingCategoryFallsBack(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	cid, err := OngoingCategory(ctx, s, "u")
	require.NoError(t, err)
	assert.Empty(t, cid)

	now := time.UnixMilli(0)
	b := s.Batch()
	b.SetOngoing(store.Ongoing{UID: "u", AID: "gone", CID: "work", RecStart: now, CurStart: &now})
	require.NoError(t, b.Commit(ctx))

	cid, err = OngoingCategory(ctx, s, "u")
	require.NoError(t, err)
	assert.Equal(t, "work", cid)
}
