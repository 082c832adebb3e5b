package portable

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sadopc/sumtimer/internal/cache"
	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"go.uber.org/zap"
)

type account struct {
	store *store.Store
	cache *cache.Manager
	repos *repo.Repos
}

func newAccount(t *testing.T) *account {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := cache.NewManager(s, "u", zap.NewNop())
	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	clock := func() time.Time { return timeutil.Millis(1_700_000_000_000) }
	return &account{store: s, cache: c, repos: repo.NewWithClock(s, c, "u", clock, zap.NewNop())}
}

func span(start, end int64) timeutil.Span {
	return timeutil.Span{Start: timeutil.Millis(start), End: timeutil.Millis(end)}
}

// seed fills the account with two categories, three activities and a mix
// of single- and multi-frame records.
func seed(t *testing.T, a *account) {
	t.Helper()
	ctx := context.Background()
	work, err := a.repos.Categories.Add(ctx, "Work", "#EF5350")
	if err != nil {
		t.Fatal(err)
	}
	play, err := a.repos.Categories.Add(ctx, "Play", "#42A5F5")
	if err != nil {
		t.Fatal(err)
	}
	coding, err := a.repos.Activities.Add(ctx, "Coding", work.ID)
	if err != nil {
		t.Fatal(err)
	}
	games, err := a.repos.Activities.Add(ctx, "Games", play.ID)
	if err != nil {
		t.Fatal(err)
	}
	reading, err := a.repos.Activities.Add(ctx, "Reading", "")
	if err != nil {
		t.Fatal(err)
	}

	adds := []struct {
		aid    string
		frames []timeutil.Span
		memo   string
	}{
		{coding.ID, []timeutil.Span{span(1000, 61000)}, "standup"},
		{coding.ID, []timeutil.Span{span(100000, 200000), span(300000, 350000)}, ""},
		{games.ID, []timeutil.Span{span(400000, 460000)}, ""},
		{reading.ID, []timeutil.Span{span(500000, 501000), span(600000, 700000), span(800000, 800500)}, "ch. 3"},
	}
	for _, add := range adds {
		if _, err := a.repos.Records.Add(ctx, add.aid, add.frames, add.memo); err != nil {
			t.Fatalf("Records.Add: %v", err)
		}
	}
}

// ============================================================
// Export / Import
// ============================================================

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newAccount(t)
	seed(t, src)

	exported, err := Export(ctx, src.repos)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, exported); err != nil {
		t.Fatalf("Write: %v", err)
	}
	read, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	dst := newAccount(t)
	sum, err := Import(ctx, dst.store, dst.repos, read, time.Now())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if want := (Summary{Categories: 2, Activities: 3, Records: 4}); sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}

	reexported, err := Export(ctx, dst.repos)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if diff := cmp.Diff(exported, reexported); diff != "" {
		t.Fatalf("round trip mismatch (-src +dst):\n%s", diff)
	}

	want, err := src.cache.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := dst.cache.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("aggregate mismatch (-src +dst):\n%s", diff)
	}
}

func TestRoundTripKeepsIntervalShape(t *testing.T) {
	ctx := context.Background()
	src := newAccount(t)
	seed(t, src)
	exported, err := Export(ctx, src.repos)
	if err != nil {
		t.Fatal(err)
	}

	dst := newAccount(t)
	if _, err := Import(ctx, dst.store, dst.repos, exported, time.Now()); err != nil {
		t.Fatal(err)
	}

	for _, r := range exported.Records {
		rec, err := dst.repos.Records.Get(ctx, r.ID)
		if err != nil {
			t.Fatalf("Get %s: %v", r.ID, err)
		}
		switch iv := rec.Interval.(type) {
		case timeutil.Single:
			if len(r.TimeFrames) != 1 {
				t.Fatalf("record %s: single interval for %d frames", r.ID, len(r.TimeFrames))
			}
		case timeutil.Split:
			if len(iv.Subs) != len(r.TimeFrames) {
				t.Fatalf("record %s: %d subs, want %d", r.ID, len(iv.Subs), len(r.TimeFrames))
			}
		}
		if rec.Duration != timeutil.ComputeDuration(rec.Interval).Milliseconds() {
			t.Fatalf("record %s: duration %d out of sync", r.ID, rec.Duration)
		}
	}
}

func TestExportOrder(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	seed(t, a)
	d, err := Export(ctx, a.repos)
	if err != nil {
		t.Fatal(err)
	}

	var labels []string
	for _, c := range d.Categories {
		labels = append(labels, c.Label)
	}
	if diff := cmp.Diff([]string{"Work", "Play"}, labels); diff != "" {
		t.Fatalf("category order (-want +got):\n%s", diff)
	}
	for i := 1; i < len(d.Records); i++ {
		if d.Records[i].TimeFrames[0].Start.Before(d.Records[i-1].TimeFrames[0].Start) {
			t.Fatalf("records not oldest first at %d", i)
		}
	}
	if d.Version != Version {
		t.Fatalf("version = %d", d.Version)
	}
}

func TestImportAppendsCategories(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	if _, err := a.repos.Categories.Add(ctx, "Existing", "#000000"); err != nil {
		t.Fatal(err)
	}

	d := &Data{Version: Version, Categories: []Category{
		{ID: "c1", Label: "One", Color: "#111111"},
		{ID: "c2", Label: "Two", Color: "#222222"},
	}}
	if _, err := Import(ctx, a.store, a.repos, d, time.Now()); err != nil {
		t.Fatalf("Import: %v", err)
	}

	cats, err := a.repos.Categories.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range cats {
		got = append(got, c.Label)
	}
	if diff := cmp.Diff([]string{"Existing", "One", "Two"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if cats[1].Order != 2 || cats[2].Order != 3 {
		t.Fatalf("orders = %v, %v", cats[1].Order, cats[2].Order)
	}
}

func TestImportBlankIDsAndMissingUpdatedAt(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	now := timeutil.Millis(42_000)

	d := &Data{
		Version:    Version,
		Activities: []Activity{{ID: "a1", Label: "Walk"}},
		Records:    []Record{{ActivityID: "a1", TimeFrames: []TimeFrame{{Start: timeutil.Millis(0), End: timeutil.Millis(5000)}}}},
	}
	if _, err := Import(ctx, a.store, a.repos, d, now); err != nil {
		t.Fatalf("Import: %v", err)
	}

	act, err := a.repos.Activities.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !act.Updated.Equal(now) {
		t.Fatalf("updated = %v, want %v", act.Updated, now)
	}
	recs, err := a.repos.Records.List(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID == "" || recs[0].Duration != 5000 {
		t.Fatalf("records = %+v", recs)
	}
}

func TestImportRejectsWithoutWriting(t *testing.T) {
	frame := []TimeFrame{{Start: timeutil.Millis(0), End: timeutil.Millis(1000)}}
	tests := []struct {
		name string
		data *Data
		want error
	}{
		{
			name: "unknown category",
			data: &Data{Version: Version, Activities: []Activity{{ID: "a", Label: "x", CategoryID: "nope"}}},
			want: ErrDanglingReference,
		},
		{
			name: "unknown activity",
			data: &Data{Version: Version,
				Categories: []Category{{ID: "c", Label: "C", Color: "#fff"}},
				Records:    []Record{{ID: "r", ActivityID: "nope", TimeFrames: frame}},
			},
			want: ErrDanglingReference,
		},
		{
			name: "no frames",
			data: &Data{Version: Version,
				Activities: []Activity{{ID: "a", Label: "x"}},
				Records:    []Record{{ID: "r", ActivityID: "a"}},
			},
			want: repo.ErrNoTimeFrames,
		},
		{
			name: "future version",
			data: &Data{Version: Version + 1},
			want: ErrUnsupportedVersion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := newAccount(t)
			_, err := Import(ctx, a.store, a.repos, tt.data, time.Now())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			cats, _ := a.repos.Categories.List(ctx)
			acts, _ := a.repos.Activities.List(ctx)
			if len(cats) != 0 || len(acts) != 0 {
				t.Fatalf("partial import: %d categories, %d activities", len(cats), len(acts))
			}
		})
	}
}

func TestImportDuplicateIDIsAtomic(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	seed(t, a)
	d, err := Export(ctx, a.repos)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := a.cache.Get(ctx)

	// the categories get fresh ids but the activities collide
	for i := range d.Categories {
		d.Categories[i].ID = ""
	}
	for i := range d.Activities {
		d.Activities[i].CategoryID = ""
	}
	if _, err := Import(ctx, a.store, a.repos, d, time.Now()); err == nil {
		t.Fatal("expected duplicate id error")
	}

	cats, _ := a.repos.Categories.List(ctx)
	if len(cats) != 2 {
		t.Fatalf("categories = %d, want 2", len(cats))
	}
	after, _ := a.cache.Get(ctx)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("aggregate changed (-before +after):\n%s", diff)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read(strings.NewReader("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Read(strings.NewReader(`{"version": 99}`)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	d := &Data{Version: Version, Records: []Record{{
		ID: "r", ActivityID: "a",
		TimeFrames: []TimeFrame{{Start: timeutil.Millis(0), End: timeutil.Millis(1500)}},
	}}}
	if err := Write(&buf, d); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"timeFrames"`, `"activityId": "a"`, `"start": "1970-01-01T00:00:00Z"`, `"end": "1970-01-01T00:00:01.5Z"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, `"memo"`) {
		t.Fatalf("empty memo should be omitted:\n%s", out)
	}
}

// ============================================================
// CSV
// ============================================================

func TestWriteCSV(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	seed(t, a)
	d, err := Export(ctx, a.repos)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, d, time.UTC); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows (1 header + 4 data), got %d", len(rows))
	}

	first := rows[1]
	want := []string{d.Records[0].ID, "Work", "Coding", "1970-01-01T00:00:01Z", "1970-01-01T00:01:01Z", "1", "60", "00:01:00", "standup"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("first row (-want +got):\n%s", diff)
	}

	last := rows[4]
	if last[1] != "Uncategorized" || last[2] != "Reading" || last[5] != "3" || last[6] != "101" {
		t.Fatalf("last row = %v", last)
	}
}

func TestWriteCSVUnknownActivity(t *testing.T) {
	d := &Data{Records: []Record{{
		ID: "r", ActivityID: "gone", Memo: `with "quotes", commas`,
		TimeFrames: []TimeFrame{{Start: timeutil.Millis(0), End: timeutil.Millis(3_661_000)}},
	}}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, d, time.UTC); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV should stay valid: %v", err)
	}
	if rows[1][2] != "???" || rows[1][7] != "01:01:01" || rows[1][8] != `with "quotes", commas` {
		t.Fatalf("row = %v", rows[1])
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{90061, "25:01:01"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.secs); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
