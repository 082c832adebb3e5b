package ongoing

import (
	"context"
	"time"

	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

// openSpan is the running span closed at now. A start moved into the
// future yields an empty span.
func openSpan(o *store.Ongoing, now time.Time) timeutil.Span {
	start := *o.CurStart
	if now.Before(start) {
		now = start
	}
	return timeutil.Span{Start: start, End: now}
}

// Frames collapses the finished spans and, if running, the open span into
// the time frames of the record the session would become at now.
func Frames(o *store.Ongoing, now time.Time) []timeutil.Span {
	frames := append([]timeutil.Span(nil), o.Subs...)
	if o.Running() {
		frames = append(frames, openSpan(o, now))
	}
	if len(frames) == 0 {
		frames = append(frames, timeutil.Span{Start: o.RecStart, End: o.RecStart})
	}
	return frames
}

func earliest(o *store.Ongoing) time.Time {
	var first time.Time
	if o.CurStart != nil {
		first = *o.CurStart
	}
	for _, s := range o.Subs {
		if first.IsZero() || s.Start.Before(first) {
			first = s.Start
		}
	}
	if first.IsZero() {
		return o.RecStart
	}
	return first
}

// ElapsedMillis is the recorded time so far, floored at zero.
func ElapsedMillis(o *store.Ongoing, now time.Time) int64 {
	if o == nil {
		return 0
	}
	var ms int64
	for _, s := range o.Subs {
		ms += s.End.UnixMilli() - s.Start.UnixMilli()
	}
	if o.CurStart != nil {
		ms += now.UnixMilli() - o.CurStart.UnixMilli()
	}
	if ms < 0 {
		return 0
	}
	return ms
}

// PausedMillis is how long a paused session has been paused; zero when
// running or idle.
func PausedMillis(o *store.Ongoing, now time.Time) int64 {
	if o == nil || o.Running() || len(o.Subs) == 0 {
		return 0
	}
	ms := now.UnixMilli() - o.Subs[len(o.Subs)-1].End.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms
}

// Names resolves display names through the aggregate, falling back to
// placeholders when the activity or its category is gone.
func Names(c *store.Cache, aid string) (activity, category, color string) {
	activity, category, color = DefaultActivityName, DefaultCategoryName, DefaultCategoryColor
	if c == nil {
		return
	}
	a, ok := c.Activities[aid]
	if !ok {
		return
	}
	activity = a.Label
	if cat, ok := c.Categories[a.CID]; ok && a.CID != "" {
		category, color = cat.Label, cat.Color
	}
	return
}

// Snapshot is a read-only view of the session at one instant.
type Snapshot struct {
	State         State
	AID           string
	CID           string
	ActivityName  string
	CategoryName  string
	CategoryColor string
	RecStart      time.Time
	Elapsed       time.Duration
	Paused        time.Duration
	Memo          string
	Subs          []timeutil.Span
	MaxPause      time.Duration
}

// Snapshot reads the session and resolves its names through c, which may
// be nil.
func (t *Timer) Snapshot(ctx context.Context, c *store.Cache) (Snapshot, error) {
	o, err := t.Current(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	maxPause := t.maxPause
	t.mu.Unlock()
	return Project(o, c, t.now(), maxPause), nil
}

// Project builds a Snapshot from a session document.
func Project(o *store.Ongoing, c *store.Cache, now time.Time, maxPause time.Duration) Snapshot {
	s := Snapshot{State: StateOf(o), MaxPause: maxPause}
	if o == nil {
		return s
	}
	s.AID, s.CID, s.RecStart, s.Memo = o.AID, o.CID, o.RecStart, o.Memo
	s.Subs = append([]timeutil.Span(nil), o.Subs...)
	s.ActivityName, s.CategoryName, s.CategoryColor = Names(c, o.AID)
	s.Elapsed = time.Duration(ElapsedMillis(o, now)) * time.Millisecond
	s.Paused = time.Duration(PausedMillis(o, now)) * time.Millisecond
	return s
}
