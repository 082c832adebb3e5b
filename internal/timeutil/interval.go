// Package timeutil holds the pure time arithmetic shared by the store, the
// cache and the timer: spans, the Single/Split interval variant, calendar
// boundaries and windowed durations.
package timeutil

import "time"

// Span is a closed-open stretch of wall time.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) Duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

func (s Span) Millis() int64 {
	return s.Duration().Milliseconds()
}

// Clip narrows s to the window w. The result may be empty.
func (s Span) Clip(w Span) Span {
	return Span{
		Start: FitDate(s.Start, w.Start, w.End),
		End:   FitDate(s.End, w.Start, w.End),
	}
}

// Interval is the recorded extent of a record: either one Single span or a
// Split made of ordered, non-overlapping sub-spans.
type Interval interface {
	Bounds() Span
	Spans() []Span
	isInterval()
}

// Single is an uninterrupted interval.
type Single struct {
	Span
}

func (s Single) Bounds() Span  { return s.Span }
func (s Single) Spans() []Span { return []Span{s.Span} }
func (Single) isInterval()     {}

// Split is an interval interrupted by pauses.
type Split struct {
	Subs []Span
}

func (s Split) Bounds() Span {
	if len(s.Subs) == 0 {
		return Span{}
	}
	return Span{Start: s.Subs[0].Start, End: s.Subs[len(s.Subs)-1].End}
}

func (s Split) Spans() []Span {
	out := make([]Span, len(s.Subs))
	copy(out, s.Subs)
	return out
}

func (Split) isInterval() {}

// FromFrames builds the interval for a list of time frames: one frame is a
// Single, anything else a Split.
func FromFrames(frames []Span) Interval {
	if len(frames) == 1 {
		return Single{Span: frames[0]}
	}
	subs := make([]Span, len(frames))
	copy(subs, frames)
	return Split{Subs: subs}
}

// FitDate clips t into [lo, hi].
func FitDate(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		t = lo
	}
	if t.After(hi) {
		t = hi
	}
	return t
}

// ComputeDuration sums the spans of iv.
func ComputeDuration(iv Interval) time.Duration {
	switch v := iv.(type) {
	case Single:
		return v.Duration()
	case Split:
		var d time.Duration
		for _, s := range v.Subs {
			d += s.Duration()
		}
		return d
	default:
		return 0
	}
}

// ComputeDurationIn is ComputeDuration restricted to the window w; a record
// crossing a bucket boundary contributes only its overlap.
func ComputeDurationIn(iv Interval, w Span) time.Duration {
	switch v := iv.(type) {
	case Single:
		return v.Clip(w).Duration()
	case Split:
		var d time.Duration
		for _, s := range v.Subs {
			d += s.Clip(w).Duration()
		}
		return d
	default:
		return 0
	}
}

// Millis converts a unix-millisecond timestamp to UTC time.
func Millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
