package tui

import (
	"math"
	"sort"
	"time"

	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

// categoryTotal is the time spent in one category inside a window.
type categoryTotal struct {
	CID      string
	Label    string
	Color    string
	Order    float64
	Duration time.Duration
	Records  int
}

// summarize adds up the part of each record that falls inside w, grouped
// by the category of the record's activity. Categories with no time inside
// w are left out; the uncategorized bucket sorts last.
func summarize(recs []store.Record, agg *store.Cache, w timeutil.Span) []categoryTotal {
	byCID := map[string]*categoryTotal{}
	for _, r := range recs {
		d := timeutil.ComputeDurationIn(r.Interval, w)
		if d <= 0 {
			continue
		}
		var cid string
		if agg != nil {
			cid = agg.Activities[r.AID].CID
		}
		t, ok := byCID[cid]
		if !ok {
			t = &categoryTotal{CID: cid, Label: ongoing.DefaultCategoryName, Color: ongoing.DefaultCategoryColor, Order: math.MaxFloat64}
			if agg != nil && cid != "" {
				if c, found := agg.Categories[cid]; found {
					t.Label, t.Color, t.Order = c.Label, c.Color, c.Order
				}
			}
			byCID[cid] = t
		}
		t.Duration += d
		t.Records++
	}

	out := make([]categoryTotal, 0, len(byCID))
	for _, t := range byCID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func total(ts []categoryTotal) time.Duration {
	var d time.Duration
	for _, t := range ts {
		d += t.Duration
	}
	return d
}
