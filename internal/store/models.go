package store

import (
	"time"

	"github.com/sadopc/sumtimer/internal/timeutil"
)

// Collection names a document collection. Batches report which ones they
// touched to subscribers.
type Collection string

const (
	Categories Collection = "categories"
	Activities Collection = "activities"
	Records    Collection = "records"
	Caches     Collection = "cache"
	Ongoings   Collection = "ongoings"
	Settings   Collection = "settings"
)

type Category struct {
	ID    string
	UID   string
	Label string
	Color string
	Order float64
}

// Activity belongs to at most one category; CID is empty when uncategorized.
type Activity struct {
	ID      string
	UID     string
	Label   string
	CID     string
	Updated time.Time
}

// Record is a finished stretch of tracked time. Duration is in milliseconds
// and always equals the summed length of Interval's spans.
type Record struct {
	ID       string
	UID      string
	AID      string
	Interval timeutil.Interval
	Duration int64
	Memo     string
}

func (r Record) Start() time.Time { return r.Interval.Bounds().Start }
func (r Record) End() time.Time   { return r.Interval.Bounds().End }

// Ongoing is the per-user live session. A nil CurStart means paused, with
// the pause point at the end of the last sub-span.
type Ongoing struct {
	UID      string
	AID      string
	CID      string
	RecStart time.Time
	CurStart *time.Time
	Memo     string
	Subs     []timeutil.Span
	Rev      int64
}

func (o *Ongoing) Running() bool { return o.CurStart != nil }

// Cache is the per-user aggregate of category and activity totals.
type Cache struct {
	Categories map[string]CachedCategory `json:"categories"`
	Activities map[string]CachedActivity `json:"activities"`
}

type CachedCategory struct {
	Label    string  `json:"label"`
	Color    string  `json:"color"`
	Order    float64 `json:"order"`
	Duration int64   `json:"duration"`
}

type CachedActivity struct {
	Label    string `json:"label"`
	CID      string `json:"cid,omitempty"`
	Duration int64  `json:"duration"`
	Count    int64  `json:"count"`
	Updated  int64  `json:"updated"`
}

// EmptyCache returns a cache with initialized maps.
func EmptyCache() *Cache {
	return &Cache{
		Categories: map[string]CachedCategory{},
		Activities: map[string]CachedActivity{},
	}
}

type Setting struct {
	Key   string
	Value string
}

// RecordFilter is used to filter records in queries.
type RecordFilter struct {
	UID   string
	AID   string
	From  *time.Time
	To    *time.Time
	Limit int
}

// Event is delivered to subscribers after a batch commits.
type Event struct {
	Collections []Collection
}

func (e Event) Has(c Collection) bool {
	for _, x := range e.Collections {
		if x == c {
			return true
		}
	}
	return false
}
