// Package portable converts a user's categories, activities and records to
// and from the portable JSON format.
package portable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported portable data version")
	ErrDanglingReference  = errors.New("reference to unknown document")
)

type TimeFrame struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Activity has an empty CategoryID when uncategorized.
type Activity struct {
	ID         string     `json:"id"`
	CategoryID string     `json:"categoryId,omitempty"`
	Label      string     `json:"label"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

type Record struct {
	ID         string      `json:"id"`
	ActivityID string      `json:"activityId"`
	Memo       string      `json:"memo,omitempty"`
	TimeFrames []TimeFrame `json:"timeFrames"`
}

type Data struct {
	Version    int        `json:"version"`
	Categories []Category `json:"categories"`
	Activities []Activity `json:"activities"`
	Records    []Record   `json:"records"`
}

// Summary counts what an import wrote.
type Summary struct {
	Categories int `json:"categories"`
	Activities int `json:"activities"`
	Records    int `json:"records"`
}

func frames(iv timeutil.Interval) []TimeFrame {
	spans := iv.Spans()
	out := make([]TimeFrame, len(spans))
	for i, sp := range spans {
		out[i] = TimeFrame{Start: sp.Start.UTC(), End: sp.End.UTC()}
	}
	return out
}

func spans(tf []TimeFrame) []timeutil.Span {
	out := make([]timeutil.Span, len(tf))
	for i, f := range tf {
		out[i] = timeutil.Span{Start: f.Start, End: f.End}
	}
	return out
}

// Export collects everything the user owns. Categories come in display
// order, activities least recently used first and records oldest first.
func Export(ctx context.Context, r *repo.Repos) (*Data, error) {
	cats, err := r.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export categories: %w", err)
	}
	acts, err := r.Activities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export activities: %w", err)
	}
	recs, err := r.Records.List(ctx, store.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}

	d := &Data{
		Version:    Version,
		Categories: make([]Category, 0, len(cats)),
		Activities: make([]Activity, 0, len(acts)),
		Records:    make([]Record, 0, len(recs)),
	}
	for _, c := range cats {
		d.Categories = append(d.Categories, Category{ID: c.ID, Label: c.Label, Color: c.Color})
	}
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		updated := a.Updated.UTC()
		d.Activities = append(d.Activities, Activity{ID: a.ID, CategoryID: a.CID, Label: a.Label, UpdatedAt: &updated})
	}
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		d.Records = append(d.Records, Record{
			ID:         rec.ID,
			ActivityID: rec.AID,
			Memo:       rec.Memo,
			TimeFrames: frames(rec.Interval),
		})
	}
	return d, nil
}

func Write(w io.Writer, d *Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("write portable data: %w", err)
	}
	return nil
}

func Read(r io.Reader) (*Data, error) {
	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("read portable data: %w", err)
	}
	if d.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	return &d, nil
}

// Import writes d into the user's account in one batch. Document ids are
// kept; a blank id gets a fresh one. Categories are appended after the
// existing ones in file order. Every reference must resolve to the file or
// to the account, otherwise nothing is written.
func Import(ctx context.Context, s *store.Store, r *repo.Repos, d *Data, now time.Time) (Summary, error) {
	var sum Summary
	if d.Version > Version {
		return sum, fmt.Errorf("import: %w: %d", ErrUnsupportedVersion, d.Version)
	}

	existing, err := r.Categories.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("import: %w", err)
	}
	var last float64
	cids := map[string]bool{}
	for _, c := range existing {
		cids[c.ID] = true
		last = c.Order
	}
	acts, err := r.Activities.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("import: %w", err)
	}
	aids := map[string]bool{}
	for _, a := range acts {
		aids[a.ID] = true
	}

	b := s.Batch()
	for i, c := range d.Categories {
		id := c.ID
		if id == "" {
			id = store.NewID()
		}
		cat := store.Category{ID: id, Label: c.Label, Color: c.Color, Order: last + 1 + float64(i)}
		if err := r.Categories.AddInBatch(ctx, b, cat); err != nil {
			return Summary{}, fmt.Errorf("import category %s: %w", id, err)
		}
		cids[id] = true
		sum.Categories++
	}

	for _, a := range d.Activities {
		if a.CategoryID != "" && !cids[a.CategoryID] {
			return Summary{}, fmt.Errorf("import activity %s: category %s: %w", a.ID, a.CategoryID, ErrDanglingReference)
		}
		id := a.ID
		if id == "" {
			id = store.NewID()
		}
		updated := now
		if a.UpdatedAt != nil {
			updated = *a.UpdatedAt
		}
		act := store.Activity{ID: id, Label: a.Label, CID: a.CategoryID, Updated: updated}
		if err := r.Activities.AddInBatch(ctx, b, act); err != nil {
			return Summary{}, fmt.Errorf("import activity %s: %w", id, err)
		}
		aids[id] = true
		sum.Activities++
	}

	for _, rec := range d.Records {
		if !aids[rec.ActivityID] {
			return Summary{}, fmt.Errorf("import record %s: activity %s: %w", rec.ID, rec.ActivityID, ErrDanglingReference)
		}
		id := rec.ID
		if id == "" {
			id = store.NewID()
		}
		doc, err := repo.NewRecord(id, "", rec.ActivityID, spans(rec.TimeFrames), rec.Memo)
		if err != nil {
			return Summary{}, fmt.Errorf("import record %s: %w", id, err)
		}
		if err := r.Records.AddInBatch(ctx, b, doc); err != nil {
			return Summary{}, fmt.Errorf("import record %s: %w", id, err)
		}
		sum.Records++
	}

	if err := b.Commit(ctx); err != nil {
		return Summary{}, fmt.Errorf("import: %w", err)
	}
	return sum, nil
}
