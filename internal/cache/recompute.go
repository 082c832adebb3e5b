package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

// Build derives the aggregate from the normalized collections.
func Build(cats []store.Category, acts []store.Activity, recs []store.Record) *store.Cache {
	c := store.EmptyCache()
	for _, cat := range cats {
		c.Categories[cat.ID] = store.CachedCategory{Label: cat.Label, Color: cat.Color, Order: cat.Order}
	}
	for _, a := range acts {
		c.Activities[a.ID] = store.CachedActivity{Label: a.Label, CID: a.CID, Updated: a.Updated.UnixMilli()}
	}
	for _, r := range recs {
		a, ok := c.Activities[r.AID]
		if !ok {
			continue
		}
		a.Duration += r.Duration
		a.Count++
		c.Activities[r.AID] = a
		if cat, ok := c.Categories[a.CID]; ok {
			cat.Duration += r.Duration
			c.Categories[a.CID] = cat
		}
	}
	return c
}

func (m *Manager) build(ctx context.Context) (*store.Cache, error) {
	cats, err := m.store.ListCategories(ctx, m.uid)
	if err != nil {
		return nil, err
	}
	acts, err := m.store.ListActivities(ctx, m.uid)
	if err != nil {
		return nil, err
	}
	recs, err := m.store.ListRecords(ctx, store.RecordFilter{UID: m.uid})
	if err != nil {
		return nil, err
	}
	return Build(cats, acts, recs), nil
}

// Recompute rebuilds the aggregate from every category, activity and
// record and replaces the stored one wholesale.
func (m *Manager) Recompute(ctx context.Context) (*store.Cache, error) {
	c, err := m.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute cache: %w", err)
	}
	b := m.store.Batch()
	b.ReplaceCache(m.uid, c, m.now())
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("recompute cache: %w", err)
	}
	m.log.Info("cache recomputed",
		zap.Int("categories", len(c.Categories)),
		zap.Int("activities", len(c.Activities)),
	)
	return c, nil
}

// Mismatch is one field where the stored aggregate disagrees with a fresh
// recomputation.
type Mismatch struct {
	Kind     string // "category" or "activity"
	ID       string
	Field    string
	Stored   any
	Computed any
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: %s stored=%v computed=%v", m.Kind, m.ID, m.Field, m.Stored, m.Computed)
}

// Verify compares the stored aggregate against a recomputation without
// writing anything.
func (m *Manager) Verify(ctx context.Context) ([]Mismatch, error) {
	stored, err := m.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify cache: %w", err)
	}
	if stored == nil {
		stored = store.EmptyCache()
	}
	fresh, err := m.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify cache: %w", err)
	}
	return Compare(stored, fresh), nil
}

// Compare lists the differences between two aggregates, sorted by kind and
// id.
func Compare(stored, computed *store.Cache) []Mismatch {
	var out []Mismatch
	add := func(kind, id, field string, s, c any) {
		if s != c {
			out = append(out, Mismatch{Kind: kind, ID: id, Field: field, Stored: s, Computed: c})
		}
	}

	for _, id := range union(stored.Categories, computed.Categories) {
		s, sok := stored.Categories[id]
		c, cok := computed.Categories[id]
		add("category", id, "present", sok, cok)
		if !sok || !cok {
			continue
		}
		add("category", id, "label", s.Label, c.Label)
		add("category", id, "color", s.Color, c.Color)
		add("category", id, "order", s.Order, c.Order)
		add("category", id, "duration", s.Duration, c.Duration)
	}
	for _, id := range union(stored.Activities, computed.Activities) {
		s, sok := stored.Activities[id]
		c, cok := computed.Activities[id]
		add("activity", id, "present", sok, cok)
		if !sok || !cok {
			continue
		}
		add("activity", id, "label", s.Label, c.Label)
		add("activity", id, "cid", s.CID, c.CID)
		add("activity", id, "duration", s.Duration, c.Duration)
		add("activity", id, "count", s.Count, c.Count)
		add("activity", id, "updated", s.Updated, c.Updated)
	}
	return out
}

func union[V any](a, b map[string]V) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
