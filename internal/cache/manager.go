// Package cache maintains the per-user aggregate of category and activity
// totals. Each hook stages its delta into the batch that carries the
// entity write, so the aggregate and its sources commit together.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

type Manager struct {
	store *store.Store
	uid   string
	now   func() time.Time
	log   *zap.Logger
}

func NewManager(s *store.Store, uid string, log *zap.Logger) *Manager {
	return &Manager{store: s, uid: uid, now: time.Now, log: log.Named("cache")}
}

// Get returns the current aggregate, or nil when none exists.
func (m *Manager) Get(ctx context.Context) (*store.Cache, error) {
	return m.store.GetCache(ctx, m.uid)
}

// Ensure builds the aggregate from scratch if the user has none yet.
func (m *Manager) Ensure(ctx context.Context) error {
	c, err := m.Get(ctx)
	if err != nil {
		return err
	}
	if c != nil {
		return nil
	}
	_, err = m.Recompute(ctx)
	return err
}

// load fetches the aggregate for a hook; a nil result means the hook should
// do nothing.
func (m *Manager) load(ctx context.Context, hook string) (*store.Cache, error) {
	c, err := m.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hook, err)
	}
	if c == nil {
		m.log.Debug("no cache, skipping", zap.String("hook", hook))
	}
	return c, nil
}

func (m *Manager) OnCategoryAdded(ctx context.Context, b *store.Batch, c store.Category) error {
	agg, err := m.load(ctx, "category added")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Categories[c.ID]; ok {
		m.log.Error("category already in cache", zap.String("cid", c.ID))
		return nil
	}
	b.SetCachedCategory(m.uid, c.ID, store.CachedCategory{
		Label: c.Label, Color: c.Color, Order: c.Order,
	})
	return nil
}

// OnCategoryDeleted expects the caller to have removed every activity
// filed under cid first.
func (m *Manager) OnCategoryDeleted(ctx context.Context, b *store.Batch, cid string) error {
	agg, err := m.load(ctx, "category deleted")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Categories[cid]; !ok {
		m.log.Error("deleting category missing from cache", zap.String("cid", cid))
		return nil
	}
	b.DeleteCachedCategory(m.uid, cid)
	return nil
}

// OnCategoryUpdated rewrites the display fields. Durations follow records,
// never edits.
func (m *Manager) OnCategoryUpdated(ctx context.Context, b *store.Batch, before, after store.Category) error {
	agg, err := m.load(ctx, "category updated")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Categories[after.ID]; !ok {
		m.log.Error("updating category missing from cache", zap.String("cid", after.ID))
		return nil
	}
	if before.Label == after.Label && before.Color == after.Color && before.Order == after.Order {
		return nil
	}
	b.UpdateCachedCategory(m.uid, after.ID, after.Label, after.Color, after.Order)
	return nil
}

func (m *Manager) OnActivityAdded(ctx context.Context, b *store.Batch, a store.Activity) error {
	agg, err := m.load(ctx, "activity added")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Activities[a.ID]; ok {
		m.log.Error("activity already in cache", zap.String("aid", a.ID))
		return nil
	}
	b.SetCachedActivity(m.uid, a.ID, store.CachedActivity{
		Label: a.Label, CID: a.CID, Updated: a.Updated.UnixMilli(),
	})
	return nil
}

// OnActivityDeleted expects the activity to have no records left.
func (m *Manager) OnActivityDeleted(ctx context.Context, b *store.Batch, aid string) error {
	agg, err := m.load(ctx, "activity deleted")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Activities[aid]; !ok {
		m.log.Error("deleting activity missing from cache", zap.String("aid", aid))
		return nil
	}
	b.DeleteCachedActivity(m.uid, aid)
	return nil
}

// OnActivityUpdated stages only the fields that changed. A new category
// takes the activity's accumulated duration with it.
func (m *Manager) OnActivityUpdated(ctx context.Context, b *store.Batch, before, after store.Activity) error {
	agg, err := m.load(ctx, "activity updated")
	if err != nil || agg == nil {
		return err
	}
	if _, ok := agg.Activities[after.ID]; !ok {
		m.log.Error("updating activity missing from cache", zap.String("aid", after.ID))
		return nil
	}

	var p store.ActivityPatch
	if before.CID != after.CID {
		p.CID = &after.CID
		b.MoveActivityDuration(m.uid, after.ID, before.CID, after.CID)
	}
	if before.Label != after.Label {
		p.Label = &after.Label
	}
	if !before.Updated.Equal(after.Updated) {
		p.Updated = &after.Updated
	}
	b.UpdateCachedActivity(m.uid, after.ID, p)
	return nil
}

func (m *Manager) OnRecordAdded(ctx context.Context, b *store.Batch, r store.Record) error {
	agg, err := m.load(ctx, "record added")
	if err != nil || agg == nil {
		return err
	}
	b.IncrementActivity(m.uid, r.AID, r.Duration, 1)
	return nil
}

func (m *Manager) OnRecordDeleted(ctx context.Context, b *store.Batch, r store.Record) error {
	agg, err := m.load(ctx, "record deleted")
	if err != nil || agg == nil {
		return err
	}
	b.IncrementActivity(m.uid, r.AID, -r.Duration, -1)
	return nil
}

// OnRecordUpdated moves the contribution when the record changes activity,
// otherwise it applies the duration difference.
func (m *Manager) OnRecordUpdated(ctx context.Context, b *store.Batch, before, after store.Record) error {
	agg, err := m.load(ctx, "record updated")
	if err != nil || agg == nil {
		return err
	}
	if before.AID != after.AID {
		b.IncrementActivity(m.uid, before.AID, -before.Duration, -1)
		b.IncrementActivity(m.uid, after.AID, after.Duration, 1)
		return nil
	}
	if d := after.Duration - before.Duration; d != 0 {
		b.IncrementActivity(m.uid, after.AID, d, 0)
	}
	return nil
}

// Marshal renders the aggregate as indented JSON with sorted keys.
func Marshal(c *store.Cache) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
