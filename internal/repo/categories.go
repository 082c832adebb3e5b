package repo

import (
	"context"
	"fmt"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

const (
	// renumberSpacing is the gap between orders after a renumber.
	renumberSpacing = 1000
	// minOrderGap is the narrowest gap bisected before renumbering.
	minOrderGap = 1e-6
)

// Palette is the set of colors offered when creating a category.
var Palette = []string{
	"#ef5350", "#ec407a", "#ab47bc", "#7e57c2", "#5c6bc0", "#42a5f5", "#29b6f6",
	"#26c6da", "#26a69a", "#66bb6a", "#9ccc65", "#d4e157", "#ffee58", "#ffca28",
	"#ffa726", "#ff7043", "#8d6e63", "#bdbdbd", "#78909c",
}

type Categories struct {
	base
}

func (c *Categories) List(ctx context.Context) ([]store.Category, error) {
	return c.store.ListCategories(ctx, c.uid)
}

func (c *Categories) Get(ctx context.Context, id string) (*store.Category, error) {
	return c.store.GetCategory(ctx, id)
}

// Add appends a category after the last one.
func (c *Categories) Add(ctx context.Context, label, color string) (*store.Category, error) {
	cats, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("add category: %w", err)
	}
	var last float64
	if len(cats) > 0 {
		last = cats[len(cats)-1].Order
	}
	cat := store.Category{ID: store.NewID(), UID: c.uid, Label: label, Color: color, Order: last + 1}

	b := c.store.Batch()
	if err := c.AddInBatch(ctx, b, cat); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("add category: %w", err)
	}
	return &cat, nil
}

// AddInBatch stages a fully specified category.
func (c *Categories) AddInBatch(ctx context.Context, b *store.Batch, cat store.Category) error {
	cat.UID = c.uid
	b.CreateCategory(cat)
	return c.cache.OnCategoryAdded(ctx, b, cat)
}

func (c *Categories) Update(ctx context.Context, id, label, color string) error {
	before, err := c.store.GetCategory(ctx, id)
	if err != nil {
		c.log.Error("update category", zap.String("cid", id), zap.Error(err))
		return fmt.Errorf("update category: %w", err)
	}
	after := *before
	after.Label, after.Color = label, color
	if after == *before {
		return nil
	}

	b := c.store.Batch()
	b.UpdateCategory(after)
	if err := c.cache.OnCategoryUpdated(ctx, b, *before, after); err != nil {
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Delete removes the category and every activity filed under it, unless
// any of those activities has records or is being timed.
func (c *Categories) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if _, err := c.store.GetCategory(ctx, id); err != nil {
		c.log.Error("delete category", zap.String("cid", id), zap.Error(err))
		return DeleteSuccess, fmt.Errorf("delete category: %w", err)
	}
	acts, err := c.store.ListActivitiesByCategory(ctx, c.uid, id)
	if err != nil {
		return DeleteSuccess, fmt.Errorf("delete category: %w", err)
	}
	for _, a := range acts {
		n, err := c.store.CountRecords(ctx, c.uid, a.ID)
		if err != nil {
			return DeleteSuccess, fmt.Errorf("delete category: %w", err)
		}
		if n > 0 {
			return DeleteHasRecords, nil
		}
	}
	aids := make([]string, len(acts))
	for i, a := range acts {
		aids[i] = a.ID
	}
	busy, err := c.timing(ctx, aids...)
	if err != nil {
		return DeleteSuccess, fmt.Errorf("delete category: %w", err)
	}
	if busy {
		return DeleteInUse, nil
	}

	b := c.store.Batch()
	for _, a := range acts {
		b.DeleteActivity(a.ID)
		if err := c.cache.OnActivityDeleted(ctx, b, a.ID); err != nil {
			return DeleteSuccess, err
		}
	}
	b.DeleteCategory(id)
	if err := c.cache.OnCategoryDeleted(ctx, b, id); err != nil {
		return DeleteSuccess, err
	}
	if err := b.Commit(ctx); err != nil {
		return DeleteSuccess, fmt.Errorf("delete category: %w", err)
	}
	return DeleteSuccess, nil
}

func (c *Categories) MoveUp(ctx context.Context, id string) error {
	return c.move(ctx, id, true)
}

func (c *Categories) MoveDown(ctx context.Context, id string) error {
	return c.move(ctx, id, false)
}

// move places the category halfway between its new neighbours. When the
// gap is too narrow to split, every category is renumbered first, in the
// same batch.
func (c *Categories) move(ctx context.Context, id string, up bool) error {
	cats, err := c.List(ctx)
	if err != nil {
		return fmt.Errorf("move category: %w", err)
	}
	idx := -1
	for i, cat := range cats {
		if cat.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.log.Error("move category", zap.String("cid", id), zap.Error(store.ErrNotFound))
		return fmt.Errorf("move category %s: %w", id, store.ErrNotFound)
	}
	if (up && idx == 0) || (!up && idx == len(cats)-1) {
		return nil
	}

	orders := make([]float64, len(cats))
	for i, cat := range cats {
		orders[i] = cat.Order
	}
	mid, ok := midpoint(orders, idx, up)
	if !ok {
		c.log.Info("renumbering categories", zap.Int("count", len(cats)))
		for i := range orders {
			orders[i] = float64((i + 1) * renumberSpacing)
		}
		mid, _ = midpoint(orders, idx, up)
	}
	orders[idx] = mid

	b := c.store.Batch()
	for i, before := range cats {
		if orders[i] == before.Order {
			continue
		}
		after := before
		after.Order = orders[i]
		b.UpdateCategory(after)
		if err := c.cache.OnCategoryUpdated(ctx, b, before, after); err != nil {
			return err
		}
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("move category: %w", err)
	}
	return nil
}

// midpoint computes the order for moving orders[idx] one step. ok is false
// when the result would not fall strictly between its new neighbours.
func midpoint(orders []float64, idx int, up bool) (mid float64, ok bool) {
	var lo, hi float64
	if up {
		hi = orders[idx-1]
		if idx-2 >= 0 {
			lo = orders[idx-2]
		} else if hi <= 0 {
			lo = hi - 2
		}
	} else {
		lo = orders[idx+1]
		if idx+2 < len(orders) {
			hi = orders[idx+2]
		} else {
			hi = lo + 2
		}
	}
	mid = (lo + hi) / 2
	return mid, hi-lo >= minOrderGap && lo < mid && mid < hi
}
