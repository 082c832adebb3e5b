package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

type Activities struct {
	base
}

// List returns activities, most recently used first.
func (a *Activities) List(ctx context.Context) ([]store.Activity, error) {
	return a.store.ListActivities(ctx, a.uid)
}

func (a *Activities) ByCategory(ctx context.Context, cid string) ([]store.Activity, error) {
	return a.store.ListActivitiesByCategory(ctx, a.uid, cid)
}

func (a *Activities) Get(ctx context.Context, id string) (*store.Activity, error) {
	return a.store.GetActivity(ctx, id)
}

func (a *Activities) checkCategory(ctx context.Context, cid string) error {
	if cid == "" {
		return nil
	}
	_, err := a.store.GetCategory(ctx, cid)
	return err
}

// Add creates an activity; cid may be empty for an uncategorized one.
func (a *Activities) Add(ctx context.Context, label, cid string) (*store.Activity, error) {
	if err := a.checkCategory(ctx, cid); err != nil {
		return nil, fmt.Errorf("add activity: %w", err)
	}
	act := store.Activity{ID: store.NewID(), UID: a.uid, Label: label, CID: cid, Updated: a.now()}

	b := a.store.Batch()
	if err := a.AddInBatch(ctx, b, act); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("add activity: %w", err)
	}
	return &act, nil
}

// AddInBatch stages a fully specified activity.
func (a *Activities) AddInBatch(ctx context.Context, b *store.Batch, act store.Activity) error {
	act.UID = a.uid
	b.CreateActivity(act)
	return a.cache.OnActivityAdded(ctx, b, act)
}

func (a *Activities) Update(ctx context.Context, id, label, cid string) error {
	before, err := a.store.GetActivity(ctx, id)
	if err != nil {
		a.log.Error("update activity", zap.String("aid", id), zap.Error(err))
		return fmt.Errorf("update activity: %w", err)
	}
	if err := a.checkCategory(ctx, cid); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	after := *before
	after.Label, after.CID = label, cid
	if after == *before {
		return nil
	}

	b := a.store.Batch()
	b.UpdateActivity(after)
	if err := a.cache.OnActivityUpdated(ctx, b, *before, after); err != nil {
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// touch stages a bump of the activity's last-used time.
func (a *Activities) touch(ctx context.Context, b *store.Batch, id string, t time.Time) error {
	before, err := a.store.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	after := *before
	after.Updated = t
	b.UpdateActivity(after)
	return a.cache.OnActivityUpdated(ctx, b, *before, after)
}

// Delete removes the activity unless it has records or is being timed.
func (a *Activities) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if _, err := a.store.GetActivity(ctx, id); err != nil {
		a.log.Error("delete activity", zap.String("aid", id), zap.Error(err))
		return DeleteSuccess, fmt.Errorf("delete activity: %w", err)
	}
	n, err := a.store.CountRecords(ctx, a.uid, id)
	if err != nil {
		return DeleteSuccess, fmt.Errorf("delete activity: %w", err)
	}
	if n > 0 {
		return DeleteHasRecords, nil
	}
	busy, err := a.timing(ctx, id)
	if err != nil {
		return DeleteSuccess, fmt.Errorf("delete activity: %w", err)
	}
	if busy {
		return DeleteInUse, nil
	}

	b := a.store.Batch()
	b.DeleteActivity(id)
	if err := a.cache.OnActivityDeleted(ctx, b, id); err != nil {
		return DeleteSuccess, err
	}
	if err := b.Commit(ctx); err != nil {
		return DeleteSuccess, fmt.Errorf("delete activity: %w", err)
	}
	return DeleteSuccess, nil
}
