// Package repo implements the category, activity and record repositories.
// Every mutation writes the entity and its aggregate delta in one batch.
package repo

import (
	"context"
	"time"

	"github.com/sadopc/sumtimer/internal/cache"
	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

// DeleteResult tells the caller whether a delete went through or was
// refused because dependent records or the live session still use it.
type DeleteResult int

const (
	DeleteSuccess DeleteResult = iota
	DeleteHasRecords
	DeleteInUse
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteSuccess:
		return "deleted"
	case DeleteHasRecords:
		return "has records"
	case DeleteInUse:
		return "in use"
	default:
		return "unknown"
	}
}

type base struct {
	store *store.Store
	cache *cache.Manager
	uid   string
	now   func() time.Time
	log   *zap.Logger
}

// timing reports whether the live session is on any of aids.
func (b base) timing(ctx context.Context, aids ...string) (bool, error) {
	o, err := b.store.GetOngoing(ctx, b.uid)
	if err != nil || o == nil {
		return false, err
	}
	for _, aid := range aids {
		if o.AID == aid {
			return true, nil
		}
	}
	return false, nil
}

type Repos struct {
	Categories *Categories
	Activities *Activities
	Records    *Records
}

// New wires the three repositories for one user.
func New(s *store.Store, c *cache.Manager, uid string, log *zap.Logger) *Repos {
	return NewWithClock(s, c, uid, time.Now, log)
}

func NewWithClock(s *store.Store, c *cache.Manager, uid string, now func() time.Time, log *zap.Logger) *Repos {
	b := base{store: s, cache: c, uid: uid, now: now, log: log.Named("repo")}
	acts := &Activities{base: b}
	return &Repos{
		Categories: &Categories{base: b},
		Activities: acts,
		Records:    &Records{base: b, activities: acts},
	}
}
