// Package app wires the store, aggregate cache, repositories, timer and
// focus bridge for one user.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/sumtimer/internal/cache"
	"github.com/sadopc/sumtimer/internal/config"
	"github.com/sadopc/sumtimer/internal/focus"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"go.uber.org/zap"
)

type Options struct {
	// Now overrides the clock in tests.
	Now      func() time.Time
	WakeLock ongoing.WakeLock
	Tabs     focus.TabController
}

type App struct {
	Store *store.Store
	Cache *cache.Manager
	Repos *repo.Repos
	Timer *ongoing.Timer
	Focus *focus.Bridge
	Log   *zap.Logger

	uid       string
	now       func() time.Time
	stopFocus func()

	mu  sync.Mutex
	cfg config.Config
}

// Open opens the database named by cfg and wires everything on top of it.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	s, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, s, cfg, log, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return a, nil
}

// New wires an App on an open store. Close closes the store.
func New(ctx context.Context, s *store.Store, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WakeLock == nil && len(cfg.WakeLockCommand) > 0 {
		opts.WakeLock = &ongoing.CommandWakeLock{Name: cfg.WakeLockCommand[0], Args: cfg.WakeLockCommand[1:]}
	}

	c := cache.NewManager(s, cfg.UserID, log)
	if err := c.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("prepare aggregate: %w", err)
	}
	repos := repo.NewWithClock(s, c, cfg.UserID, opts.Now, log)
	timer := ongoing.New(s, repos.Records, cfg.UserID, ongoing.Options{
		Now:              opts.Now,
		WakeLock:         opts.WakeLock,
		MaxPauseDuration: cfg.MaxPauseDuration,
		Logger:           log,
	})
	bridge := focus.NewBridge(opts.Tabs, log)
	stop, err := bridge.Watch(ctx, s, cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("watch focus state: %w", err)
	}

	return &App{
		Store:     s,
		Cache:     c,
		Repos:     repos,
		Timer:     timer,
		Focus:     bridge,
		Log:       log,
		uid:       cfg.UserID,
		now:       opts.Now,
		stopFocus: stop,
		cfg:       cfg,
	}, nil
}

func (a *App) UserID() string { return a.uid }

func (a *App) Now() time.Time { return a.now() }

// Config returns the configuration in effect.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) Calendar() timeutil.Calendar { return a.Config().Calendar() }

// ApplyConfig swaps in settings that can change at runtime: the calendar
// and the auto-finish threshold. Storage location and user stay fixed.
func (a *App) ApplyConfig(cfg config.Config) {
	a.mu.Lock()
	if cfg.DataDir != a.cfg.DataDir || cfg.UserID != a.cfg.UserID {
		a.Log.Warn("data_dir and user_id changes need a restart")
	}
	a.cfg.DayStartHour = cfg.DayStartHour
	a.cfg.WeekStart = cfg.WeekStart
	a.cfg.MaxPauseDuration = cfg.MaxPauseDuration
	a.cfg.TickInterval = cfg.TickInterval
	a.mu.Unlock()

	a.Timer.SetMaxPauseDuration(cfg.MaxPauseDuration)
}

// Snapshot projects the live session for display.
func (a *App) Snapshot(ctx context.Context) (ongoing.Snapshot, error) {
	c, err := a.Cache.Get(ctx)
	if err != nil {
		return ongoing.Snapshot{}, err
	}
	return a.Timer.Snapshot(ctx, c)
}

// FindActivity resolves ref as an activity id, then as a case-insensitive
// label. An ambiguous label is an error.
func (a *App) FindActivity(ctx context.Context, ref string) (*store.Activity, error) {
	act, err := a.Repos.Activities.Get(ctx, ref)
	if err == nil {
		if act.UID != a.uid {
			return nil, fmt.Errorf("activity %q: %w", ref, store.ErrNotFound)
		}
		return act, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	acts, err := a.Repos.Activities.List(ctx)
	if err != nil {
		return nil, err
	}
	var found []store.Activity
	for _, candidate := range acts {
		if strings.EqualFold(candidate.Label, ref) {
			found = append(found, candidate)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("activity %q: %w", ref, store.ErrNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("activity %q matches %d activities, use its id", ref, len(found))
	}
}

func (a *App) Close() error {
	if a.stopFocus != nil {
		a.stopFocus()
	}
	return a.Store.Close()
}
