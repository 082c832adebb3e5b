// Package ongoing runs the per-user live timer: start, pause, resume,
// boundary corrections, finish into a record, reset, and auto-finish of
// sessions left paused too long.
package ongoing

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"go.uber.org/zap"
)

const (
	DefaultActivityName  = "???"
	DefaultCategoryName  = "Uncategorized"
	DefaultCategoryColor = "#bdbdbd"

	DefaultMaxPauseDuration = 30 * time.Minute
)

type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// StateOf classifies a live session document; nil is Idle.
func StateOf(o *store.Ongoing) State {
	switch {
	case o == nil:
		return Idle
	case o.Running():
		return Running
	default:
		return Paused
	}
}

type Options struct {
	Now              func() time.Time
	WakeLock         WakeLock
	MaxPauseDuration time.Duration
	Logger           *zap.Logger
}

// Timer drives one user's live session. Operations that do not apply to
// the current state return nil without writing anything.
type Timer struct {
	store   *store.Store
	records *repo.Records
	uid     string
	now     func() time.Time
	wake    *wakeScope
	log     *zap.Logger

	mu       sync.Mutex
	maxPause time.Duration
}

func New(s *store.Store, records *repo.Records, uid string, opts Options) *Timer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WakeLock == nil {
		opts.WakeLock = NopWakeLock{}
	}
	if opts.MaxPauseDuration <= 0 {
		opts.MaxPauseDuration = DefaultMaxPauseDuration
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("ongoing")
	return &Timer{
		store:    s,
		records:  records,
		uid:      uid,
		now:      opts.Now,
		wake:     &wakeScope{lock: opts.WakeLock, log: log},
		log:      log,
		maxPause: opts.MaxPauseDuration,
	}
}

// SetMaxPauseDuration changes the auto-finish threshold.
func (t *Timer) SetMaxPauseDuration(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.maxPause = d
	}
}

// Current returns the live session, or nil when idle.
func (t *Timer) Current(ctx context.Context) (*store.Ongoing, error) {
	return t.store.GetOngoing(ctx, t.uid)
}

func (t *Timer) ignore(op string, o *store.Ongoing) error {
	t.log.Debug("ignored", zap.String("op", op), zap.Stringer("state", StateOf(o)))
	return nil
}

// write replaces the session, failing with store.ErrConflict if someone
// else changed it since it was read.
func (t *Timer) write(ctx context.Context, op string, prev *store.Ongoing, next store.Ongoing) error {
	b := t.store.Batch()
	var rev int64
	if prev != nil {
		rev = prev.Rev
	}
	b.ExpectOngoing(t.uid, rev)
	b.SetOngoing(next)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Start begins timing aid. A session on another activity is finished
// first; a session on the same activity is left alone.
func (t *Timer) Start(ctx context.Context, aid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if o != nil && o.AID == aid {
		return t.ignore("start", o)
	}
	act, err := t.store.GetActivity(ctx, aid)
	if err != nil {
		t.log.Error("start", zap.String("aid", aid), zap.Error(err))
		return fmt.Errorf("start: %w", err)
	}
	if o != nil {
		if _, err := t.finish(ctx, o); err != nil {
			return err
		}
	}

	now := t.now()
	if err := t.write(ctx, "start", nil, store.Ongoing{
		UID: t.uid, AID: aid, CID: act.CID, RecStart: now, CurStart: &now,
	}); err != nil {
		return err
	}
	t.log.Info("started", zap.String("aid", aid))
	t.wake.acquire()
	return nil
}

// Pause closes the running span.
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if StateOf(o) != Running {
		return t.ignore("pause", o)
	}
	next := *o
	next.Subs = append(append([]timeutil.Span(nil), o.Subs...), openSpan(o, t.now()))
	next.CurStart = nil
	if err := t.write(ctx, "pause", o, next); err != nil {
		return err
	}
	t.wake.release()
	return nil
}

func (t *Timer) Resume(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if StateOf(o) != Paused {
		return t.ignore("resume", o)
	}
	next := *o
	now := t.now()
	next.CurStart = &now
	if err := t.write(ctx, "resume", o, next); err != nil {
		return err
	}
	t.wake.acquire()
	return nil
}

// UpdateCurStart moves the start of the running span. recStart follows so
// that it stays the earliest instant of the session.
func (t *Timer) UpdateCurStart(ctx context.Context, start time.Time) error {
	return t.edit(ctx, "update current start", func(o *store.Ongoing) bool {
		if !o.Running() {
			return false
		}
		o.CurStart = &start
		return true
	})
}

// UpdateSubStart corrects the start of the i-th finished span.
func (t *Timer) UpdateSubStart(ctx context.Context, i int, start time.Time) error {
	return t.edit(ctx, "update sub start", func(o *store.Ongoing) bool {
		if i < 0 || i >= len(o.Subs) {
			return false
		}
		o.Subs[i].Start = start
		return true
	})
}

// UpdateSubEnd corrects the end of the i-th finished span.
func (t *Timer) UpdateSubEnd(ctx context.Context, i int, end time.Time) error {
	return t.edit(ctx, "update sub end", func(o *store.Ongoing) bool {
		if i < 0 || i >= len(o.Subs) {
			return false
		}
		o.Subs[i].End = end
		return true
	})
}

// edit applies fn to a copy of the session and writes it back if fn
// reports a change and the result can still be finished into a valid
// record.
func (t *Timer) edit(ctx context.Context, op string, fn func(o *store.Ongoing) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if o == nil {
		return t.ignore(op, o)
	}
	next := *o
	next.Subs = append([]timeutil.Span(nil), o.Subs...)
	if !fn(&next) {
		return t.ignore(op, o)
	}
	next.RecStart = earliest(&next)
	if _, err := repo.SessionFrames(Frames(&next, t.now())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return t.write(ctx, op, o, next)
}

func (t *Timer) UpdateMemo(ctx context.Context, memo string) error {
	if utf8.RuneCountInString(memo) > repo.MaxMemoLength {
		return fmt.Errorf("update memo: %w", repo.ErrMemoTooLong)
	}
	return t.edit(ctx, "update memo", func(o *store.Ongoing) bool {
		if o.Memo == memo {
			return false
		}
		o.Memo = memo
		return true
	})
}

// Finish turns the session into a record. The record, its aggregate
// deltas and the removal of the session commit together.
func (t *Timer) Finish(ctx context.Context) (*store.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, t.ignore("finish", o)
	}
	return t.finish(ctx, o)
}

func (t *Timer) finish(ctx context.Context, o *store.Ongoing) (*store.Record, error) {
	defer t.wake.release()

	b := t.store.Batch()
	b.ExpectOngoing(t.uid, o.Rev)
	rec, err := t.records.StageSession(ctx, b, o.AID, Frames(o, t.now()), o.Memo)
	if err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	b.DeleteOngoing(t.uid)
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	t.log.Info("finished",
		zap.String("aid", o.AID),
		zap.String("rid", rec.ID),
		zap.Duration("duration", time.Duration(rec.Duration)*time.Millisecond),
	)
	return rec, nil
}

// Reset discards the session without recording it.
func (t *Timer) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if o == nil {
		return t.ignore("reset", o)
	}
	defer t.wake.release()

	b := t.store.Batch()
	b.ExpectOngoing(t.uid, o.Rev)
	b.DeleteOngoing(t.uid)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	t.log.Info("reset", zap.String("aid", o.AID))
	return nil
}

// Tick finishes a session that has been paused for longer than the
// configured maximum. It is level-triggered: every call re-evaluates.
func (t *Timer) Tick(ctx context.Context) (finished bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, err := t.Current(ctx)
	if err != nil {
		return false, err
	}
	if StateOf(o) != Paused {
		return false, nil
	}
	paused := time.Duration(PausedMillis(o, t.now())) * time.Millisecond
	if paused <= t.maxPause {
		return false, nil
	}
	t.log.Info("auto-finishing stale pause",
		zap.String("aid", o.AID),
		zap.Duration("paused", paused),
		zap.Duration("max", t.maxPause),
	)
	if _, err := t.finish(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

// Run ticks every interval until ctx is done. The wake lock is held while
// the session runs and released when Run returns.
func (t *Timer) Run(ctx context.Context, interval time.Duration) error {
	if o, err := t.Current(ctx); err == nil && StateOf(o) == Running {
		t.wake.acquire()
	}
	defer t.wake.release()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Tick(ctx); err != nil {
				t.log.Warn("tick failed", zap.Error(err))
			}
		}
	}
}
