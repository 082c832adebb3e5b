package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
	"go.uber.org/zap"
)

const (
	MaxTimeFrames = 20
	MaxMemoLength = 500
)

var (
	ErrNoTimeFrames      = errors.New("record has no time frames")
	ErrInvalidTimeFrame  = errors.New("time frame ends before it starts")
	ErrOverlappingFrames = errors.New("time frames overlap")
	ErrTooManyTimeFrames = fmt.Errorf("record has more than %d time frames", MaxTimeFrames)
	ErrMemoTooLong       = fmt.Errorf("memo is longer than %d characters", MaxMemoLength)
)

// Frames normalizes and checks a list of user-entered time frames: they
// are sorted, zero-length frames are dropped unless nothing else is left,
// what remains must not overlap, and at most MaxTimeFrames may remain.
func Frames(frames []timeutil.Span) ([]timeutil.Span, error) {
	sorted, err := SessionFrames(frames)
	if err != nil {
		return nil, err
	}
	if len(sorted) > MaxTimeFrames {
		return nil, ErrTooManyTimeFrames
	}
	return sorted, nil
}

// SessionFrames is Frames without the frame count limit. A timed session
// gains one frame per pause and must always be finishable.
func SessionFrames(frames []timeutil.Span) ([]timeutil.Span, error) {
	if len(frames) == 0 {
		return nil, ErrNoTimeFrames
	}
	sorted := make([]timeutil.Span, 0, len(frames))
	for _, f := range frames {
		if f.End.Before(f.Start) {
			return nil, ErrInvalidTimeFrame
		}
		if f.End.After(f.Start) {
			sorted = append(sorted, f)
		}
	}
	if len(sorted) == 0 {
		sorted = append(sorted, frames[0])
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start.Before(sorted[i-1].End) {
			return nil, ErrOverlappingFrames
		}
	}
	return sorted, nil
}

// NewRecord builds a record whose duration is the summed length of its
// frames.
func NewRecord(id, uid, aid string, frames []timeutil.Span, memo string) (store.Record, error) {
	frames, err := Frames(frames)
	if err != nil {
		return store.Record{}, err
	}
	return buildRecord(id, uid, aid, frames, memo)
}

// buildRecord assumes frames are already normalized.
func buildRecord(id, uid, aid string, frames []timeutil.Span, memo string) (store.Record, error) {
	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return store.Record{}, ErrMemoTooLong
	}
	iv := timeutil.FromFrames(frames)
	return store.Record{
		ID:       id,
		UID:      uid,
		AID:      aid,
		Interval: iv,
		Duration: timeutil.ComputeDuration(iv).Milliseconds(),
		Memo:     memo,
	}, nil
}

type Records struct {
	base
	activities *Activities
}

func (r *Records) Get(ctx context.Context, id string) (*store.Record, error) {
	return r.store.GetRecord(ctx, id)
}

// List returns the user's records newest first. f.UID is filled in.
func (r *Records) List(ctx context.Context, f store.RecordFilter) ([]store.Record, error) {
	f.UID = r.uid
	return r.store.ListRecords(ctx, f)
}

func (r *Records) Count(ctx context.Context, aid string) (int, error) {
	return r.store.CountRecords(ctx, r.uid, aid)
}

// Add creates a record and marks its activity as just used.
func (r *Records) Add(ctx context.Context, aid string, frames []timeutil.Span, memo string) (*store.Record, error) {
	b := r.store.Batch()
	rec, err := r.Stage(ctx, b, aid, frames, memo)
	if err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("add record: %w", err)
	}
	return rec, nil
}

// Stage is Add without the commit, for callers that need the record to
// land together with other writes.
func (r *Records) Stage(ctx context.Context, b *store.Batch, aid string, frames []timeutil.Span, memo string) (*store.Record, error) {
	frames, err := Frames(frames)
	if err != nil {
		return nil, fmt.Errorf("add record: %w", err)
	}
	return r.stage(ctx, b, aid, frames, memo)
}

// StageSession stages the record of a finished timer session. It accepts
// any number of frames.
func (r *Records) StageSession(ctx context.Context, b *store.Batch, aid string, frames []timeutil.Span, memo string) (*store.Record, error) {
	frames, err := SessionFrames(frames)
	if err != nil {
		return nil, fmt.Errorf("add record: %w", err)
	}
	return r.stage(ctx, b, aid, frames, memo)
}

func (r *Records) stage(ctx context.Context, b *store.Batch, aid string, frames []timeutil.Span, memo string) (*store.Record, error) {
	if _, err := r.store.GetActivity(ctx, aid); err != nil {
		r.log.Error("add record", zap.String("aid", aid), zap.Error(err))
		return nil, fmt.Errorf("add record: %w", err)
	}
	rec, err := buildRecord(store.NewID(), r.uid, aid, frames, memo)
	if err != nil {
		return nil, fmt.Errorf("add record: %w", err)
	}
	if err := r.AddInBatch(ctx, b, rec); err != nil {
		return nil, err
	}
	if err := r.activities.touch(ctx, b, aid, r.now()); err != nil {
		return nil, fmt.Errorf("add record: %w", err)
	}
	return &rec, nil
}

// AddInBatch stages a prepared record without touching its activity.
func (r *Records) AddInBatch(ctx context.Context, b *store.Batch, rec store.Record) error {
	rec.UID = r.uid
	b.CreateRecord(rec)
	return r.cache.OnRecordAdded(ctx, b, rec)
}

func (r *Records) Update(ctx context.Context, id, aid string, frames []timeutil.Span, memo string) (*store.Record, error) {
	before, err := r.store.GetRecord(ctx, id)
	if err != nil {
		r.log.Error("update record", zap.String("rid", id), zap.Error(err))
		return nil, fmt.Errorf("update record: %w", err)
	}
	if _, err := r.store.GetActivity(ctx, aid); err != nil {
		r.log.Error("update record", zap.String("aid", aid), zap.Error(err))
		return nil, fmt.Errorf("update record: %w", err)
	}
	after, err := NewRecord(id, r.uid, aid, frames, memo)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	b := r.store.Batch()
	b.UpdateRecord(after)
	if err := r.cache.OnRecordUpdated(ctx, b, *before, after); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	return &after, nil
}

func (r *Records) Delete(ctx context.Context, id string) error {
	rec, err := r.store.GetRecord(ctx, id)
	if err != nil {
		r.log.Error("delete record", zap.String("rid", id), zap.Error(err))
		return fmt.Errorf("delete record: %w", err)
	}
	b := r.store.Batch()
	b.DeleteRecord(id)
	if err := r.cache.OnRecordDeleted(ctx, b, *rec); err != nil {
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
