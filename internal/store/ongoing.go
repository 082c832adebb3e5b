package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sadopc/sumtimer/internal/timeutil"
)

// SetOngoing writes the user's live session, replacing any previous one.
func (b *Batch) SetOngoing(o Ongoing) {
	var cur sql.NullInt64
	if o.CurStart != nil {
		cur = sql.NullInt64{Int64: o.CurStart.UnixMilli(), Valid: true}
	}
	b.exec("set ongoing", Ongoings,
		`INSERT INTO ongoings (uid, aid, cid, rec_start, cur_start, memo, subs, rev)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(uid) DO UPDATE SET
			aid = excluded.aid, cid = excluded.cid, rec_start = excluded.rec_start,
			cur_start = excluded.cur_start, memo = excluded.memo, subs = excluded.subs,
			rev = ongoings.rev + 1`,
		o.UID, o.AID, nullString(o.CID), o.RecStart.UnixMilli(), cur, o.Memo, encodeSpans(o.Subs),
	)
}

func (b *Batch) DeleteOngoing(uid string) {
	b.exec("delete ongoing", Ongoings, `DELETE FROM ongoings WHERE uid = ?`, uid)
}

// ExpectOngoing makes the commit fail with ErrConflict unless the user's
// live session is still at revision rev. A rev of 0 expects no session.
func (b *Batch) ExpectOngoing(uid string, rev int64) {
	b.stage("expect ongoing", Ongoings, func(ctx context.Context, tx *sql.Tx) error {
		var got int64
		err := tx.QueryRowContext(ctx, `SELECT rev FROM ongoings WHERE uid = ?`, uid).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			got = 0
		} else if err != nil {
			return err
		}
		if got != rev {
			return ErrConflict
		}
		return nil
	})
}

// GetOngoing returns the user's live session, or nil, nil when idle.
func (s *Store) GetOngoing(ctx context.Context, uid string) (*Ongoing, error) {
	o := &Ongoing{}
	var cid sql.NullString
	var recStart int64
	var cur sql.NullInt64
	var subs string
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, aid, cid, rec_start, cur_start, memo, subs, rev FROM ongoings WHERE uid = ?`, uid,
	).Scan(&o.UID, &o.AID, &cid, &recStart, &cur, &o.Memo, &subs, &o.Rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ongoing: %w", err)
	}
	o.CID = cid.String
	o.RecStart = timeutil.Millis(recStart)
	if cur.Valid {
		t := timeutil.Millis(cur.Int64)
		o.CurStart = &t
	}
	if o.Subs, err = decodeSpans(subs); err != nil {
		return nil, fmt.Errorf("get ongoing: %w", err)
	}
	return o, nil
}
