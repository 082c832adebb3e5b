package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActivityPatch lists the cached activity fields to overwrite; nil fields
// are left alone.
type ActivityPatch struct {
	Label   *string
	CID     *string
	Updated *time.Time
}

func (p ActivityPatch) Empty() bool {
	return p.Label == nil && p.CID == nil && p.Updated == nil
}

// EnsureCache creates an empty cache for uid if none exists.
func (b *Batch) EnsureCache(uid string) {
	b.exec("ensure cache", Caches,
		`INSERT OR IGNORE INTO caches (uid) VALUES (?)`, uid,
	)
}

func (b *Batch) SetCachedCategory(uid, cid string, c CachedCategory) {
	b.exec("set cached category", Caches,
		`INSERT INTO cache_categories (uid, cid, label, color, ord, duration) VALUES (?, ?, ?, ?, ?, ?)`,
		uid, cid, c.Label, c.Color, c.Order, c.Duration,
	)
}

// UpdateCachedCategory overwrites the display fields; duration is kept.
func (b *Batch) UpdateCachedCategory(uid, cid, label, color string, order float64) {
	b.exec("update cached category", Caches,
		`UPDATE cache_categories SET label = ?, color = ?, ord = ? WHERE uid = ? AND cid = ?`,
		label, color, order, uid, cid,
	)
}

func (b *Batch) DeleteCachedCategory(uid, cid string) {
	b.exec("delete cached category", Caches,
		`DELETE FROM cache_categories WHERE uid = ? AND cid = ?`, uid, cid,
	)
}

func (b *Batch) SetCachedActivity(uid, aid string, a CachedActivity) {
	b.exec("set cached activity", Caches,
		`INSERT INTO cache_activities (uid, aid, label, cid, duration, count, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uid, aid, a.Label, nullString(a.CID), a.Duration, a.Count, a.Updated,
	)
}

// UpdateCachedActivity writes only the fields set in p.
func (b *Batch) UpdateCachedActivity(uid, aid string, p ActivityPatch) {
	if p.Empty() {
		return
	}
	var sets []string
	var args []any
	if p.Label != nil {
		sets = append(sets, "label = ?")
		args = append(args, *p.Label)
	}
	if p.CID != nil {
		sets = append(sets, "cid = ?")
		args = append(args, nullString(*p.CID))
	}
	if p.Updated != nil {
		sets = append(sets, "updated = ?")
		args = append(args, p.Updated.UnixMilli())
	}
	args = append(args, uid, aid)
	b.exec("update cached activity", Caches,
		`UPDATE cache_activities SET `+strings.Join(sets, ", ")+` WHERE uid = ? AND aid = ?`,
		args...,
	)
}

func (b *Batch) DeleteCachedActivity(uid, aid string) {
	b.exec("delete cached activity", Caches,
		`DELETE FROM cache_activities WHERE uid = ? AND aid = ?`, uid, aid,
	)
}

// IncrementActivity adds to an activity's totals and to the duration of
// the category it is filed under at commit time. Increments commute, so
// concurrent adds and deletes never need a read-modify-write.
func (b *Batch) IncrementActivity(uid, aid string, duration, count int64) {
	b.stage("increment activity", Caches, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cache_activities SET duration = duration + ?, count = count + ? WHERE uid = ? AND aid = ?`,
			duration, count, uid, aid,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE cache_categories SET duration = duration + ?
			 WHERE uid = ? AND cid = (SELECT cid FROM cache_activities WHERE uid = ? AND aid = ?)`,
			duration, uid, uid, aid,
		)
		return err
	})
}

// MoveActivityDuration shifts an activity's cached duration from one
// category total to another. Either cid may be empty.
func (b *Batch) MoveActivityDuration(uid, aid, fromCID, toCID string) {
	const sub = `COALESCE((SELECT duration FROM cache_activities WHERE uid = ? AND aid = ?), 0)`
	b.stage("move activity duration", Caches, func(ctx context.Context, tx *sql.Tx) error {
		if fromCID != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE cache_categories SET duration = duration - `+sub+` WHERE uid = ? AND cid = ?`,
				uid, aid, uid, fromCID,
			); err != nil {
				return err
			}
		}
		if toCID != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE cache_categories SET duration = duration + `+sub+` WHERE uid = ? AND cid = ?`,
				uid, aid, uid, toCID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceCache swaps the whole cache for c.
func (b *Batch) ReplaceCache(uid string, c *Cache, rebuilt time.Time) {
	b.stage("replace cache", Caches, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO caches (uid, rebuilt) VALUES (?, ?) ON CONFLICT(uid) DO UPDATE SET rebuilt = excluded.rebuilt`,
			uid, rebuilt.UnixMilli(),
		); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM cache_categories WHERE uid = ?`,
			`DELETE FROM cache_activities WHERE uid = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, uid); err != nil {
				return err
			}
		}
		for _, cid := range sortedKeys(c.Categories) {
			cc := c.Categories[cid]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_categories (uid, cid, label, color, ord, duration) VALUES (?, ?, ?, ?, ?, ?)`,
				uid, cid, cc.Label, cc.Color, cc.Order, cc.Duration,
			); err != nil {
				return err
			}
		}
		for _, aid := range sortedKeys(c.Activities) {
			ca := c.Activities[aid]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_activities (uid, aid, label, cid, duration, count, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uid, aid, ca.Label, nullString(ca.CID), ca.Duration, ca.Count, ca.Updated,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetCache loads the user's cache. It returns nil, nil when the user has no
// cache yet.
func (s *Store) GetCache(ctx context.Context, uid string) (*Cache, error) {
	var rebuilt int64
	err := s.db.QueryRowContext(ctx, `SELECT rebuilt FROM caches WHERE uid = ?`, uid).Scan(&rebuilt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache: %w", err)
	}

	c := EmptyCache()

	rows, err := s.db.QueryContext(ctx,
		`SELECT cid, label, color, ord, duration FROM cache_categories WHERE uid = ?`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("get cached categories: %w", err)
	}
	for rows.Next() {
		var cid string
		var cc CachedCategory
		if err := rows.Scan(&cid, &cc.Label, &cc.Color, &cc.Order, &cc.Duration); err != nil {
			rows.Close()
			return nil, err
		}
		c.Categories[cid] = cc
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT aid, label, cid, duration, count, updated FROM cache_activities WHERE uid = ?`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("get cached activities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var aid string
		var cid sql.NullString
		var ca CachedActivity
		if err := rows.Scan(&aid, &ca.Label, &cid, &ca.Duration, &ca.Count, &ca.Updated); err != nil {
			return nil, err
		}
		ca.CID = cid.String
		c.Activities[aid] = ca
	}
	return c, rows.Err()
}
