package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sadopc/sumtimer/internal/timeutil"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (b *Batch) CreateActivity(a Activity) {
	b.exec("create activity", Activities,
		`INSERT INTO activities (id, uid, label, cid, updated) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UID, a.Label, nullString(a.CID), a.Updated.UnixMilli(),
	)
}

func (b *Batch) UpdateActivity(a Activity) {
	b.exec("update activity", Activities,
		`UPDATE activities SET label = ?, cid = ?, updated = ? WHERE id = ?`,
		a.Label, nullString(a.CID), a.Updated.UnixMilli(), a.ID,
	)
}

func (b *Batch) DeleteActivity(id string) {
	b.exec("delete activity", Activities, `DELETE FROM activities WHERE id = ?`, id)
}

const activityCols = `id, uid, label, cid, updated`

func scanActivity(sc interface{ Scan(...any) error }) (Activity, error) {
	var a Activity
	var cid sql.NullString
	var updated int64
	if err := sc.Scan(&a.ID, &a.UID, &a.Label, &cid, &updated); err != nil {
		return a, err
	}
	a.CID = cid.String
	a.Updated = timeutil.Millis(updated)
	return a, nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (*Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityCols+` FROM activities WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", id, err)
	}
	return &a, nil
}

// ListActivities returns the user's activities, most recently used first.
func (s *Store) ListActivities(ctx context.Context, uid string) ([]Activity, error) {
	return s.queryActivities(ctx,
		`SELECT `+activityCols+` FROM activities WHERE uid = ? ORDER BY updated DESC, id`, uid,
	)
}

// ListActivitiesByCategory returns the activities filed under cid.
func (s *Store) ListActivitiesByCategory(ctx context.Context, uid, cid string) ([]Activity, error) {
	return s.queryActivities(ctx,
		`SELECT `+activityCols+` FROM activities WHERE uid = ? AND cid = ? ORDER BY updated DESC, id`, uid, cid,
	)
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var acts []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}
