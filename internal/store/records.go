package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sadopc/sumtimer/internal/timeutil"
)

type frameJSON struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func encodeSpans(spans []timeutil.Span) string {
	frames := make([]frameJSON, len(spans))
	for i, s := range spans {
		frames[i] = frameJSON{Start: s.Start.UnixMilli(), End: s.End.UnixMilli()}
	}
	data, _ := json.Marshal(frames)
	return string(data)
}

func decodeSpans(data string) ([]timeutil.Span, error) {
	var frames []frameJSON
	if err := json.Unmarshal([]byte(data), &frames); err != nil {
		return nil, fmt.Errorf("decode subs: %w", err)
	}
	spans := make([]timeutil.Span, len(frames))
	for i, f := range frames {
		spans[i] = timeutil.Span{Start: timeutil.Millis(f.Start), End: timeutil.Millis(f.End)}
	}
	return spans, nil
}

// recordColumns flattens the interval variant into its stored shape: a
// Split keeps its subs, a Single stores NULL.
func recordColumns(r Record) (start, end int64, subs sql.NullString) {
	bounds := r.Interval.Bounds()
	start, end = bounds.Start.UnixMilli(), bounds.End.UnixMilli()
	if split, ok := r.Interval.(timeutil.Split); ok {
		subs = sql.NullString{String: encodeSpans(split.Subs), Valid: true}
	}
	return start, end, subs
}

func (b *Batch) CreateRecord(r Record) {
	start, end, subs := recordColumns(r)
	b.exec("create record", Records,
		`INSERT INTO records (id, uid, aid, start_at, end_at, duration, subs, memo) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UID, r.AID, start, end, r.Duration, subs, r.Memo,
	)
}

func (b *Batch) UpdateRecord(r Record) {
	start, end, subs := recordColumns(r)
	b.exec("update record", Records,
		`UPDATE records SET aid = ?, start_at = ?, end_at = ?, duration = ?, subs = ?, memo = ? WHERE id = ?`,
		r.AID, start, end, r.Duration, subs, r.Memo, r.ID,
	)
}

func (b *Batch) DeleteRecord(id string) {
	b.exec("delete record", Records, `DELETE FROM records WHERE id = ?`, id)
}

const recordCols = `id, uid, aid, start_at, end_at, duration, subs, memo`

func scanRecord(sc interface{ Scan(...any) error }) (Record, error) {
	var r Record
	var start, end int64
	var subs sql.NullString
	if err := sc.Scan(&r.ID, &r.UID, &r.AID, &start, &end, &r.Duration, &subs, &r.Memo); err != nil {
		return r, err
	}
	if subs.Valid {
		spans, err := decodeSpans(subs.String)
		if err != nil {
			return r, fmt.Errorf("record %s: %w", r.ID, err)
		}
		r.Interval = timeutil.Split{Subs: spans}
	} else {
		r.Interval = timeutil.Single{Span: timeutil.Span{Start: timeutil.Millis(start), End: timeutil.Millis(end)}}
	}
	return r, nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM records WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &r, nil
}

// ListRecords returns matching records, newest first. From/To bound the
// record's overlap with [From, To).
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	query := `SELECT ` + recordCols + ` FROM records WHERE uid = ?`
	args := []any{f.UID}

	if f.AID != "" {
		query += ` AND aid = ?`
		args = append(args, f.AID)
	}
	if f.From != nil {
		query += ` AND end_at > ?`
		args = append(args, f.From.UnixMilli())
	}
	if f.To != nil {
		query += ` AND start_at < ?`
		args = append(args, f.To.UnixMilli())
	}
	query += ` ORDER BY start_at DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CountRecords counts the records logged against aid.
func (s *Store) CountRecords(ctx context.Context, uid, aid string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE uid = ? AND aid = ?`, uid, aid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
