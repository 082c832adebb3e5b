package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

type op struct {
	name string
	coll Collection
	fn   func(ctx context.Context, tx *sql.Tx) error
}

// Batch stages writes across collections and applies them in a single
// transaction: either every staged write lands or none does.
type Batch struct {
	s         *Store
	ops       []op
	committed bool
}

func (s *Store) Batch() *Batch {
	return &Batch{s: s}
}

// Len reports the number of staged writes.
func (b *Batch) Len() int { return len(b.ops) }

func (b *Batch) stage(name string, coll Collection, fn func(ctx context.Context, tx *sql.Tx) error) {
	b.ops = append(b.ops, op{name: name, coll: coll, fn: fn})
}

func (b *Batch) exec(name string, coll Collection, query string, args ...any) {
	b.stage(name, coll, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// Commit applies the staged writes. On any failure the transaction is
// rolled back and the first error is returned.
func (b *Batch) Commit(ctx context.Context) error {
	if b.committed {
		return ErrBatchCommitted
	}
	b.committed = true
	if len(b.ops) == 0 {
		return nil
	}

	tx, err := b.s.beginTxHook()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	touched := map[Collection]bool{}
	for _, o := range b.ops {
		if err := o.fn(ctx, tx); err != nil {
			return fmt.Errorf("batch %s: %w", o.name, err)
		}
		touched[o.coll] = true
	}
	if err := b.s.commitHook(tx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	colls := make([]Collection, 0, len(touched))
	for c := range touched {
		colls = append(colls, c)
	}
	sort.Slice(colls, func(i, j int) bool { return colls[i] < colls[j] })
	b.s.notify(Event{Collections: colls})
	return nil
}

// Subscribe registers fn to run after every successful commit. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(e Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
