// Package livequery keeps an ordered in-memory list in step with a query
// over the store, as a stream of added/modified/removed changes carrying
// stable indices.
package livequery

import (
	"context"
	"sync"

	"github.com/sadopc/sumtimer/internal/store"
)

type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Removed
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes one step. OldIndex is -1 for Added, NewIndex is -1 for
// Removed. Indices refer to the list as it stands when the change applies.
type Change[T any] struct {
	Type     ChangeType
	Key      string
	Doc      T
	OldIndex int
	NewIndex int
}

// Diff returns the changes that turn prev into next. Removals come first,
// then next is walked in order: unseen keys are added at their index, keys
// that moved or changed are modified (removed and reinserted).
func Diff[T any](prev, next []T, key func(T) string, equal func(a, b T) bool) []Change[T] {
	keep := make(map[string]bool, len(next))
	for _, d := range next {
		keep[key(d)] = true
	}

	cur := make([]T, len(prev))
	copy(cur, prev)
	var changes []Change[T]

	for _, d := range prev {
		k := key(d)
		if keep[k] {
			continue
		}
		idx := indexOf(cur, k, key)
		changes = append(changes, Change[T]{Type: Removed, Key: k, Doc: d, OldIndex: idx, NewIndex: -1})
		cur = remove(cur, idx)
	}

	for i, d := range next {
		k := key(d)
		idx := indexOf(cur, k, key)
		switch {
		case idx < 0:
			changes = append(changes, Change[T]{Type: Added, Key: k, Doc: d, OldIndex: -1, NewIndex: i})
			cur = insert(cur, i, d)
		case idx != i || !equal(cur[idx], d):
			changes = append(changes, Change[T]{Type: Modified, Key: k, Doc: d, OldIndex: idx, NewIndex: i})
			cur = insert(remove(cur, idx), i, d)
		}
	}
	return changes
}

// Apply splices changes into items and returns the result.
func Apply[T any](items []T, changes []Change[T]) []T {
	for _, c := range changes {
		switch c.Type {
		case Added:
			items = insert(items, c.NewIndex, c.Doc)
		case Modified:
			if c.OldIndex == c.NewIndex {
				items[c.NewIndex] = c.Doc
				continue
			}
			items = insert(remove(items, c.OldIndex), c.NewIndex, c.Doc)
		case Removed:
			items = remove(items, c.OldIndex)
		}
	}
	return items
}

func indexOf[T any](items []T, k string, key func(T) string) int {
	for i, d := range items {
		if key(d) == k {
			return i
		}
	}
	return -1
}

func remove[T any](items []T, i int) []T {
	return append(items[:i], items[i+1:]...)
}

func insert[T any](items []T, i int, d T) []T {
	var zero T
	items = append(items, zero)
	copy(items[i+1:], items[i:])
	items[i] = d
	return items
}

// Query is a live, ordered view over one store query.
type Query[T any] struct {
	fetch func(ctx context.Context) ([]T, error)
	key   func(T) string
	equal func(a, b T) bool
	on    []store.Collection

	mu    sync.Mutex
	items []T
}

// New builds a query; it refreshes whenever a batch touches one of on.
func New[T any](fetch func(ctx context.Context) ([]T, error), key func(T) string, equal func(a, b T) bool, on ...store.Collection) *Query[T] {
	return &Query[T]{fetch: fetch, key: key, equal: equal, on: on}
}

// Items returns a copy of the current list.
func (q *Query[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Refresh re-runs the query and applies the difference.
func (q *Query[T]) Refresh(ctx context.Context) ([]Change[T], error) {
	next, err := q.fetch(ctx)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	changes := Diff(q.items, next, q.key, q.equal)
	q.items = Apply(q.items, changes)
	return changes, nil
}

// Watch refreshes after every relevant commit and reports the changes to
// fn. Empty change sets are not reported. The returned function stops it.
func (q *Query[T]) Watch(ctx context.Context, s *store.Store, fn func([]Change[T], error)) (stop func()) {
	return s.Subscribe(func(e store.Event) {
		if !q.relevant(e) {
			return
		}
		changes, err := q.Refresh(ctx)
		if err != nil || len(changes) > 0 {
			fn(changes, err)
		}
	})
}

func (q *Query[T]) relevant(e store.Event) bool {
	if len(q.on) == 0 {
		return true
	}
	for _, c := range q.on {
		if e.Has(c) {
			return true
		}
	}
	return false
}
