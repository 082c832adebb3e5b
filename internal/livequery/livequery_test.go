package livequery

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

type doc struct {
	ID  string
	Val int
}

func key(d doc) string    { return d.ID }
func equal(a, b doc) bool { return a == b }
func clone(d []doc) []doc { return append([]doc(nil), d...) }

func docs(ids ...string) []doc {
	out := make([]doc, len(ids))
	for i, id := range ids {
		out[i] = doc{ID: id}
	}
	return out
}

func TestDiffScenarios(t *testing.T) {
	tests := []struct {
		name  string
		prev  []doc
		next  []doc
		types []ChangeType
	}{
		{"empty to one", nil, docs("a"), []ChangeType{Added}},
		{"one to empty", docs("a"), nil, []ChangeType{Removed}},
		{"unchanged", docs("a", "b"), docs("a", "b"), nil},
		{"insert middle", docs("a", "c"), docs("a", "b", "c"), []ChangeType{Added}},
		{"move last to front", docs("a", "b", "c"), docs("c", "a", "b"), []ChangeType{Modified}},
		{"value change", []doc{{"a", 1}}, []doc{{"a", 2}}, []ChangeType{Modified}},
		{"remove and add", docs("a", "b"), docs("b", "c"), []ChangeType{Removed, Added}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tt.prev, tt.next, key, equal)
			var types []ChangeType
			for _, c := range changes {
				types = append(types, c.Type)
			}
			if diff := cmp.Diff(tt.types, types); diff != "" {
				t.Errorf("change types mismatch (-want +got):\n%s", diff)
			}
			got := Apply(clone(tt.prev), changes)
			if diff := cmp.Diff(tt.next, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("applied list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffIndices(t *testing.T) {
	changes := Diff(docs("a", "b", "c", "d"), docs("d", "a", "c"), key, equal)
	want := []Change[doc]{
		{Type: Removed, Key: "b", Doc: doc{ID: "b"}, OldIndex: 1, NewIndex: -1},
		{Type: Modified, Key: "d", Doc: doc{ID: "d"}, OldIndex: 2, NewIndex: 0},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffApplyConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	randomList := func() []doc {
		perm := rng.Perm(len(pool))
		n := rng.Intn(len(pool) + 1)
		out := make([]doc, n)
		for i := 0; i < n; i++ {
			out[i] = doc{ID: pool[perm[i]], Val: rng.Intn(3)}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		prev, next := randomList(), randomList()
		got := Apply(clone(prev), Diff(prev, next, key, equal))
		if diff := cmp.Diff(next, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("round %d: %v -> %v mismatch (-want +got):\n%s", i, prev, next, diff)
		}
	}
}

func TestQueryWatch(t *testing.T) {
	s, err := store.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	q := New(func(ctx context.Context) ([]store.Activity, error) {
		return s.ListActivities(ctx, "u1")
	}, func(a store.Activity) string { return a.ID },
		func(a, b store.Activity) bool { return a.Label == b.Label && a.CID == b.CID && a.Updated.Equal(b.Updated) },
		store.Activities)

	var seen [][]Change[store.Activity]
	stop := q.Watch(ctx, s, func(c []Change[store.Activity], err error) {
		if err != nil {
			t.Errorf("refresh: %v", err)
		}
		seen = append(seen, c)
	})
	defer stop()

	b := s.Batch()
	b.CreateActivity(store.Activity{ID: "a1", UID: "u1", Label: "Coding", Updated: timeutil.Millis(1)})
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	b = s.Batch()
	b.CreateActivity(store.Activity{ID: "a2", UID: "u1", Label: "Reading", Updated: timeutil.Millis(2)})
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// Unrelated collection: no refresh.
	b = s.Batch()
	b.SetSetting("k", "v")
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if c := seen[1][0]; c.Type != Added || c.Key != "a2" || c.NewIndex != 0 {
		t.Errorf("expected a2 added at 0, got %+v", c)
	}
	items := q.Items()
	if len(items) != 2 || items[0].ID != "a2" || items[1].ID != "a1" {
		t.Fatalf("unexpected items %+v", items)
	}
}
