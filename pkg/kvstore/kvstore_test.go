package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/vocadrill/vocadrill/pkg/db"
	"github.com/vocadrill/vocadrill/pkg/internal/testutil"
)

func newSQLStore(t *testing.T) Store {
	t.Helper()
	testutil.SetupTestDB(t)
	return NewSQLStore(db.DB)
}

func runStoreTests(t *testing.T, name string, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run(name+"/GetMissing", func(t *testing.T) {
		store := open(t)
		if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run(name+"/SetGet", func(t *testing.T) {
		store := open(t)
		if err := store.Set(ctx, "word_1", `{"id":"1"}`); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
		value, err := store.Get(ctx, "word_1")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if value != `{"id":"1"}` {
			t.Fatalf("unexpected value %q", value)
		}
	})

	t.Run(name+"/SetOverwrites", func(t *testing.T) {
		store := open(t)
		if err := store.Set(ctx, "k", "old"); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
		if err := store.Set(ctx, "k", "new"); err != nil {
			t.Fatalf("second Set returned error: %v", err)
		}
		value, err := store.Get(ctx, "k")
		if err != nil || value != "new" {
			t.Fatalf("expected overwrite, got %q (err=%v)", value, err)
		}
	})

	t.Run(name+"/MultiSetMultiGet", func(t *testing.T) {
		store := open(t)
		pairs := []Pair{
			{Key: "word_a", Value: "A"},
			{Key: "word_b", Value: "B"},
			{Key: "meaning_c", Value: "C"},
		}
		if err := store.MultiSet(ctx, pairs); err != nil {
			t.Fatalf("MultiSet returned error: %v", err)
		}
		values, err := store.MultiGet(ctx, []string{"word_a", "meaning_c", "absent"})
		if err != nil {
			t.Fatalf("MultiGet returned error: %v", err)
		}
		if len(values) != 2 || values["word_a"] != "A" || values["meaning_c"] != "C" {
			t.Fatalf("unexpected MultiGet result %+v", values)
		}
	})

	t.Run(name+"/RemoveAndMultiRemove", func(t *testing.T) {
		store := open(t)
		if err := store.MultiSet(ctx, []Pair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}}); err != nil {
			t.Fatalf("MultiSet returned error: %v", err)
		}
		if err := store.Remove(ctx, "a"); err != nil {
			t.Fatalf("Remove returned error: %v", err)
		}
		if err := store.MultiRemove(ctx, []string{"b", "c", "never-existed"}); err != nil {
			t.Fatalf("MultiRemove returned error: %v", err)
		}
		keys, err := store.AllKeys(ctx)
		if err != nil {
			t.Fatalf("AllKeys returned error: %v", err)
		}
		if len(keys) != 0 {
			t.Fatalf("expected empty store, got %v", keys)
		}
	})

	t.Run(name+"/AllKeysSorted", func(t *testing.T) {
		store := open(t)
		if err := store.MultiSet(ctx, []Pair{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}); err != nil {
			t.Fatalf("MultiSet returned error: %v", err)
		}
		keys, err := store.AllKeys(ctx)
		if err != nil {
			t.Fatalf("AllKeys returned error: %v", err)
		}
		if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Fatalf("expected sorted keys [a b], got %v", keys)
		}
	})

	t.Run(name+"/EmptyBatches", func(t *testing.T) {
		store := open(t)
		if err := store.MultiSet(ctx, nil); err != nil {
			t.Fatalf("MultiSet(nil) returned error: %v", err)
		}
		if err := store.MultiRemove(ctx, nil); err != nil {
			t.Fatalf("MultiRemove(nil) returned error: %v", err)
		}
	})
}

func TestSQLStore(t *testing.T) {
	runStoreTests(t, "sql", newSQLStore)
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, "memory", func(t *testing.T) Store {
		return NewMemoryStore()
	})
}
