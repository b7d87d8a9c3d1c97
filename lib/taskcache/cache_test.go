// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskcache

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

func task(id, title string, status schema.Status) schema.Task {
	return schema.Task{ID: id, Title: title, Status: status, CreatedBy: schema.Ref("u1")}
}

func ids(tasks []schema.Task) []string {
	result := make([]string, len(tasks))
	for i, task := range tasks {
		result[i] = task.ID
	}
	return result
}

func TestReplaceAllPreservesOrder(t *testing.T) {
	cache := New()
	given := []schema.Task{
		task("c", "third", schema.StatusPending),
		task("a", "first", schema.StatusCompleted),
		task("b", "second", schema.StatusPending),
	}
	if !cache.ReplaceAll(1, given) {
		t.Fatal("ReplaceAll rejected the first fetch")
	}
	if got := cache.Snapshot(); !reflect.DeepEqual(got, given) {
		t.Fatalf("Snapshot = %v, want %v", ids(got), ids(given))
	}

	// Total replacement: previous entries are gone.
	cache.ReplaceAll(2, []schema.Task{task("z", "only", schema.StatusPending)})
	if got := ids(cache.Snapshot()); !reflect.DeepEqual(got, []string{"z"}) {
		t.Fatalf("Snapshot after second replace = %v", got)
	}
	if _, ok := cache.Get("a"); ok {
		t.Fatal("Get found a task from the replaced list")
	}
}

func TestReplaceAllRejectsOlderSequence(t *testing.T) {
	cache := New()
	cache.ReplaceAll(5, []schema.Task{task("fresh", "", schema.StatusPending)})

	if cache.ReplaceAll(4, []schema.Task{task("stale", "", schema.StatusPending)}) {
		t.Fatal("ReplaceAll accepted an older sequence")
	}
	if got := ids(cache.Snapshot()); !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Fatalf("stale list was applied: %v", got)
	}
	if !cache.ReplaceAll(5, nil) {
		t.Fatal("ReplaceAll rejected a repeat of the applied sequence")
	}
	if cache.AppliedSequence() != 5 || cache.Len() != 0 {
		t.Fatalf("applied=%d len=%d", cache.AppliedSequence(), cache.Len())
	}
}

func TestReplaceAllCollapsesDuplicateIDs(t *testing.T) {
	cache := New()
	cache.ReplaceAll(1, []schema.Task{
		task("a", "old", schema.StatusPending),
		task("b", "", schema.StatusPending),
		task("a", "new", schema.StatusCompleted),
	})
	snapshot := cache.Snapshot()
	if got := ids(snapshot); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("ids = %v", got)
	}
	if snapshot[0].Title != "new" {
		t.Fatalf("duplicate kept value %q, want the later one", snapshot[0].Title)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	cache := New()
	cache.ReplaceAll(1, []schema.Task{task("a", "a", schema.StatusPending), task("b", "b", schema.StatusPending)})

	cache.Upsert(task("a", "renamed", schema.StatusCompleted))
	cache.Upsert(task("c", "c", schema.StatusPending))
	if got := ids(cache.Snapshot()); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("ids = %v", got)
	}
	if updated, _ := cache.Get("a"); updated.Title != "renamed" {
		t.Fatalf("Upsert did not replace in place: %+v", updated)
	}

	if !cache.Remove("a") {
		t.Fatal("Remove(a) = false")
	}
	if cache.Remove("missing") {
		t.Fatal("Remove(missing) = true")
	}
	if got := ids(cache.Snapshot()); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("ids = %v", got)
	}
	if got, ok := cache.Get("c"); !ok || got.ID != "c" {
		t.Fatal("index not updated after Remove")
	}
}

// TestUpsertRemoveUniqueness checks random upsert/remove sequences
// against a map model: one entry per id, holding the latest value.
func TestUpsertRemoveUniqueness(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		cache := New()
		model := map[string]string{}
		for step := 0; step < 200; step++ {
			id := fmt.Sprintf("t%d", random.IntN(12))
			if random.IntN(3) == 0 {
				cache.Remove(id)
				delete(model, id)
				continue
			}
			title := fmt.Sprintf("v%d", step)
			cache.Upsert(task(id, title, schema.StatusPending))
			model[id] = title
		}

		snapshot := cache.Snapshot()
		if len(snapshot) != len(model) || cache.Len() != len(model) {
			t.Fatalf("round %d: %d cached, %d expected", round, len(snapshot), len(model))
		}
		seen := map[string]bool{}
		for _, cached := range snapshot {
			if seen[cached.ID] {
				t.Fatalf("round %d: duplicate id %s", round, cached.ID)
			}
			seen[cached.ID] = true
			if model[cached.ID] != cached.Title {
				t.Fatalf("round %d: %s has %q, want %q", round, cached.ID, cached.Title, model[cached.ID])
			}
		}
	}
}

func TestPartition(t *testing.T) {
	cache := New()
	cache.ReplaceAll(1, []schema.Task{
		task("p1", "", schema.StatusPending),
		task("c1", "", schema.StatusCompleted),
		task("p2", "", schema.StatusPending),
	})
	pending, completed := cache.Partition()
	if got := ids(pending); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("pending = %v", got)
	}
	if got := ids(completed); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Errorf("completed = %v", got)
	}
	if len(pending)+len(completed) != cache.Len() {
		t.Error("partition dropped or duplicated a task")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	cache := New()
	cache.Upsert(task("a", "original", schema.StatusPending))
	snapshot := cache.Snapshot()
	snapshot[0].Title = "mutated"
	if got, _ := cache.Get("a"); got.Title != "original" {
		t.Fatal("mutating a snapshot changed the cache")
	}
}

func TestSubscribe(t *testing.T) {
	cache := New()
	var changes []Change
	cancel := cache.Subscribe(func(change Change) { changes = append(changes, change) })

	cache.ReplaceAll(3, []schema.Task{task("a", "", schema.StatusPending)})
	cache.ReplaceAll(2, nil) // rejected, no change
	cache.Upsert(task("b", "", schema.StatusPending))
	cache.Remove("missing") // no-op, no change
	cache.Remove("a")
	cancel()
	cache.Upsert(task("c", "", schema.StatusPending))

	want := []Change{
		{Kind: Replaced, Sequence: 3, Len: 1},
		{Kind: Upserted, TaskID: "b", Len: 2},
		{Kind: Removed, TaskID: "a", Len: 1},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("changes = %+v, want %+v", changes, want)
	}
}
