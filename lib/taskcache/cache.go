// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskcache holds the client's copy of the server's task list.
//
// The [Cache] is the only place task data is read from. It keeps tasks
// in the order the server returned them and never re-sorts. Writers
// replace the whole list after a fetch ([Cache.ReplaceAll]) or apply a
// single server-confirmed record after a mutation ([Cache.Upsert],
// [Cache.Remove]). Each write is atomic: readers see the list before
// or after it, never in between.
//
// ReplaceAll takes the sequence number of the fetch that produced the
// list and refuses lists from fetches older than the last one applied,
// so a slow response cannot overwrite a fresher one.
package taskcache

import (
	"slices"
	"sync"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

// ChangeKind identifies a cache write.
type ChangeKind int

const (
	Replaced ChangeKind = iota + 1
	Upserted
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Replaced:
		return "replaced"
	case Upserted:
		return "upserted"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes one applied write.
type Change struct {
	Kind ChangeKind

	// Sequence is the fetch sequence for Replaced, zero otherwise.
	Sequence uint64

	// TaskID is the affected task for Upserted and Removed.
	TaskID string

	// Len is the number of tasks after the write.
	Len int
}

// Cache is an ordered, id-unique task collection. The zero value is
// not usable; call New.
type Cache struct {
	mu          sync.RWMutex
	tasks       []schema.Task
	index       map[string]int
	applied     uint64
	subscribers map[int]func(Change)
	nextID      int
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		index:       make(map[string]int),
		subscribers: make(map[int]func(Change)),
	}
}

// ReplaceAll replaces the whole collection with tasks, in order. It
// returns false, changing nothing, when sequence is older than the
// last applied sequence. Equal sequences are accepted so a refetch of
// the same request can be reapplied. Duplicate ids keep the position
// of their first occurrence and the value of their last.
func (c *Cache) ReplaceAll(sequence uint64, tasks []schema.Task) bool {
	c.mu.Lock()
	if sequence < c.applied {
		c.mu.Unlock()
		return false
	}
	replacement := make([]schema.Task, 0, len(tasks))
	index := make(map[string]int, len(tasks))
	for _, task := range tasks {
		if position, exists := index[task.ID]; exists {
			replacement[position] = task
			continue
		}
		index[task.ID] = len(replacement)
		replacement = append(replacement, task)
	}
	c.tasks = replacement
	c.index = index
	c.applied = sequence
	change := Change{Kind: Replaced, Sequence: sequence, Len: len(replacement)}
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	deliver(callbacks, change)
	return true
}

// Upsert replaces the task with task.ID in place, or appends it.
func (c *Cache) Upsert(task schema.Task) {
	c.mu.Lock()
	if position, exists := c.index[task.ID]; exists {
		c.tasks[position] = task
	} else {
		c.index[task.ID] = len(c.tasks)
		c.tasks = append(c.tasks, task)
	}
	change := Change{Kind: Upserted, TaskID: task.ID, Len: len(c.tasks)}
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	deliver(callbacks, change)
}

// Remove deletes the task with id. It reports whether one was present;
// removing an absent id changes nothing and notifies no one.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	position, exists := c.index[id]
	if !exists {
		c.mu.Unlock()
		return false
	}
	c.tasks = slices.Delete(c.tasks, position, position+1)
	delete(c.index, id)
	for i := position; i < len(c.tasks); i++ {
		c.index[c.tasks[i].ID] = i
	}
	change := Change{Kind: Removed, TaskID: id, Len: len(c.tasks)}
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	deliver(callbacks, change)
	return true
}

// Snapshot returns a copy of the collection in order.
func (c *Cache) Snapshot() []schema.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tasks)
}

// Get returns the task with id.
func (c *Cache) Get(id string) (schema.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	position, exists := c.index[id]
	if !exists {
		return schema.Task{}, false
	}
	return c.tasks[position], true
}

// Len returns the number of tasks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

// AppliedSequence returns the sequence of the last accepted ReplaceAll.
func (c *Cache) AppliedSequence() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applied
}

// Partition splits the collection by status, preserving order. Every
// task lands in exactly one of the two slices.
func (c *Cache) Partition() (pending, completed []schema.Task) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pending = make([]schema.Task, 0, len(c.tasks))
	completed = make([]schema.Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		if task.Status == schema.StatusCompleted {
			completed = append(completed, task)
		} else {
			pending = append(pending, task)
		}
	}
	return pending, completed
}

// Subscribe registers fn for every subsequent write. Callbacks run
// synchronously after the write is visible, outside the cache lock.
func (c *Cache) Subscribe(fn func(Change)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Cache) callbacksLocked() []func(Change) {
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	callbacks := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, c.subscribers[id])
	}
	return callbacks
}

func deliver(callbacks []func(Change), change Change) {
	for _, callback := range callbacks {
		callback(change)
	}
}
