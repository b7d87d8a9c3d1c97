// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskfilter owns the list filter and sort state.
//
// The [Controller] performs no I/O. Every state change, including one
// that leaves the state as it was, emits exactly one [Request] to its
// subscribers, carrying a strictly increasing sequence number and the
// query to fetch. Whoever subscribes (lib/tasksync.Engine) performs
// the fetch and uses the sequence to discard stale results. Changes
// are never coalesced.
package taskfilter

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

// Field names accepted by SetFilter.
const (
	FieldStatus  = "status"
	FieldDueDate = "dueDate"
)

// Request asks for the task list matching Query.
type Request struct {
	Sequence uint64
	Query    schema.Query
}

// Controller holds the filter and sort state. The initial state is no
// filter, ascending. It is safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	query       schema.Query
	sequence    uint64
	subscribers map[int]func(Request)
	nextID      int
}

// New returns a Controller in the initial state.
func New() *Controller {
	return &Controller{
		query:       schema.Query{Sort: schema.SortAscending},
		subscribers: make(map[int]func(Request)),
	}
}

// Query returns the current state.
func (c *Controller) Query() schema.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Sequence returns the sequence of the most recent Request.
func (c *Controller) Sequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// SetFilter sets one filter field from its wire form. An empty value
// clears the field. Unknown fields and unparseable values return an
// error and emit nothing.
func (c *Controller) SetFilter(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldStatus:
		if value == "" {
			c.SetStatus("")
			return nil
		}
		status, err := schema.ParseStatus(value)
		if err != nil {
			return fmt.Errorf("taskfilter: %w", err)
		}
		c.SetStatus(status)
		return nil
	case FieldDueDate:
		if value == "" {
			c.ClearDueDate()
			return nil
		}
		date, err := schema.ParseDate(value)
		if err != nil {
			return fmt.Errorf("taskfilter: %w", err)
		}
		c.SetDueDate(date)
		return nil
	default:
		return fmt.Errorf("taskfilter: unknown filter field %q (expected %s or %s)", field, FieldStatus, FieldDueDate)
	}
}

// SetStatus filters by status. "" removes the status filter.
func (c *Controller) SetStatus(status schema.Status) {
	c.update(func(query *schema.Query) { query.Status = status })
}

// SetDueDate filters to tasks due on date.
func (c *Controller) SetDueDate(date schema.Date) {
	c.update(func(query *schema.Query) { query.DueDate = date })
}

// ClearDueDate removes the due date filter.
func (c *Controller) ClearDueDate() {
	c.update(func(query *schema.Query) { query.DueDate = schema.Date{} })
}

// SetSort sets the sort direction.
func (c *Controller) SetSort(order schema.SortOrder) {
	c.update(func(query *schema.Query) { query.Sort = order.Normalized() })
}

// ToggleSort flips the sort direction.
func (c *Controller) ToggleSort() {
	c.update(func(query *schema.Query) { query.Sort = query.Sort.Toggled() })
}

// Refresh emits a Request for the current state unchanged.
func (c *Controller) Refresh() {
	c.update(func(*schema.Query) {})
}

// Reset returns to the initial state and emits a Request.
func (c *Controller) Reset() {
	c.update(func(query *schema.Query) { *query = schema.Query{Sort: schema.SortAscending} })
}

// Subscribe registers fn for every subsequent Request. Callbacks run
// synchronously, in subscription order, outside the controller lock.
func (c *Controller) Subscribe(fn func(Request)) (cancel func()) {
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

func (c *Controller) update(mutate func(*schema.Query)) {
	c.mu.Lock()
	mutate(&c.query)
	c.sequence++
	request := Request{Sequence: c.sequence, Query: c.query}

	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	callbacks := make([]func(Request), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, callback := range callbacks {
		callback(request)
	}
}
