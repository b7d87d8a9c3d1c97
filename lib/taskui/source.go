// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"context"
	"sync"

	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
	"github.com/bureau-foundation/tasklist/lib/taskcache"
	"github.com/bureau-foundation/tasklist/lib/taskfilter"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

// Source is what the board reads and drives. *tasksync.Engine
// implements it.
type Source interface {
	Cache() *taskcache.Cache
	Filter() *taskfilter.Controller
	Session() *session.Manager
	Profile() (schema.UserProfile, bool)
	CanMutate(task schema.Task) bool
	ToggleStatus(ctx context.Context, id string) (schema.Task, error)
	DeleteTask(ctx context.Context, id string) error
	SubscribeNotices(fn func(tasksync.Notice)) (cancel func())
}

// Compile-time check.
var _ Source = (*tasksync.Engine)(nil)

// event is one message from the bridge to the bubbletea loop. Exactly
// one of the fields is meaningful.
type event struct {
	cacheChanged bool
	notice       *tasksync.Notice
	session      *session.Event
}

// bridge turns component callbacks into a channel the bubbletea loop
// reads. Cache changes coalesce into one pending signal since the
// board re-reads the whole snapshot. Notices and session events are
// queued in order.
type bridge struct {
	changed chan struct{}
	wake    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	queue   []event
	cancels []func()
	closed  bool
}

func newBridge(source Source) *bridge {
	b := &bridge{
		changed: make(chan struct{}, 1),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.cancels = []func(){
		source.Cache().Subscribe(func(taskcache.Change) {
			select {
			case b.changed <- struct{}{}:
			default:
			}
		}),
		source.SubscribeNotices(func(notice tasksync.Notice) {
			b.enqueue(event{notice: &notice})
		}),
		source.Session().Subscribe(func(sessionEvent session.Event) {
			b.enqueue(event{session: &sessionEvent})
		}),
	}
	return b
}

func (b *bridge) enqueue(e event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// next blocks until an event is available or the bridge is closed.
// Queued notices and session events are delivered before a pending
// cache signal.
func (b *bridge) next() (event, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			e := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return e, true
		}
		b.mu.Unlock()

		select {
		case <-b.done:
			return event{}, false
		case <-b.wake:
		case <-b.changed:
			return event{cacheChanged: true}, true
		}
	}
}

func (b *bridge) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	cancels := b.cancels
	b.cancels = nil
	close(b.done)
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
