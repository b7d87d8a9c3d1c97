// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/tasklist/lib/clock"
	"github.com/bureau-foundation/tasklist/lib/credential"
)

// EventKind identifies a session transition.
type EventKind int

const (
	// Established: a credential decoded and the identity was set or
	// replaced.
	Established EventKind = iota + 1

	// TornDown: the session ended and the credential was cleared.
	TornDown
)

func (k EventKind) String() string {
	switch k {
	case Established:
		return "established"
	case TornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to subscribers on each transition.
type Event struct {
	Kind EventKind

	// Identity is the new identity for Established and the identity
	// that ended for TornDown.
	Identity Identity

	// Reason is the teardown reason. Empty for Established.
	Reason string
}

// Config configures a [Manager].
type Config struct {
	// Store persists the credential. Required.
	Store credential.Store

	// Clock is compared against credential expiry. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// reloader is implemented by stores that cache the credential and can
// be told to re-read it, such as *credential.FileStore.
type reloader interface {
	Reload() error
}

// Manager owns the current identity. It is safe for concurrent use.
// Subscribers must not call Establish, Teardown, Resume or Reload from
// inside their callback.
type Manager struct {
	store  credential.Store
	clock  clock.Clock
	logger *slog.Logger

	// transitionMu serializes transitions together with their event
	// delivery, so subscribers observe events in transition order.
	transitionMu sync.Mutex

	mu            sync.Mutex
	identity      Identity
	authenticated bool
	fingerprint   string
	subscribers   map[int]func(Event)
	nextID        int
}

// NewManager returns an unauthenticated Manager. Call Resume to pick
// up a previously persisted credential.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: credential store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		store:       cfg.Store,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		subscribers: make(map[int]func(Event)),
	}, nil
}

// Establish decodes credential and, on success, persists it and makes
// its identity current. On failure the store is cleared, the previous
// identity (if any) is torn down, and the result is false.
func (m *Manager) Establish(credentialValue string) (Identity, bool) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	return m.establish(credentialValue, true)
}

// Resume establishes from the persisted credential, if any. A persisted
// credential that no longer decodes, or cannot be read, is cleared.
func (m *Manager) Resume() (Identity, bool) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	stored, err := m.store.Get()
	if err != nil {
		if !errors.Is(err, credential.ErrNoCredential) {
			m.logger.Warn("discarding unreadable credential", "error", err)
			if clearErr := m.store.Clear(); clearErr != nil {
				m.logger.Error("clearing unreadable credential", "error", clearErr)
			}
		}
		return Identity{}, false
	}
	return m.establish(stored, false)
}

// Reload re-reads the store after an external change. A removed
// credential tears the session down with reason "signed out"; a
// different credential is established; an unchanged one is a no-op.
func (m *Manager) Reload() (Identity, bool) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	if reloadable, ok := m.store.(reloader); ok {
		if err := reloadable.Reload(); err != nil {
			m.logger.Warn("reloading credential store", "error", err)
		}
	}

	stored, err := m.store.Get()
	if err != nil {
		if !errors.Is(err, credential.ErrNoCredential) {
			m.logger.Warn("credential became unreadable", "error", err)
		}
		m.teardown("signed out")
		return Identity{}, false
	}

	m.mu.Lock()
	unchanged := m.authenticated && m.fingerprint == credential.Fingerprint(stored)
	identity := m.identity
	m.mu.Unlock()
	if unchanged {
		return identity, true
	}
	return m.establish(stored, false)
}

// establish must be called with transitionMu held.
func (m *Manager) establish(credentialValue string, persist bool) (Identity, bool) {
	fingerprint := credential.Fingerprint(credentialValue)

	identity, err := Decode(credentialValue, m.clock.Now())
	if err != nil {
		m.logger.Warn("credential rejected", "fingerprint", fingerprint, "error", err)
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Error("clearing rejected credential", "error", clearErr)
		}
		m.teardown("invalid credential")
		return Identity{}, false
	}

	if persist {
		if err := m.store.Set(credentialValue); err != nil {
			m.logger.Error("persisting credential", "fingerprint", fingerprint, "error", err)
			m.teardown("credential could not be saved")
			return Identity{}, false
		}
	}

	m.mu.Lock()
	m.identity = identity
	m.authenticated = true
	m.fingerprint = fingerprint
	m.mu.Unlock()

	m.logger.Info("session established",
		"subject", identity.SubjectID,
		"fingerprint", fingerprint,
	)
	m.notify(Event{Kind: Established, Identity: identity})
	return identity, true
}

// Current returns the current identity and whether one is set.
func (m *Manager) Current() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.authenticated
}

// Teardown ends the session: the store is cleared, the identity is
// invalidated, and subscribers receive a TornDown event with reason.
// Returns false, emitting nothing, when there was no session to end.
func (m *Manager) Teardown(reason string) bool {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Error("clearing credential during teardown", "error", err)
	}
	return m.teardown(reason)
}

// teardown must be called with transitionMu held. It does not touch
// the store.
func (m *Manager) teardown(reason string) bool {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return false
	}
	ended := m.identity
	m.identity = Identity{}
	m.authenticated = false
	m.fingerprint = ""
	m.mu.Unlock()

	m.logger.Info("session torn down", "subject", ended.SubjectID, "reason", reason)
	m.notify(Event{Kind: TornDown, Identity: ended, Reason: reason})
	return true
}

// Subscribe registers fn for every subsequent event. The returned
// function removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// notify must be called with transitionMu held and mu released.
func (m *Manager) notify(event Event) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	callbacks := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, m.subscribers[id])
	}
	m.mu.Unlock()

	for _, callback := range callbacks {
		callback(event)
	}
}
