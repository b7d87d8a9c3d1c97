// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/tasklist/lib/secret"
)

// ErrNoCredential is returned by [Store.Get] when nothing is stored.
var ErrNoCredential = errors.New("credential: no credential stored")

// Store persists a single opaque credential. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the stored credential, or an error wrapping
	// ErrNoCredential when none is stored.
	Get() (string, error)

	// Set replaces the stored credential. Empty credentials are rejected.
	Set(credential string) error

	// Clear removes the stored credential. Clearing an empty store is
	// not an error.
	Clear() error
}

// Fingerprint returns a short, stable digest of a credential for logs
// and diagnostics. It is not reversible and carries no claim data.
func Fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(credential))
	return "blake3:" + hex.EncodeToString(sum[:8])
}

// MemoryStore is a [Store] that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	buffer *secret.Buffer
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return "", ErrNoCredential
	}
	return s.buffer.String(), nil
}

func (s *MemoryStore) Set(credential string) error {
	if credential == "" {
		return fmt.Errorf("credential: refusing to store an empty credential")
	}
	buffer, err := secret.NewFromString(credential)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}
	s.mu.Lock()
	previous := s.buffer
	s.buffer = buffer
	s.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	previous := s.buffer
	s.buffer = nil
	s.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
	return nil
}
