// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile loads the signed-in user's profile once per identity.
//
// The profile is display data. A failed load is logged and returned to
// the caller but never affects the session; the exception is a 401,
// which the caller handles like any other authentication failure.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
)

// Fetcher retrieves a profile by user id. *taskapi.Client implements it.
type Fetcher interface {
	FetchProfile(ctx context.Context, id string) (schema.UserProfile, error)
}

// Loader caches the profile for the current identity.
type Loader struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	profile schema.UserProfile
	subject string
	loaded  bool
	// generation invalidates loads that were in flight during a Reset
	// or a newer Load.
	generation uint64
}

// NewLoader returns a Loader with no profile.
func NewLoader(fetcher Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// Load fetches the profile for identity. A profile already loaded for
// the same subject is returned without a request.
func (l *Loader) Load(ctx context.Context, identity session.Identity) (schema.UserProfile, error) {
	l.mu.Lock()
	if l.loaded && l.subject == identity.SubjectID {
		profile := l.profile
		l.mu.Unlock()
		return profile, nil
	}
	l.generation++
	generation := l.generation
	l.mu.Unlock()

	profile, err := l.fetcher.FetchProfile(ctx, identity.SubjectID)
	if err != nil {
		l.logger.Warn("loading profile failed", "subject", identity.SubjectID, "error", err)
		return schema.UserProfile{}, fmt.Errorf("profile: loading %s: %w", identity.SubjectID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if generation != l.generation {
		return schema.UserProfile{}, fmt.Errorf("profile: load for %s superseded", identity.SubjectID)
	}
	l.profile = profile
	l.subject = identity.SubjectID
	l.loaded = true
	l.logger.Debug("profile loaded", "subject", identity.SubjectID, "name", profile.Name)
	return profile, nil
}

// Current returns the loaded profile, if any.
func (l *Loader) Current() (schema.UserProfile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profile, l.loaded
}

// Reset forgets the profile. Loads in flight will not store theirs.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profile = schema.UserProfile{}
	l.subject = ""
	l.loaded = false
	l.generation++
}
