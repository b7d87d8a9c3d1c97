// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
)

type fakeFetcher struct {
	calls    int
	err      error
	profiles map[string]schema.UserProfile
	// during runs inside FetchProfile, before it returns.
	during func()
}

func (f *fakeFetcher) FetchProfile(_ context.Context, id string) (schema.UserProfile, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return schema.UserProfile{}, f.err
	}
	return f.profiles[id], nil
}

func TestLoadCachesPerSubject(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]schema.UserProfile{
		"u1": {ID: "u1", Name: "Alice"},
		"u2": {ID: "u2", Name: "Bob"},
	}}
	loader := NewLoader(fetcher, nil)

	if _, ok := loader.Current(); ok {
		t.Fatal("new loader has a profile")
	}
	profile, err := loader.Load(context.Background(), session.Identity{SubjectID: "u1"})
	if err != nil || profile.Name != "Alice" {
		t.Fatalf("Load = %+v, %v", profile, err)
	}
	loader.Load(context.Background(), session.Identity{SubjectID: "u1"})
	if fetcher.calls != 1 {
		t.Fatalf("second Load for the same subject fetched again (%d calls)", fetcher.calls)
	}

	profile, _ = loader.Load(context.Background(), session.Identity{SubjectID: "u2"})
	if profile.Name != "Bob" || fetcher.calls != 2 {
		t.Fatalf("Load(u2) = %+v after %d calls", profile, fetcher.calls)
	}
	if current, ok := loader.Current(); !ok || current.ID != "u2" {
		t.Fatalf("Current = %+v, %v", current, ok)
	}
}

func TestLoadFailureKeepsNoProfile(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	loader := NewLoader(fetcher, nil)

	_, err := loader.Load(context.Background(), session.Identity{SubjectID: "u1"})
	if err == nil || !errors.Is(err, fetcher.err) {
		t.Fatalf("Load error = %v, want wrapped fetch error", err)
	}
	if _, ok := loader.Current(); ok {
		t.Fatal("failed load left a profile")
	}
}

func TestResetDiscardsInFlightLoad(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]schema.UserProfile{"u1": {ID: "u1", Name: "Alice"}}}
	loader := NewLoader(fetcher, nil)
	fetcher.during = loader.Reset

	if _, err := loader.Load(context.Background(), session.Identity{SubjectID: "u1"}); err == nil {
		t.Fatal("Load succeeded although Reset ran while it was in flight")
	}
	if _, ok := loader.Current(); ok {
		t.Fatal("in-flight load stored its profile after Reset")
	}
}
