// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// fataler is the subset of testing.TB the helpers need.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first.
//
//	event := testutil.RequireReceive(t, events, 5*time.Second, "waiting for teardown")
func RequireReceive[T any](t fataler, ch <-chan T, timeout time.Duration, context ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(context))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(context), timeout)
	}
	var zero T
	return zero
}

// RequireNoReceive fails the test if ch yields a value within wait.
// A closed channel counts as silence.
//
//	testutil.RequireNoReceive(t, notices, 20*time.Millisecond, "no notice after cancel")
func RequireNoReceive[T any](t fataler, ch <-chan T, wait time.Duration, context ...any) {
	t.Helper()
	timer := time.NewTimer(wait) //nolint:realclock bounded negative wait
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if ok {
			t.Fatalf("%s: unexpected %v", describe(context), value)
		}
	case <-timer.C:
	}
}

// RequireClosed fails the test unless ch is closed (or yields) within
// timeout.
//
//	testutil.RequireClosed(t, done, 5*time.Second, "watcher stopped")
func RequireClosed(t fataler, ch <-chan struct{}, timeout time.Duration, context ...any) {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: not closed within %v", describe(context), timeout)
	}
}

// describe renders the optional trailing context: nothing, a single
// value, or a format string with arguments.
func describe(context []any) string {
	switch {
	case len(context) == 0:
		return "wait failed"
	case len(context) == 1:
		return fmt.Sprint(context[0])
	}
	if format, ok := context[0].(string); ok {
		return fmt.Sprintf(format, context[1:]...)
	}
	return fmt.Sprint(context...)
}
