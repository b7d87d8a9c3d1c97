// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	fake := Fake(epoch)
	if !fake.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), epoch)
	}
	fake.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !fake.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []string
	fake.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	fake.AfterFunc(1*time.Second, func() { order = append(order, "early") })

	fake.Advance(2 * time.Second)
	if len(order) != 1 || order[0] != "early" {
		t.Fatalf("after 2s fired %v, want [early]", order)
	}
	if fake.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", fake.Pending())
	}

	fake.Advance(time.Second)
	if len(order) != 2 || order[1] != "late" {
		t.Fatalf("after 3s fired %v, want [early late]", order)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() on pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop() returned true")
	}
	fake.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeAfterFuncNonPositiveRunsImmediately(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	fake.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Fatal("AfterFunc(0) did not run synchronously")
	}
}
