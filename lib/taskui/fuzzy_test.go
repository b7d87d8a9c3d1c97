// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"slices"
	"testing"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

func TestFuzzyMatch(t *testing.T) {
	slab := newSlab()
	tests := []struct {
		text    string
		pattern string
		match   bool
	}{
		{"Buy milk", "milk", true},
		{"Buy milk", "bml", true},
		{"Buy milk", "Bm", true},
		{"Buy milk", "bm", true},
		{"Buy milk", "xyz", false},
		{"Buy milk", "klim", false},
		{"", "a", false},
	}
	for _, test := range tests {
		t.Run(test.text+"/"+test.pattern, func(t *testing.T) {
			result := fuzzyMatch(test.text, []rune(test.pattern), slab)
			if (result.Score > 0) != test.match {
				t.Fatalf("score = %d, want match %v", result.Score, test.match)
			}
			if test.match && !slices.IsSorted(result.Positions) {
				t.Fatalf("positions not ascending: %v", result.Positions)
			}
		})
	}
}

func TestFuzzyMatchSmartCase(t *testing.T) {
	slab := newSlab()
	if fuzzyMatch("buy milk", []rune("Milk"), slab).Score > 0 {
		t.Error("upper-case pattern matched lower-case text")
	}
}

func TestNarrow(t *testing.T) {
	tasks := []schema.Task{
		{ID: "1", Title: "Buy milk"},
		{ID: "2", Title: "Water plants", Description: "the fern needs milkweed tea"},
		{ID: "3", Title: "Fix bike"},
	}
	slab := newSlab()
	if got := narrow(tasks, "", slab); len(got) != 3 {
		t.Fatalf("empty query kept %d tasks", len(got))
	}
	got := narrow(tasks, "milk", slab)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("narrow(milk) = %+v", got)
	}
}
