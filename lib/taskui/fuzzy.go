// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

var fuzzyInitOnce sync.Once

// fuzzyResult is one match. Positions are rune offsets into the
// matched text, ascending.
type fuzzyResult struct {
	Score     int
	Positions []int
}

// newSlab returns scratch space for fuzzyMatch. A slab is not safe
// for concurrent use.
func newSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// fuzzyMatch runs fzf's V2 algorithm. The pattern is matched
// case-insensitively unless it contains an upper-case rune (smart
// case). A zero Score means no match.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) fuzzyResult {
	fuzzyInitOnce.Do(func() { algo.Init("default") })
	if len(pattern) == 0 {
		return fuzzyResult{}
	}
	caseSensitive := false
	for _, character := range pattern {
		if unicode.IsUpper(character) {
			caseSensitive = true
			break
		}
	}
	if !caseSensitive {
		pattern = []rune(strings.ToLower(string(pattern)))
	}
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(caseSensitive, true, true, &chars, pattern, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return fuzzyResult{}
	}
	match := fuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = append([]int(nil), (*positions)...)
		slices.Sort(match.Positions)
	}
	return match
}

// narrow keeps the tasks whose title or description fuzzy-matches
// query, in their original order. An empty query keeps everything.
func narrow(tasks []schema.Task, query string, slab *util.Slab) []schema.Task {
	pattern := []rune(strings.TrimSpace(query))
	if len(pattern) == 0 {
		return tasks
	}
	kept := make([]schema.Task, 0, len(tasks))
	for _, task := range tasks {
		if fuzzyMatch(task.Title, pattern, slab).Score > 0 ||
			fuzzyMatch(task.Description, pattern, slab).Score > 0 {
			kept = append(kept, task)
		}
	}
	return kept
}
