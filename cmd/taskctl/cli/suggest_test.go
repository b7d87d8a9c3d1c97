// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"list", "list", 0},
		{"", "abc", 3},
		{"lsit", "list", 2},
		{"reopen", "reopn", 1},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.String("token-file", "", "")
	flagSet.String("server", "", "")

	if got := suggestFlag([]string{"--tokenfile=x"}, flagSet); got != "--token-file" {
		t.Errorf("suggestFlag = %q", got)
	}
	if got := suggestFlag([]string{"--server", "x", "--completely-different"}, flagSet); got != "" {
		t.Errorf("suggestFlag for a distant name = %q", got)
	}
}
