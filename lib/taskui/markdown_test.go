// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestRenderMarkdown(t *testing.T) {
	input := "# Groceries\n\nBuy **semi-skimmed**\nmilk from `the shop`.\n\n- eggs\n- [bread](https://example.com)\n\n```go\nfunc main() {}\n```\n"
	rendered := renderMarkdown(input, DefaultTheme, 60)
	plain := ansi.Strip(rendered)

	for _, want := range []string{
		"Groceries",
		"Buy semi-skimmed milk from the shop.",
		"• eggs",
		"• bread (https://example.com)",
		"func main() {}",
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("rendered output missing %q:\n%s", want, plain)
		}
	}
	if rendered == plain {
		t.Error("rendered output carries no styling")
	}
}

func TestRenderMarkdownWraps(t *testing.T) {
	input := strings.Repeat("word ", 40)
	for _, line := range strings.Split(renderMarkdown(input, DefaultTheme, 30), "\n") {
		if width := ansi.StringWidth(line); width > 30 {
			t.Fatalf("line width %d exceeds 30: %q", width, ansi.Strip(line))
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	if got := renderMarkdown("  \n", DefaultTheme, 40); got != "" {
		t.Fatalf("blank description rendered as %q", got)
	}
}
