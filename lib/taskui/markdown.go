// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// wrapBreakpoints are the characters ansi.Wrap may break after in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

// renderMarkdown renders a task description for the terminal, wrapped
// to width. Soft line breaks reflow; code blocks keep their lines.
func renderMarkdown(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	// The board always draws to a terminal, so the color profile is
	// forced rather than detected from the output stream.
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)

	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))
	writer := &markdownWriter{source: source, theme: theme, styles: renderer}

	var blocks []string
	for child := document.FirstChild(); child != nil; child = child.NextSibling() {
		if block := writer.block(child, width); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

type markdownWriter struct {
	source []byte
	theme  Theme
	styles *lipgloss.Renderer
}

func (writer *markdownWriter) style() lipgloss.Style {
	return writer.styles.NewStyle()
}

// block renders one block node to width.
func (writer *markdownWriter) block(node ast.Node, width int) string {
	switch node := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return ansi.Wrap(writer.inline(node), width, wrapBreakpoints)

	case *ast.Heading:
		content := ansi.Strip(writer.inline(node))
		style := writer.style().Bold(true).Foreground(writer.theme.NormalText)
		if node.Level <= 2 {
			style = style.Foreground(writer.theme.HeaderForeground)
		}
		return ansi.Wrap(style.Render(content), width, wrapBreakpoints)

	case *ast.FencedCodeBlock:
		return writer.code(writer.lines(node), string(node.Language(writer.source)))

	case *ast.CodeBlock:
		return writer.code(writer.lines(node), "")

	case *ast.Blockquote:
		bar := writer.style().Foreground(writer.theme.BorderColor).Render("│ ")
		return indent(writer.children(node, width-2, "\n"), bar, bar)

	case *ast.List:
		return writer.list(node, width)

	case *ast.ThematicBreak:
		return writer.style().Foreground(writer.theme.BorderColor).Render(strings.Repeat("─", width))

	case *ast.HTMLBlock:
		return writer.style().Foreground(writer.theme.FaintText).Render(strings.TrimSpace(writer.lines(node)))

	default:
		return writer.children(node, width, "\n\n")
	}
}

// children renders each child block and joins them with separator.
func (writer *markdownWriter) children(node ast.Node, width int, separator string) string {
	var parts []string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if part := writer.block(child, width); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, separator)
}

func (writer *markdownWriter) list(list *ast.List, width int) string {
	separator := "\n"
	if !list.IsTight {
		separator = "\n\n"
	}
	number := list.Start
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		bullet := "• "
		if list.IsOrdered() {
			bullet = fmt.Sprintf("%d. ", number)
			number++
		}
		continuation := strings.Repeat(" ", ansi.StringWidth(bullet))
		body := writer.children(item, width-len(continuation), "\n")
		items = append(items, indent(body, bullet, continuation))
	}
	return strings.Join(items, separator)
}

func (writer *markdownWriter) code(code, language string) string {
	code = strings.TrimRight(code, "\n")
	if language != "" {
		var highlighted strings.Builder
		if err := quick.Highlight(&highlighted, code, language, "terminal256", "monokai"); err == nil {
			return strings.TrimRight(highlighted.String(), "\n")
		}
	}
	return writer.style().Foreground(writer.theme.FaintText).Render(code)
}

func (writer *markdownWriter) lines(node ast.Node) string {
	var builder strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		builder.Write(segment.Value(writer.source))
	}
	return builder.String()
}

// inlineState is the emphasis in effect while walking inline nodes.
type inlineState struct {
	bold          bool
	italic        bool
	strikethrough bool
}

func (writer *markdownWriter) inline(node ast.Node) string {
	var builder strings.Builder
	writer.inlineChildren(&builder, node, inlineState{})
	return builder.String()
}

func (writer *markdownWriter) inlineChildren(builder *strings.Builder, node ast.Node, state inlineState) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		writer.inlineNode(builder, child, state)
	}
}

func (writer *markdownWriter) inlineNode(builder *strings.Builder, node ast.Node, state inlineState) {
	faint := writer.style().Foreground(writer.theme.FaintText)
	switch node := node.(type) {
	case *ast.Text:
		builder.WriteString(writer.styled(string(node.Segment.Value(writer.source)), state))
		switch {
		case node.HardLineBreak():
			builder.WriteString("\n")
		case node.SoftLineBreak():
			builder.WriteString(" ")
		}

	case *ast.String:
		builder.WriteString(writer.styled(string(node.Value), state))

	case *ast.Emphasis:
		if node.Level >= 2 {
			state.bold = true
		} else {
			state.italic = true
		}
		writer.inlineChildren(builder, node, state)

	case *extast.Strikethrough:
		state.strikethrough = true
		writer.inlineChildren(builder, node, state)

	case *ast.CodeSpan:
		var code strings.Builder
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if segment, ok := child.(*ast.Text); ok {
				code.Write(segment.Segment.Value(writer.source))
			}
		}
		builder.WriteString(faint.Render(code.String()))

	case *ast.Link:
		writer.inlineChildren(builder, node, state)
		if destination := string(node.Destination); destination != "" {
			builder.WriteString(" " + faint.Render("("+destination+")"))
		}

	case *ast.AutoLink:
		link := writer.style().Foreground(writer.theme.LinkForeground)
		builder.WriteString(link.Render(string(node.URL(writer.source))))

	case *ast.Image:
		builder.WriteString(faint.Render("[" + ansi.Strip(writer.inline(node)) + "]"))

	case *extast.TaskCheckBox:
		if node.IsChecked {
			builder.WriteString(writer.style().Foreground(writer.theme.StatusCompleted).Render("[x]") + " ")
		} else {
			builder.WriteString(writer.styled("[ ] ", state))
		}

	case *ast.RawHTML:
		// Inline HTML is dropped.

	default:
		writer.inlineChildren(builder, node, state)
	}
}

func (writer *markdownWriter) styled(content string, state inlineState) string {
	return writer.style().
		Foreground(writer.theme.NormalText).
		Bold(state.bold).
		Italic(state.italic).
		Strikethrough(state.strikethrough).
		Render(content)
}

// indent prefixes the first line of content with first and every
// following line with rest.
func indent(content, first, rest string) string {
	lines := strings.Split(content, "\n")
	for index, line := range lines {
		if index == 0 {
			lines[index] = first + line
		} else {
			lines[index] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}
