// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

// Theme defines the board's color palette. All colors are ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	StatusPending   lipgloss.Color
	StatusCompleted lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	NoticeSuccess lipgloss.Color
	NoticeFailure lipgloss.Color
	NoticeAuth    lipgloss.Color

	// Background for characters matched by the search.
	SearchHighlightBackground lipgloss.Color

	LinkForeground lipgloss.Color
}

// StatusColor returns the color for status, FaintText when unknown.
func (theme Theme) StatusColor(status schema.Status) lipgloss.Color {
	switch status {
	case schema.StatusPending:
		return theme.StatusPending
	case schema.StatusCompleted:
		return theme.StatusCompleted
	default:
		return theme.FaintText
	}
}

// NoticeColor returns the status bar color for a notice kind.
func (theme Theme) NoticeColor(kind tasksync.NoticeKind) lipgloss.Color {
	switch kind {
	case tasksync.NoticeSuccess:
		return theme.NoticeSuccess
	case tasksync.NoticeAuth:
		return theme.NoticeAuth
	default:
		return theme.NoticeFailure
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StatusPending:   lipgloss.Color("220"), // amber
	StatusCompleted: lipgloss.Color("114"), // green

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	NoticeSuccess: lipgloss.Color("114"),
	NoticeFailure: lipgloss.Color("208"),
	NoticeAuth:    lipgloss.Color("196"),

	SearchHighlightBackground: lipgloss.Color("58"),

	LinkForeground: lipgloss.Color("75"),
}
