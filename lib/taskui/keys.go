// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the board's key bindings.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	SwitchColumn key.Binding

	ToggleSort   key.Binding
	CycleStatus  key.Binding
	Search       key.Binding
	SearchCancel key.Binding
	Refresh      key.Binding

	// Mutations. Ignored unless the selected task may be changed.
	ToggleStatus key.Binding
	Delete       key.Binding

	Detail key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	SwitchColumn: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "column"),
	),
	ToggleSort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sort"),
	),
	CycleStatus: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "status filter"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	SearchCancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear search"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	ToggleStatus: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("Space", "done/reopen"),
	),
	Delete: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "delete"),
	),
	Detail: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "details"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpBindings is the order bindings appear in the status bar.
func (keys KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		keys.Down, keys.Up, keys.SwitchColumn, keys.ToggleStatus, keys.Delete,
		keys.CycleStatus, keys.ToggleSort, keys.Search, keys.Refresh,
		keys.Detail, keys.Quit,
	}
}
