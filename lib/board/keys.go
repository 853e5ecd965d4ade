// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package board

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings the board model matches incoming key
// presses against. Movement bindings act on whichever pane holds
// focus, the list or the detail viewport.
type KeyMap struct {
	// Movement within the focused pane.
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Pane focus and status tabs.
	FocusToggle   key.Binding
	TabReady      key.Binding
	TabInProgress key.Binding
	TabBlocked    key.Binding
	TabAll        key.Binding

	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap binds vim-style movement alongside the arrow and
// paging keys, with number keys selecting status tabs.
var DefaultKeyMap = KeyMap{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "move up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "move down")),
	PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("C-u", "half page up")),
	PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("C-d", "half page down")),
	Home:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first item")),
	End:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last item")),

	FocusToggle:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "toggle pane")),
	TabReady:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "ready tab")),
	TabInProgress: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "in-progress tab")),
	TabBlocked:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "blocked tab")),
	TabAll:        key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "all tab")),

	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload backlog")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
