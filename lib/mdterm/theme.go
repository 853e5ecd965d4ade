// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package mdterm

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette for rendered markdown. All colors are
// lipgloss ANSI 256 codes so output works on any 256-color terminal.
type Theme struct {
	// Body text.
	Text lipgloss.Color

	// De-emphasized text: code spans, URLs, unhighlighted code.
	Faint lipgloss.Color

	// Level 1 and 2 headings. Deeper headings render bold in Text.
	Heading lipgloss.Color

	// Horizontal rules and table header separators.
	Rule lipgloss.Color

	// Checked task-list boxes.
	Done lipgloss.Color
}

// DefaultTheme is a dark-terminal palette. It matches the board TUI
// so `show` output and the board detail pane look the same.
var DefaultTheme = Theme{
	Text:    lipgloss.Color("252"),
	Faint:   lipgloss.Color("245"),
	Heading: lipgloss.Color("255"),
	Rule:    lipgloss.Color("240"),
	Done:    lipgloss.Color("114"),
}
