// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package board

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/crewplan/crewplan/lib/mdterm"
	"github.com/crewplan/crewplan/lib/schema"
)

// Theme holds the board colors. All values are 256-color palette
// indices so the board looks the same on every terminal the forced
// ANSI256 renderer runs on.
type Theme struct {
	// Text is the default foreground for titles and body text.
	Text lipgloss.Color

	// Faint is used for secondary information: claimants, labels,
	// dependency lists.
	Faint lipgloss.Color

	// SelectedBackground and SelectedForeground style the cursor row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Status colors, one per lifecycle state. Rejected shares the
	// Cancelled color.
	Pending    lipgloss.Color
	InProgress lipgloss.Color
	Blocked    lipgloss.Color
	Done       lipgloss.Color
	Cancelled  lipgloss.Color

	// Priority accents. Medium and low render in Text.
	Critical lipgloss.Color
	High     lipgloss.Color

	// Header colors the active tab label, Border the frame lines,
	// Help the bottom bar.
	Header lipgloss.Color
	Border lipgloss.Color
	Help   lipgloss.Color

	// Markdown styles the task body in the detail pane.
	Markdown mdterm.Theme
}

// DefaultTheme is tuned for dark terminals.
var DefaultTheme = Theme{
	Text:  lipgloss.Color("252"),
	Faint: lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	Pending:    lipgloss.Color("114"),
	InProgress: lipgloss.Color("220"),
	Blocked:    lipgloss.Color("196"),
	Done:       lipgloss.Color("245"),
	Cancelled:  lipgloss.Color("240"),

	Critical: lipgloss.Color("196"),
	High:     lipgloss.Color("208"),

	Header: lipgloss.Color("255"),
	Border: lipgloss.Color("240"),
	Help:   lipgloss.Color("241"),

	Markdown: mdterm.DefaultTheme,
}

// StatusColor returns the color for a lifecycle state.
func (t Theme) StatusColor(status schema.Status) lipgloss.Color {
	switch status {
	case schema.StatusPending:
		return t.Pending
	case schema.StatusInProgress:
		return t.InProgress
	case schema.StatusBlocked:
		return t.Blocked
	case schema.StatusDone:
		return t.Done
	case schema.StatusRejected, schema.StatusCancelled:
		return t.Cancelled
	default:
		return t.Faint
	}
}

// PriorityColor returns the accent color for a priority. Only the two
// urgent levels get an accent so the list stays readable.
func (t Theme) PriorityColor(priority schema.Priority) lipgloss.Color {
	switch priority {
	case schema.PriorityCritical:
		return t.Critical
	case schema.PriorityHigh:
		return t.High
	default:
		return t.Text
	}
}
