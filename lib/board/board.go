// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package board renders a read-only terminal dashboard over a backlog
// tree. It shows four tabs (ready, in progress, blocked, all) with a
// list pane on the left and a detail pane for the selected item on the
// right. The board never mutates the backlog; claiming and status
// changes stay on the command line.
package board

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/mdterm"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/scheduler"
)

// Source loads a fresh backlog tree. The board calls it once at
// startup and again on every manual refresh, so implementations should
// re-read from disk rather than return a cached tree.
type Source func() (*plan.Tree, error)

// Tab identifies one of the board views.
type Tab int

const (
	// TabReady lists claimable work in scheduler order: dependencies
	// satisfied, not claimed, bugs ranked first.
	TabReady Tab = iota

	// TabInProgress lists claimed work.
	TabInProgress

	// TabBlocked lists items blocked explicitly plus pending items
	// whose dependencies are not satisfied yet.
	TabBlocked

	// TabAll lists everything in tree order.
	TabAll
)

// Focus names the pane that receives navigation keys.
type Focus int

const (
	FocusList Focus = iota
	FocusDetail
)

// Model is the bubbletea model for the board.
type Model struct {
	source Source
	theme  Theme
	keys   KeyMap
	cfg    scheduler.Config
	lip    *lipgloss.Renderer

	tree *plan.Tree
	calc *scheduler.Calculator

	width  int
	height int
	ready  bool

	activeTab Tab
	focus     Focus

	rows       []*schema.Task
	stats      schema.Stats
	cursor     int
	scroll     int
	selectedID string

	detailID     string
	detailLines  []string
	detailScroll int

	loadError string
}

// New builds a board over the given source. The initial load happens
// here so a broken backlog fails before the terminal enters the
// alternate screen.
func New(source Source, cfg scheduler.Config) (Model, error) {
	lip := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lip.SetColorProfile(termenv.ANSI256)

	m := Model{
		source: source,
		theme:  DefaultTheme,
		keys:   DefaultKeyMap,
		cfg:    cfg,
		lip:    lip,
	}
	if err := m.reload(); err != nil {
		return Model{}, fmt.Errorf("loading backlog: %w", err)
	}
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(message, m.keys.FocusToggle):
			if m.focus == FocusList {
				m.focus = FocusDetail
			} else {
				m.focus = FocusList
			}
		case key.Matches(message, m.keys.TabReady):
			m.switchTab(TabReady)
		case key.Matches(message, m.keys.TabInProgress):
			m.switchTab(TabInProgress)
		case key.Matches(message, m.keys.TabBlocked):
			m.switchTab(TabBlocked)
		case key.Matches(message, m.keys.TabAll):
			m.switchTab(TabAll)
		case key.Matches(message, m.keys.Refresh):
			if err := m.reload(); err != nil {
				m.loadError = err.Error()
			} else {
				m.loadError = ""
			}
		case key.Matches(message, m.keys.Up):
			if m.focus == FocusList {
				m.moveCursor(-1)
			} else {
				m.scrollDetail(-1)
			}
		case key.Matches(message, m.keys.Down):
			if m.focus == FocusList {
				m.moveCursor(1)
			} else {
				m.scrollDetail(1)
			}
		case key.Matches(message, m.keys.PageUp):
			if m.focus == FocusList {
				m.moveCursor(-m.visibleHeight())
			} else {
				m.scrollDetail(-m.visibleHeight())
			}
		case key.Matches(message, m.keys.PageDown):
			if m.focus == FocusList {
				m.moveCursor(m.visibleHeight())
			} else {
				m.scrollDetail(m.visibleHeight())
			}
		case key.Matches(message, m.keys.Home):
			if m.focus == FocusList {
				m.moveCursor(-len(m.rows))
			} else {
				m.scrollDetail(-len(m.detailLines))
			}
		case key.Matches(message, m.keys.End):
			if m.focus == FocusList {
				m.moveCursor(len(m.rows))
			} else {
				m.scrollDetail(len(m.detailLines))
			}
		}
	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.ready = true
		m.syncDetail(true)
		m.ensureCursorVisible()
	}
	return m, nil
}

// reload pulls a fresh tree from the source and rebuilds every derived
// view. On error the previous state stays on screen.
func (m *Model) reload() error {
	tree, err := m.source()
	if err != nil {
		return err
	}
	m.tree = tree
	m.calc = scheduler.New(tree, m.cfg, clock.Real())
	m.rebuildRows()
	m.restoreSelection()
	m.ensureCursorVisible()
	m.syncDetail(true)
	return nil
}

func (m *Model) switchTab(tab Tab) {
	if tab == m.activeTab {
		return
	}
	m.activeTab = tab
	m.rebuildRows()
	m.restoreSelection()
	m.scroll = 0
	m.ensureCursorVisible()
	m.syncDetail(false)
}

// rebuildRows recomputes the row slice for the active tab.
func (m *Model) rebuildRows() {
	m.stats = m.tree.Stats()

	switch m.activeTab {
	case TabReady:
		m.rows = m.calc.Available()
	case TabInProgress:
		m.rows = nil
		for _, task := range m.tree.AllTasks() {
			if task.Status == schema.StatusInProgress {
				m.rows = append(m.rows, task)
			}
		}
	case TabBlocked:
		m.rows = nil
		for _, task := range m.tree.AllTasks() {
			if task.Status == schema.StatusBlocked {
				m.rows = append(m.rows, task)
				continue
			}
			if task.Status == schema.StatusPending && !m.calc.CheckDependencies(task) {
				m.rows = append(m.rows, task)
			}
		}
	case TabAll:
		m.rows = m.tree.AllTasks()
	}
}

// restoreSelection keeps the cursor on the same item across reloads
// and tab switches when it is still visible, otherwise clamps.
func (m *Model) restoreSelection() {
	if m.selectedID != "" {
		for i, task := range m.rows {
			if task.ID == m.selectedID {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < len(m.rows) {
		m.selectedID = m.rows[m.cursor].ID
	} else {
		m.selectedID = ""
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.selectedID = m.rows[m.cursor].ID
	m.ensureCursorVisible()
	m.syncDetail(false)
}

func (m *Model) scrollDetail(delta int) {
	limit := len(m.detailLines) - m.visibleHeight()
	if limit < 0 {
		limit = 0
	}
	m.detailScroll += delta
	if m.detailScroll > limit {
		m.detailScroll = limit
	}
	if m.detailScroll < 0 {
		m.detailScroll = 0
	}
}

func (m *Model) ensureCursorVisible() {
	visible := m.visibleHeight()
	if visible <= 0 {
		return
	}
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	}
	if m.cursor >= m.scroll+visible {
		m.scroll = m.cursor - visible + 1
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}

// syncDetail rebuilds the detail pane when the selection changed, or
// unconditionally when force is set (reload, resize).
func (m *Model) syncDetail(force bool) {
	var task *schema.Task
	if m.cursor < len(m.rows) {
		task = m.rows[m.cursor]
	}
	if task == nil {
		m.detailID = ""
		m.detailLines = nil
		m.detailScroll = 0
		return
	}
	if !force && task.ID == m.detailID {
		return
	}
	m.detailID = task.ID
	m.detailLines = m.detailContent(task, m.detailWidth())
	m.detailScroll = 0
}

// detailContent renders one item into pane lines: identity, metadata,
// then the markdown body.
func (m *Model) detailContent(task *schema.Task, width int) []string {
	if width < 10 {
		width = 10
	}
	idStyle := m.lip.NewStyle().Bold(true).Foreground(m.theme.Header)
	titleStyle := m.lip.NewStyle().Bold(true).Foreground(m.theme.Text)
	labelStyle := m.lip.NewStyle().Foreground(m.theme.Faint)
	statusStyle := m.lip.NewStyle().Foreground(m.theme.StatusColor(task.Status))

	var lines []string
	lines = append(lines, ansi.Truncate(idStyle.Render(task.ID), width, "…"))
	lines = append(lines, ansi.Truncate(titleStyle.Render(task.Title), width, "…"))
	lines = append(lines, "")

	meta := statusStyle.Render(string(task.Status))
	if task.Priority != "" {
		priorityStyle := m.lip.NewStyle().Foreground(m.theme.PriorityColor(task.Priority))
		meta += "  " + priorityStyle.Render(string(task.Priority))
	}
	meta += "  " + labelStyle.Render(fmt.Sprintf("%gh", task.EstimateHours))
	if task.Complexity != "" {
		meta += "  " + labelStyle.Render(string(task.Complexity))
	}
	lines = append(lines, ansi.Truncate(meta, width, "…"))

	if task.Claimed() {
		claimStyle := m.lip.NewStyle().Foreground(m.theme.InProgress)
		lines = append(lines, ansi.Truncate(labelStyle.Render("claimed by ")+claimStyle.Render(task.Claimant), width, "…"))
	}
	if len(task.DependsOn) > 0 {
		deps := labelStyle.Render("depends on " + strings.Join(task.DependsOn, ", "))
		lines = append(lines, ansi.Truncate(deps, width, "…"))
	}
	if task.StatusReason != "" {
		reason := labelStyle.Render("reason: " + task.StatusReason)
		lines = append(lines, ansi.Truncate(reason, width, "…"))
	}

	if body := strings.TrimSpace(task.Body); body != "" {
		lines = append(lines, "")
		rendered := mdterm.Render(body, m.theme.Markdown, width)
		lines = append(lines, strings.Split(rendered, "\n")...)
	}
	return lines
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderList(),
		m.renderDivider(),
		m.renderDetail(),
	)
	sections = append(sections, content)

	border := m.lip.NewStyle().Foreground(m.theme.Border)
	sections = append(sections, border.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderHelp())

	return strings.Join(sections, "\n")
}

var tabDefs = []struct {
	label string
	tab   Tab
}{
	{"1:Ready", TabReady},
	{"2:In Progress", TabInProgress},
	{"3:Blocked", TabBlocked},
	{"4:All", TabAll},
}

// renderHeader draws the tab bar embedded in a horizontal rule with
// the backlog totals on the right.
func (m Model) renderHeader() string {
	border := m.lip.NewStyle().Foreground(m.theme.Border)
	active := m.lip.NewStyle().Bold(true).Foreground(m.theme.Header)
	inactive := m.lip.NewStyle().Foreground(m.theme.Faint)

	dash := border.Render("─")

	left := dash + dash + dash
	used := 3
	for _, def := range tabDefs {
		style := inactive
		if m.activeTab == def.tab {
			style = active
		}
		left += " " + style.Render(def.label) + " " + dash
		used += len(def.label) + 3
	}

	stats := fmt.Sprintf("%d shown  %d pending  %d active  %d done",
		len(m.rows), m.stats.Pending, m.stats.InProgress, m.stats.Done)
	right := " " + inactive.Render(stats) + " " + dash
	rightWidth := len(stats) + 3

	fill := m.width - used - rightWidth
	if fill < 1 {
		fill = 1
	}
	return left + border.Render(strings.Repeat("─", fill)) + right
}

func (m Model) renderList() string {
	width := m.listWidth()
	visible := m.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	idWidth := 0
	for _, task := range m.rows {
		if len(task.ID) > idWidth {
			idWidth = len(task.ID)
		}
	}

	var rows []string
	if len(m.rows) == 0 {
		empty := m.lip.NewStyle().Foreground(m.theme.Faint).Render("Nothing on this tab.")
		rows = append(rows, ansi.Truncate(empty, width, "…"))
	}
	for i := m.scroll; i < m.scroll+visible && i < len(m.rows); i++ {
		rows = append(rows, m.renderRow(m.rows[i], width, idWidth, i == m.cursor))
	}
	for len(rows) < visible {
		rows = append(rows, "")
	}

	return m.lip.NewStyle().Width(width).Height(visible).Render(strings.Join(rows, "\n"))
}

func (m Model) renderRow(task *schema.Task, width, idWidth int, selected bool) string {
	icon := statusIcon(task.Status)
	id := fmt.Sprintf("%-*s", idWidth, task.ID)

	if selected {
		line := icon + " " + id + "  " + task.Title
		if task.Claimed() {
			line += "  @" + task.Claimant
		}
		style := m.lip.NewStyle().
			Bold(true).
			Background(m.theme.SelectedBackground).
			Foreground(m.theme.SelectedForeground)
		return style.Width(width).Render(ansi.Truncate(line, width, "…"))
	}

	iconStyle := m.lip.NewStyle().Foreground(m.theme.StatusColor(task.Status))
	idStyle := m.lip.NewStyle().Foreground(m.theme.PriorityColor(task.Priority))
	titleStyle := m.lip.NewStyle().Foreground(m.theme.Text)

	line := iconStyle.Render(icon) + " " + idStyle.Render(id) + "  " + titleStyle.Render(task.Title)
	if task.Claimed() {
		line += m.lip.NewStyle().Foreground(m.theme.Faint).Render("  @" + task.Claimant)
	}
	return ansi.Truncate(line, width, "…")
}

func (m Model) renderDivider() string {
	visible := m.visibleHeight()
	if visible < 1 {
		visible = 1
	}
	line := m.lip.NewStyle().Foreground(m.theme.Border).Render("│")
	column := make([]string, visible)
	for i := range column {
		column[i] = line
	}
	return strings.Join(column, "\n")
}

func (m Model) renderDetail() string {
	width := m.detailWidth()
	visible := m.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	var rows []string
	for i := m.detailScroll; i < m.detailScroll+visible && i < len(m.detailLines); i++ {
		rows = append(rows, m.detailLines[i])
	}
	for len(rows) < visible {
		rows = append(rows, "")
	}

	return m.lip.NewStyle().Width(width).Height(visible).Render(strings.Join(rows, "\n"))
}

func (m Model) renderHelp() string {
	pane := "LIST"
	if m.focus == FocusDetail {
		pane = "DETAIL"
	}
	help := fmt.Sprintf(" [%s] q quit  j/k move  Tab focus  r refresh  1-4 tabs", pane)
	if len(m.rows) > 0 && m.cursor < len(m.rows) {
		help += fmt.Sprintf("  %d/%d", m.cursor+1, len(m.rows))
	}

	rendered := m.lip.NewStyle().Foreground(m.theme.Help).Render(help)
	if m.loadError != "" {
		errorStyle := m.lip.NewStyle().Bold(true).Foreground(m.theme.Blocked)
		rendered += "  " + errorStyle.Render("Error: "+m.loadError)
	}
	return rendered
}

// visibleHeight is the shared row count of the list and detail panes:
// total height minus the header, the separator, and the help bar.
func (m Model) visibleHeight() int {
	return m.height - 3
}

func (m Model) listWidth() int {
	return m.width / 2
}

func (m Model) detailWidth() int {
	width := m.width - m.listWidth() - 1
	if width < 10 {
		width = 10
	}
	return width
}

func statusIcon(status schema.Status) string {
	switch status {
	case schema.StatusInProgress:
		return "●"
	case schema.StatusBlocked:
		return "◐"
	case schema.StatusDone:
		return "✓"
	case schema.StatusRejected, schema.StatusCancelled:
		return "✗"
	default:
		return "○"
	}
}
