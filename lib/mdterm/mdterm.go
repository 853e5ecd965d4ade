// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package mdterm renders markdown task bodies as ANSI-styled terminal
// text. Soft line breaks inside paragraphs become spaces, so bodies
// hard-wrapped in an editor reflow cleanly at whatever width the
// terminal has. Code blocks keep their lines verbatim and get chroma
// syntax highlighting when the fence names a language.
package mdterm

import (
	"os"
	"strconv"
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

// wrapBreakpoints are the characters ansi.Wrap may break a line after,
// beyond plain spaces.
const wrapBreakpoints = " ,.;-+|"

// tableGap separates table columns.
const tableGap = "  "

// The goldmark instance is built once and shared. Its configuration
// never changes after construction, and Parse builds per-call state,
// so concurrent use is safe.
var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

func parser() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return md
}

// Render parses markdown and returns styled terminal text wrapped to
// width. Output carries no trailing newline. A width of zero or less
// falls back to 80 columns.
func Render(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	// Output always targets a terminal, so force ANSI256 instead of
	// letting profile detection see a pipe and strip all color. The
	// SetColorProfile call is needed on top of the termenv option
	// because lipgloss re-detects from the environment otherwise.
	lip := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lip.SetColorProfile(termenv.ANSI256)

	r := &renderer{source: source, theme: theme, width: width, lip: lip}
	ast.Walk(document, r.walk)
	return strings.TrimRight(r.out.String(), "\n")
}

// renderer walks a goldmark AST and accumulates styled output. It uses
// a direct ast.Walk rather than goldmark's renderer registry because
// terminal output needs accumulate-then-wrap semantics: inline content
// collects in a buffer and is word-wrapped as a unit when the
// enclosing block closes, which the streaming NodeRendererFunc
// interface cannot express without an intermediate buffer layer.
type renderer struct {
	source []byte
	theme  Theme
	width  int
	lip    *lipgloss.Renderer

	// Finished output, and the inline accumulator for the block
	// currently being rendered.
	out    strings.Builder
	inline strings.Builder

	// Nested block indentation (blockquote bars, list continuations).
	// prefix and prefixCols cache the concatenation and visible width
	// of the whole stack.
	indents    []indent
	prefix     string
	prefixCols int

	// bullet, when set, replaces the prefix for the next emitted line
	// only. List items set it so their first line carries the marker
	// and continuation lines align under it.
	bullet string

	// Inline style nesting depth. Counters rather than booleans so
	// nested emphasis unwinds correctly.
	bold   int
	italic int
	strike int

	lists []list

	// Trailing newline count on out, for blank-line management.
	blank int
}

type indent struct {
	text string
	cols int
}

type list struct {
	ordered bool
	next    int
	tight   bool
}

// style returns a fresh lipgloss style bound to the forced-profile
// renderer.
func (r *renderer) style() lipgloss.Style {
	return r.lip.NewStyle()
}

// contentWidth is the wrap width left after indentation, clamped so
// deeply nested content still has room to wrap at all.
func (r *renderer) contentWidth() int {
	if w := r.width - r.prefixCols; w >= 10 {
		return w
	}
	return 10
}

func (r *renderer) push(text string, cols int) {
	r.indents = append(r.indents, indent{text: text, cols: cols})
	r.prefix += text
	r.prefixCols += cols
}

func (r *renderer) pop() {
	if len(r.indents) == 0 {
		return
	}
	last := r.indents[len(r.indents)-1]
	r.indents = r.indents[:len(r.indents)-1]
	r.prefix = r.prefix[:len(r.prefix)-len(last.text)]
	r.prefixCols -= last.cols
}

func (r *renderer) tight() bool {
	if len(r.lists) == 0 {
		return false
	}
	return r.lists[len(r.lists)-1].tight
}

// write appends to the output, keeping the trailing newline count
// current.
func (r *renderer) write(s string) {
	if s == "" {
		return
	}
	r.out.WriteString(s)
	if trimmed := strings.TrimRight(s, "\n"); trimmed == "" {
		r.blank += len(s)
	} else {
		r.blank = len(s) - len(trimmed)
	}
}

func (r *renderer) newline() {
	if r.blank == 0 {
		r.write("\n")
	}
}

func (r *renderer) blankLine() {
	for r.blank < 2 {
		r.write("\n")
	}
}

// takePrefix returns the prefix for the line about to be written: the
// pending bullet if one is set, the plain indent otherwise.
func (r *renderer) takePrefix() string {
	if r.bullet != "" {
		b := r.bullet
		r.bullet = ""
		return b
	}
	return r.prefix
}

// prefixed indents every line of a rendered block. The first line may
// consume a pending bullet.
func (r *renderer) prefixed(block string) string {
	var b strings.Builder
	for i, line := range strings.Split(block, "\n") {
		if i == 0 {
			b.WriteString(r.takePrefix())
		} else {
			b.WriteString("\n")
			b.WriteString(r.prefix)
		}
		b.WriteString(line)
	}
	return b.String()
}

// flushInline wraps the accumulated inline content to the current
// width, indents it, and resets the accumulator.
func (r *renderer) flushInline() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	return r.prefixed(ansi.Wrap(content, r.contentWidth(), wrapBreakpoints))
}

// styled applies the current inline nesting (bold, italic,
// strikethrough) on top of the body text color.
func (r *renderer) styled(content string) string {
	style := r.style().Foreground(r.theme.Text)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// collectInline renders a node's children to a string without
// disturbing the caller's accumulator or style nesting. Used for
// content that lands inside another construct: link text, image alt
// text, table cells.
func (r *renderer) collectInline(node ast.Node) string {
	saved := r.inline.String()
	bold, italic, strike := r.bold, r.italic, r.strike

	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	content := r.inline.String()

	r.inline.Reset()
	r.inline.WriteString(saved)
	r.bold, r.italic, r.strike = bold, italic, strike
	return content
}

// highlight syntax-highlights code with chroma. Unknown languages and
// chroma failures fall back to faint plain text.
func (r *renderer) highlight(code, language string) string {
	if language != "" {
		var buf strings.Builder
		if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err == nil {
			return buf.String()
		}
	}
	return r.faintLines(code)
}

// faintLines styles each line separately so downstream line splitting
// keeps every line's escape sequences self-contained.
func (r *renderer) faintLines(content string) string {
	faint := r.style().Foreground(r.theme.Faint)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		lines[i] = faint.Render(line)
	}
	return strings.Join(lines, "\n")
}

// blockText reassembles the literal source lines of a block node.
func blockText(node ast.Node, source []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(source))
	}
	return b.String()
}

func (r *renderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	// Block nodes.
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else if flushed := r.flushInline(); flushed != "" {
			r.write(flushed)
			r.newline()
			if !r.tight() {
				r.blankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			r.heading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			code := blockText(block, r.source)
			r.verbatim(r.highlight(code, string(block.Language(r.source))))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.verbatim(r.faintLines(blockText(node, r.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.push("│ ", 2)
		} else {
			r.pop()
			r.blankLine()
		}

	case ast.KindList:
		if entering {
			block := node.(*ast.List)
			start := 0
			if block.IsOrdered() {
				start = block.Start
			}
			r.lists = append(r.lists, list{
				ordered: block.IsOrdered(),
				next:    start,
				tight:   block.IsTight,
			})
		} else {
			if len(r.lists) > 0 {
				r.lists = r.lists[:len(r.lists)-1]
			}
			if !r.tight() {
				r.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			r.openItem()
		} else {
			r.pop()
			if r.tight() {
				r.newline()
			} else {
				r.blankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			r.rule()
		}

	case ast.KindHTMLBlock:
		if entering {
			if content := strings.TrimSpace(stripTags(blockText(node, r.source))); content != "" {
				r.write(r.prefixed(r.faintLines(content)))
				r.newline()
				r.blankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	// Inline nodes.
	case ast.KindText:
		if entering {
			r.text(node.(*ast.Text))
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.(*ast.Emphasis).Level >= 2 {
			r.bold += delta
		} else {
			r.italic += delta
		}

	case ast.KindCodeSpan:
		if entering {
			r.codeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			r.inline.WriteString(r.collectInline(link))
			if url := string(link.Destination); url != "" {
				faint := r.style().Foreground(r.theme.Faint)
				r.inline.WriteString(" " + faint.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.style().Foreground(r.theme.Faint).Render(url))
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			faint := r.style().Foreground(r.theme.Faint)
			r.inline.WriteString(faint.Render("[" + r.collectInline(image) + "]"))
			if url := string(image.Destination); url != "" {
				r.inline.WriteString(" " + faint.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var b strings.Builder
			for i := 0; i < raw.Segments.Len(); i++ {
				segment := raw.Segments.At(i)
				b.Write(segment.Value(r.source))
			}
			if content := stripTags(b.String()); content != "" {
				r.inline.WriteString(r.style().Foreground(r.theme.Faint).Render(content))
			}
		}

	// GFM extension nodes.
	case extast.KindStrikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case extast.KindTable:
		if entering {
			r.table(node.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				done := r.style().Foreground(r.theme.Done)
				r.inline.WriteString(done.Render("[x]") + " ")
			} else {
				r.inline.WriteString(r.styled("[ ] "))
			}
		}
	}

	return ast.WalkContinue, nil
}

func (r *renderer) text(node *ast.Text) {
	r.inline.WriteString(r.styled(string(node.Segment.Value(r.source))))
	if node.SoftLineBreak() {
		// Soft breaks become spaces so hard-wrapped source reflows at
		// the render width.
		r.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		r.inline.WriteString("\n")
	}
}

func (r *renderer) heading(heading *ast.Heading) {
	// Discard inline styling collected so far: the heading style
	// replaces it wholesale.
	content := ansi.Strip(r.inline.String())
	r.inline.Reset()
	if content == "" {
		return
	}

	style := r.style().Bold(true).Foreground(r.theme.Text)
	if heading.Level <= 2 {
		style = style.Foreground(r.theme.Heading)
	}

	wrapped := ansi.Wrap(style.Render(content), r.contentWidth(), wrapBreakpoints)
	r.blankLine()
	r.write(r.prefixed(wrapped))
	r.newline()
	r.blankLine()
}

// verbatim emits pre-styled lines without reflow, each on its own
// output line under the current indent.
func (r *renderer) verbatim(styled string) {
	r.blankLine()
	for _, line := range strings.Split(strings.TrimRight(styled, "\n"), "\n") {
		r.write(r.takePrefix() + line)
		r.newline()
	}
	r.blankLine()
}

func (r *renderer) openItem() {
	if len(r.lists) == 0 {
		return
	}
	top := &r.lists[len(r.lists)-1]

	marker := "- "
	if top.ordered {
		marker = strconv.Itoa(top.next) + ". "
		top.next++
	}

	// The pending bullet carries the current indent plus the marker,
	// so it replaces the whole prefix for the item's first line. The
	// pushed continuation aligns later lines under the text. Markers
	// are ASCII, so byte length equals visible width.
	r.bullet = r.prefix + marker
	r.push(strings.Repeat(" ", len(marker)), len(marker))
}

func (r *renderer) rule() {
	line := strings.Repeat("─", r.contentWidth())
	r.blankLine()
	r.write(r.prefixed(r.style().Foreground(r.theme.Rule).Render(line)))
	r.newline()
	r.blankLine()
}

func (r *renderer) codeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child := child.(type) {
		case *ast.Text:
			code.Write(child.Segment.Value(r.source))
		case *ast.String:
			code.Write(child.Value)
		}
	}
	r.inline.WriteString(r.style().Foreground(r.theme.Faint).Render(code.String()))
}

func (r *renderer) table(table *extast.Table) {
	var header []string
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = r.tableCells(child)
		case extast.KindTableRow:
			rows = append(rows, r.tableCells(child))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return
	}

	widths := make([]int, columns)
	measure := func(cells []string) {
		for i, cell := range cells {
			if i < columns {
				if w := lipgloss.Width(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	// Shrink over-wide tables proportionally, keeping a few columns of
	// content per cell.
	total := len(tableGap) * (columns - 1)
	for _, w := range widths {
		total += w
	}
	if available := r.contentWidth(); total > available {
		usable := available - len(tableGap)*(columns-1)
		if usable < columns*3 {
			usable = columns * 3
		}
		for i := range widths {
			widths[i] = widths[i] * usable / total
			if widths[i] < 3 {
				widths[i] = 3
			}
		}
	}

	r.blankLine()
	if len(header) > 0 {
		bold := r.style().Bold(true).Foreground(r.theme.Text)
		r.write(r.takePrefix() + r.tableLine(header, widths, table.Alignments, bold))
		r.newline()

		parts := make([]string, columns)
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w)
		}
		ruleStyle := r.style().Foreground(r.theme.Rule)
		r.write(r.prefix + ruleStyle.Render(strings.Join(parts, tableGap)))
		r.newline()
	}
	for _, row := range rows {
		r.write(r.prefix + r.tableLine(row, widths, table.Alignments, r.style()))
		r.newline()
	}
	r.blankLine()
}

func (r *renderer) tableCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() == extast.KindTableCell {
			cells = append(cells, r.collectInline(cell))
		}
	}
	return cells
}

func (r *renderer) tableLine(cells []string, widths []int, aligns []extast.Alignment, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i, width := range widths {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		if lipgloss.Width(cell) > width {
			cell = ansi.Truncate(cell, width, "…")
		}
		pad := width - lipgloss.Width(cell)
		if pad < 0 {
			pad = 0
		}

		var align extast.Alignment
		if i < len(aligns) {
			align = aligns[i]
		}
		switch align {
		case extast.AlignRight:
			cell = strings.Repeat(" ", pad) + cell
		case extast.AlignCenter:
			cell = strings.Repeat(" ", pad/2) + cell + strings.Repeat(" ", pad-pad/2)
		default:
			cell += strings.Repeat(" ", pad)
		}
		parts[i] = cell
	}
	return style.Render(strings.Join(parts, tableGap))
}

// stripTags drops everything between angle brackets, keeping the text
// content of inline HTML.
func stripTags(html string) string {
	var content strings.Builder
	inTag := false
	for _, ch := range html {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			content.WriteRune(ch)
		}
	}
	return content.String()
}
