// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package mdterm

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

// plain renders markdown and strips the ANSI styling, leaving the
// visible text.
func plain(input string, width int) string {
	return ansi.Strip(Render(input, DefaultTheme, width))
}

func TestRenderEmpty(t *testing.T) {
	if got := Render("", DefaultTheme, 80); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
}

func TestRenderParagraphReflow(t *testing.T) {
	// Body text hard-wrapped in an editor at a narrow width.
	input := "Parse the YAML frontmatter into\na Task value and keep the raw\nbody around for later edits."
	got := plain(input, 120)

	if strings.Contains(got, "\n") {
		t.Errorf("expected one line at width 120, got:\n%s", got)
	}
	if !strings.Contains(got, "into a Task value") {
		t.Errorf("soft break not converted to space:\n%s", got)
	}
}

func TestRenderParagraphWrapsAtWidth(t *testing.T) {
	input := "This sentence is long enough that it cannot possibly fit on a single thirty column line."
	got := plain(input, 30)

	for _, line := range strings.Split(got, "\n") {
		if len(line) > 30 {
			t.Errorf("line exceeds width 30: %q (len=%d)", line, len(line))
		}
	}
}

func TestRenderDefaultWidth(t *testing.T) {
	input := "A width of zero falls back to eighty columns, so this long sentence should wrap rather than run on forever."
	got := plain(input, 0)

	if !strings.Contains(got, "\n") {
		t.Errorf("expected wrapping at the default width, got:\n%s", got)
	}
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 80 {
			t.Errorf("line exceeds default width 80: %q", line)
		}
	}
}

func TestRenderHardBreak(t *testing.T) {
	// Two trailing spaces force a hard break.
	input := "Claim the task first.  \nThen update the status."
	got := plain(input, 80)

	if !strings.Contains(got, "Claim the task first.\nThen update the status.") {
		t.Errorf("hard break not preserved:\n%s", got)
	}
}

func TestRenderHeadings(t *testing.T) {
	input := "## Description\n\nBody text.\n\n### Steps"
	got := plain(input, 80)

	for _, want := range []string{"Description", "Body text.", "Steps"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if raw := Render(input, DefaultTheme, 80); raw == got {
		t.Error("expected ANSI styling on headings")
	}
}

func TestRenderEmphasis(t *testing.T) {
	input := "Mark the task **done** once the *diff* lands."
	got := plain(input, 80)

	if !strings.Contains(got, "done") || !strings.Contains(got, "diff") {
		t.Errorf("emphasis text missing:\n%s", got)
	}
	if raw := Render(input, DefaultTheme, 80); raw == got {
		t.Error("expected ANSI styling on emphasis")
	}
}

func TestRenderCodeSpan(t *testing.T) {
	input := "Run `crewplan claim` to take the next item."
	if got := plain(input, 80); !strings.Contains(got, "crewplan claim") {
		t.Errorf("code span missing:\n%s", got)
	}
}

func TestRenderFencedCodeKeepsLines(t *testing.T) {
	input := "Steps:\n\n```\ncrewplan claim P1.M1.E1.T001\ncrewplan complete P1.M1.E1.T001\n```\n\nDone."
	got := plain(input, 80)

	if !strings.Contains(got, "crewplan claim P1.M1.E1.T001\ncrewplan complete P1.M1.E1.T001") {
		t.Errorf("code lines not preserved verbatim:\n%s", got)
	}
	if !strings.Contains(got, "Steps:") || !strings.Contains(got, "Done.") {
		t.Errorf("surrounding text missing:\n%s", got)
	}
}

func TestRenderFencedCodeHighlights(t *testing.T) {
	input := "```go\npackage main\n```"
	raw := Render(input, DefaultTheme, 80)

	if !strings.Contains(raw, "\x1b[") {
		t.Error("expected ANSI escapes from syntax highlighting")
	}
	if !strings.Contains(ansi.Strip(raw), "package main") {
		t.Errorf("highlighted code lost its text:\n%s", raw)
	}
}

func TestRenderFencedCodeUnknownLanguage(t *testing.T) {
	input := "```nosuchlanguage\nid: P1.M1\n```"
	if got := plain(input, 80); !strings.Contains(got, "id: P1.M1") {
		t.Errorf("fallback rendering missing code text:\n%s", got)
	}
}

func TestRenderBlockquote(t *testing.T) {
	input := "> Blocked on the schema review, see\n> the milestone notes."
	got := plain(input, 80)

	for _, line := range strings.Split(got, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "│") {
			t.Errorf("blockquote line without bar: %q", line)
		}
	}
	if !strings.Contains(got, "schema review, see the milestone") {
		t.Errorf("blockquote text not reflowed:\n%s", got)
	}
}

func TestRenderTightList(t *testing.T) {
	got := plain("- Write the schema\n- Write the parser", 80)
	want := "- Write the schema\n- Write the parser"
	if got != want {
		t.Errorf("tight list rendered as %q, want %q", got, want)
	}
}

func TestRenderOrderedListStart(t *testing.T) {
	got := plain("2. Touch the index\n3. Save the task", 80)

	if !strings.Contains(got, "2. Touch the index") {
		t.Errorf("ordered list lost its start number:\n%s", got)
	}
	if !strings.Contains(got, "3. Save the task") {
		t.Errorf("ordered list did not count up:\n%s", got)
	}
}

func TestRenderNestedListIndent(t *testing.T) {
	got := plain("- Epics\n  - Tasks\n- Bugs", 80)

	var outer, inner int
	for _, line := range strings.Split(got, "\n") {
		indent := len(line) - len(strings.TrimLeft(line, " "))
		switch {
		case strings.Contains(line, "Tasks"):
			inner = indent
		case strings.Contains(line, "Epics"):
			outer = indent
		}
	}
	if inner <= outer {
		t.Errorf("nested item not indented: outer=%d inner=%d\n%s", outer, inner, got)
	}
}

func TestRenderListItemReflow(t *testing.T) {
	input := "- This dependency note was\n  written at a narrow width."
	if got := plain(input, 80); !strings.Contains(got, "note was written at") {
		t.Errorf("list item text not reflowed:\n%s", got)
	}
}

func TestRenderTaskCheckbox(t *testing.T) {
	input := "- [x] Schema written\n- [ ] Parser written"
	got := plain(input, 80)

	if !strings.Contains(got, "[x] Schema written") {
		t.Errorf("checked box missing:\n%s", got)
	}
	if !strings.Contains(got, "[ ] Parser written") {
		t.Errorf("unchecked box missing:\n%s", got)
	}
}

func TestRenderStrikethrough(t *testing.T) {
	input := "The ~~cancelled~~ rescoped milestone."
	got := plain(input, 80)

	if !strings.Contains(got, "cancelled") {
		t.Errorf("strikethrough text missing:\n%s", got)
	}
	if raw := Render(input, DefaultTheme, 80); raw == got {
		t.Error("expected ANSI styling on strikethrough")
	}
}

func TestRenderLink(t *testing.T) {
	input := "See [the tracker](https://example.com/t) for context."
	got := plain(input, 80)

	if !strings.Contains(got, "the tracker") {
		t.Errorf("link text missing:\n%s", got)
	}
	if !strings.Contains(got, "(https://example.com/t)") {
		t.Errorf("link URL missing:\n%s", got)
	}
}

func TestRenderAutoLink(t *testing.T) {
	input := "Docs live at https://example.com/crewplan for now."
	if got := plain(input, 80); !strings.Contains(got, "https://example.com/crewplan") {
		t.Errorf("autolink missing:\n%s", got)
	}
}

func TestRenderImage(t *testing.T) {
	input := "![board screenshot](https://example.com/board.png)"
	got := plain(input, 80)

	if !strings.Contains(got, "[board screenshot]") {
		t.Errorf("image alt text missing:\n%s", got)
	}
	if !strings.Contains(got, "(https://example.com/board.png)") {
		t.Errorf("image URL missing:\n%s", got)
	}
}

func TestRenderThematicBreak(t *testing.T) {
	got := plain("Before.\n\n---\n\nAfter.", 40)

	if !strings.Contains(got, "Before.") || !strings.Contains(got, "After.") {
		t.Errorf("text around rule missing:\n%s", got)
	}
	if !strings.Contains(got, "───") {
		t.Errorf("horizontal rule missing:\n%s", got)
	}
}

func TestRenderTable(t *testing.T) {
	input := "| ID | Status |\n|----|--------|\n| P1.M1.E1.T001 | PENDING |\n| B001 | DONE |"
	got := plain(input, 80)

	for _, want := range []string{"ID", "Status", "P1.M1.E1.T001", "PENDING", "B001"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "───") {
		t.Errorf("table header separator missing:\n%s", got)
	}
}

func TestRenderParagraphSpacing(t *testing.T) {
	got := plain("First paragraph.\n\nSecond paragraph.", 80)

	if !strings.Contains(got, "First paragraph.\n\nSecond paragraph.") {
		t.Errorf("expected a blank line between paragraphs:\n%s", got)
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>claim it</p>", "claim it"},
		{"no markup", "no markup"},
		{"<b>P1</b> then <i>M1</i>", "P1 then M1"},
		{"<br/>", ""},
		{"", ""},
	}
	for _, test := range tests {
		if got := stripTags(test.input); got != test.want {
			t.Errorf("stripTags(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}
