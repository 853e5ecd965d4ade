// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/crewplan/crewplan/lib/schema"
)

// frontmatterFence delimits the YAML record at the top of a task
// file.
const frontmatterFence = "---"

// taskBodyTemplate is the markdown body written below the title
// heading for every new task. The validator flags bodies that still
// match it (see [IsPlaceholderBody]): a task nobody has described is
// usually a task nobody has thought about.
const taskBodyTemplate = `## Description

TODO: describe this task.

## Acceptance Criteria

- [ ] TODO: define acceptance criteria.
`

// NewTaskBody returns the initial markdown body for a task file.
func NewTaskBody(title string) string {
	return "# " + title + "\n\n" + taskBodyTemplate
}

// taskFileName returns the file name for a task's content file: the
// last identifier segment plus the markdown extension, e.g.
// "T001.md" for P1.M1.E1.T001.
func taskFileName(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:] + ".md"
	}
	return id + ".md"
}

// splitFrontmatter cuts a task file into its YAML frontmatter and
// markdown body. The file must start with a fence line.
func splitFrontmatter(data []byte) (front, body []byte, err error) {
	rest, ok := bytes.CutPrefix(data, []byte(frontmatterFence+"\n"))
	if !ok {
		return nil, nil, fmt.Errorf("missing frontmatter fence")
	}
	front, body, ok = bytes.Cut(rest, []byte("\n"+frontmatterFence+"\n"))
	if !ok {
		// Fence may close the file with no body after it.
		if trimmed := bytes.TrimSuffix(rest, []byte("\n"+frontmatterFence)); len(trimmed) < len(rest) {
			return trimmed, nil, nil
		}
		return nil, nil, fmt.Errorf("unterminated frontmatter")
	}
	return front, bytes.TrimPrefix(body, []byte("\n")), nil
}

// readTaskFile parses the task file at path. In [Full] mode the
// markdown body is retained on the record; in [Metadata] mode only
// the frontmatter is decoded.
func readTaskFile(path string, mode LoadMode) (*schema.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("task file %s: %w", path, err)
	}

	var task schema.Task
	if err := yaml.Unmarshal(front, &task); err != nil {
		return nil, fmt.Errorf("task file %s: parsing frontmatter: %w", path, err)
	}
	if mode == Full {
		task.Body = string(body)
	}
	if task.Title == "" {
		task.Title = ExtractTitle(string(body))
	}
	return &task, nil
}

// renderTaskFile serializes a task record back into file form. An
// empty body renders as frontmatter only plus the title heading.
func renderTaskFile(task *schema.Task) ([]byte, error) {
	front, err := yaml.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encoding task %s: %w", task.ID, err)
	}

	body := task.Body
	if body == "" {
		body = NewTaskBody(task.Title)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterFence + "\n")
	buf.Write(front)
	buf.WriteString(frontmatterFence + "\n\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// markdownOnce guards the shared goldmark instance. The parser
// configuration never changes and parsing allocates per-call state,
// so one instance serves all callers.
var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func markdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New()
	})
	return markdownInstance
}

// ExtractTitle returns the text of the first level-one heading in a
// markdown body, or "" when there is none. Used as a fallback when a
// legacy task file carries no title in its frontmatter.
func ExtractTitle(body string) string {
	if body == "" {
		return ""
	}
	source := []byte(body)
	document := markdownParser().Parser().Parse(text.NewReader(source))

	var title string
	ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = headingText(heading, source)
		return ast.WalkStop, nil
	})
	return strings.TrimSpace(title)
}

// headingText collects the plain text of a heading's inline children.
func headingText(heading ast.Node, source []byte) string {
	var out strings.Builder
	for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			out.Write(n.Segment.Value(source))
		case *ast.String:
			out.Write(n.Value)
		}
	}
	return out.String()
}

// placeholderSum fingerprints the normalized template body. Computed
// once; the template is a compile-time constant.
var placeholderSum = blake3.Sum256([]byte(normalizeBody(taskBodyTemplate)))

// normalizeBody strips the parts of a body that legitimately vary:
// the title heading and surrounding whitespace. What remains is the
// content someone was supposed to replace.
func normalizeBody(body string) string {
	lines := strings.Split(body, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start < len(lines) && strings.HasPrefix(lines[start], "# ") {
		start++
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

// IsPlaceholderBody reports whether a task body is still the unedited
// template. An empty body, or one that is nothing but the title
// heading, counts: that is the same neglect with less typing.
func IsPlaceholderBody(body string) bool {
	normalized := normalizeBody(body)
	if normalized == "" {
		return true
	}
	return blake3.Sum256([]byte(normalized)) == placeholderSum
}
