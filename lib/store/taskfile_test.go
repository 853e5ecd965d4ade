// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crewplan/crewplan/lib/schema"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"# Build the parser\n\nSome body.\n", "Build the parser"},
		{"\n\n# Leading blanks\n", "Leading blanks"},
		{"## Only a subheading\n\ntext\n", ""},
		{"no heading at all\n", ""},
		{"", ""},
		{"# First\n\n# Second\n", "First"},
	}
	for _, test := range tests {
		if got := ExtractTitle(test.body); got != test.want {
			t.Errorf("ExtractTitle(%q) = %q, want %q", test.body, got, test.want)
		}
	}
}

func TestIsPlaceholderBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"fresh template", NewTaskBody("Write the schema"), true},
		{"empty", "", true},
		{"heading only", "# Just a title\n", true},
		{"whitespace only", "\n\n   \n", true},
		{"real content", "# Title\n\nImplement the YAML loader.\n", false},
		{"edited template", NewTaskBody("X") + "\n- [ ] parse nested lists\n", false},
	}
	for _, test := range tests {
		if got := IsPlaceholderBody(test.body); got != test.want {
			t.Errorf("%s: IsPlaceholderBody = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestTaskFileName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"P1.M1.E1.T007", "T007.md"},
		{"P12.M3.E2.T100", "T100.md"},
		{"B001", "B001.md"},
	}
	for _, test := range tests {
		if got := taskFileName(test.id); got != test.want {
			t.Errorf("taskFileName(%q) = %q, want %q", test.id, got, test.want)
		}
	}
}

func TestTaskFileRoundTrip(t *testing.T) {
	task := &schema.Task{
		ID:            "P1.M1.E1.T001",
		Title:         "Write the loader",
		Status:        schema.StatusInProgress,
		EstimateHours: 6,
		Complexity:    schema.ComplexityHigh,
		Priority:      schema.PriorityCritical,
		DependsOn:     []string{"T000", "P1.M1.E2"},
		Tags:          []string{"storage"},
		Epic:          "P1.M1.E1",
		Milestone:     "P1.M1",
		Phase:         "P1",
		Body:          "# Write the loader\n\nRead the epic index and resolve entries.\n",
	}

	data, err := renderTaskFile(task)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "T001.md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readTaskFile(path, Full)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != task.ID {
		t.Errorf("id = %q, want %q", got.ID, task.ID)
	}
	if got.Title != task.Title {
		t.Errorf("title = %q, want %q", got.Title, task.Title)
	}
	if got.Status != schema.StatusInProgress {
		t.Errorf("status = %q, want %q", got.Status, schema.StatusInProgress)
	}
	if got.EstimateHours != 6 {
		t.Errorf("estimate_hours = %v, want 6", got.EstimateHours)
	}
	if len(got.DependsOn) != 2 || got.DependsOn[0] != "T000" {
		t.Errorf("depends_on = %v, want [T000 P1.M1.E2]", got.DependsOn)
	}
	if got.Body != task.Body {
		t.Errorf("body = %q, want %q", got.Body, task.Body)
	}
}

func TestReadTaskFileMetadataSkipsBody(t *testing.T) {
	task := &schema.Task{
		ID:     "P1.M1.E1.T002",
		Title:  "Metadata only",
		Status: schema.StatusPending,
		Body:   "# Metadata only\n\nLong body text.\n",
	}
	data, err := renderTaskFile(task)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "T002.md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readTaskFile(path, Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "" {
		t.Errorf("metadata load kept body %q", got.Body)
	}
	if got.Title != "Metadata only" {
		t.Errorf("title = %q, want %q", got.Title, "Metadata only")
	}
}

func TestRenderTaskFileFillsTemplateBody(t *testing.T) {
	task := &schema.Task{
		ID:     "P1.M1.E1.T003",
		Title:  "Fresh task",
		Status: schema.StatusPending,
	}
	data, err := renderTaskFile(task)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "T003.md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readTaskFile(path, Full)
	if err != nil {
		t.Fatal(err)
	}
	if !IsPlaceholderBody(got.Body) {
		t.Errorf("fresh task body is not the placeholder: %q", got.Body)
	}
	if ExtractTitle(got.Body) != "Fresh task" {
		t.Errorf("body heading = %q, want %q", ExtractTitle(got.Body), "Fresh task")
	}
}

func TestReadTaskFileTitleFallsBackToHeading(t *testing.T) {
	// A file whose frontmatter omits the title takes it from the
	// first level-one heading.
	content := "---\nid: P1.M1.E1.T004\nstatus: PENDING\n---\n# Heading Title\n\nbody\n"
	path := filepath.Join(t.TempDir(), "T004.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readTaskFile(path, Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Heading Title" {
		t.Errorf("title = %q, want %q", got.Title, "Heading Title")
	}
}

func TestReadTaskFileRejectsMissingFrontmatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "T005.md")
	if err := os.WriteFile(path, []byte("# No frontmatter here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readTaskFile(path, Metadata); err == nil {
		t.Fatal("expected error for file without frontmatter")
	}
}
