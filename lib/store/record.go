// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/crewplan/crewplan/lib/schema"
)

// backlogIndex is the root index file (backlog.yaml). Phases are
// listed by identifier; their directories are derived from it.
type backlogIndex struct {
	Project string        `yaml:"project,omitempty"`
	Phases  []string      `yaml:"phases"`
	Stats   *schema.Stats `yaml:"stats,omitempty"`
}

// phaseFile is phases/P<n>/phase.yaml.
type phaseFile struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Status        schema.Status     `yaml:"status"`
	EstimateWeeks float64           `yaml:"estimate_weeks,omitempty"`
	Priority      schema.Priority   `yaml:"priority,omitempty"`
	Complexity    schema.Complexity `yaml:"complexity,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Locked        bool              `yaml:"locked,omitempty"`
	Milestones    []string          `yaml:"milestones"`
	Stats         *schema.Stats     `yaml:"stats,omitempty"`
}

// milestoneFile is phases/P<n>/M<n>/milestone.yaml.
type milestoneFile struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Status        schema.Status     `yaml:"status"`
	EstimateHours float64           `yaml:"estimate_hours,omitempty"`
	Complexity    schema.Complexity `yaml:"complexity,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Locked        bool              `yaml:"locked,omitempty"`
	Phase         string            `yaml:"phase,omitempty"`
	Epics         []string          `yaml:"epics"`
	Stats         *schema.Stats     `yaml:"stats,omitempty"`
}

// epicFile is phases/P<n>/M<n>/E<n>/epic.yaml.
type epicFile struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Status        schema.Status     `yaml:"status"`
	EstimateHours float64           `yaml:"estimate_hours,omitempty"`
	Complexity    schema.Complexity `yaml:"complexity,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Locked        bool              `yaml:"locked,omitempty"`
	Milestone     string            `yaml:"milestone,omitempty"`
	Phase         string            `yaml:"phase,omitempty"`
	Tasks         []taskEntry       `yaml:"tasks"`
	Stats         *schema.Stats     `yaml:"stats,omitempty"`
}

// flatIndex is bugs.yaml or ideas.yaml. Flat items have no content
// files; the index carries the full records.
type flatIndex struct {
	Bugs  []*schema.Task `yaml:"bugs,omitempty"`
	Ideas []*schema.Task `yaml:"ideas,omitempty"`
	Stats *schema.Stats  `yaml:"stats,omitempty"`
}

// taskEntry is one element of an epic's task list. Two forms are
// accepted:
//
//	Short form:  - T001.md
//	Legacy form: - {id: P1.M1.E1.T001, title: ..., status: PENDING, ...}
//
// The short form names the task file within the epic directory; the
// record lives in that file's frontmatter. The legacy form inlines
// the whole record in the index. New writes always produce the short
// form; the legacy form survives only until its task is next saved.
type taskEntry struct {
	File   string
	Legacy *schema.Task
}

func (e *taskEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.File = value.Value
		return nil
	}

	var record schema.Task
	if err := value.Decode(&record); err != nil {
		return fmt.Errorf("task entry: %w", err)
	}
	if record.ID == "" {
		return fmt.Errorf("task entry: legacy record has no id")
	}
	e.Legacy = &record
	return nil
}

func (e taskEntry) MarshalYAML() (any, error) {
	if e.File != "" {
		return e.File, nil
	}
	if e.Legacy != nil {
		return e.Legacy, nil
	}
	return nil, fmt.Errorf("task entry has neither file nor record")
}

func phaseToSchema(f *phaseFile) *schema.Phase {
	return &schema.Phase{
		ID:            f.ID,
		Title:         f.Title,
		Status:        f.Status,
		EstimateWeeks: f.EstimateWeeks,
		Priority:      f.Priority,
		Complexity:    f.Complexity,
		DependsOn:     f.DependsOn,
		Locked:        f.Locked,
		Stats:         f.Stats,
	}
}

func milestoneToSchema(f *milestoneFile) *schema.Milestone {
	return &schema.Milestone{
		ID:            f.ID,
		Title:         f.Title,
		Status:        f.Status,
		EstimateHours: f.EstimateHours,
		Complexity:    f.Complexity,
		DependsOn:     f.DependsOn,
		Locked:        f.Locked,
		Phase:         f.Phase,
		Stats:         f.Stats,
	}
}

func epicToSchema(f *epicFile) *schema.Epic {
	return &schema.Epic{
		ID:            f.ID,
		Title:         f.Title,
		Status:        f.Status,
		EstimateHours: f.EstimateHours,
		Complexity:    f.Complexity,
		DependsOn:     f.DependsOn,
		Locked:        f.Locked,
		Milestone:     f.Milestone,
		Phase:         f.Phase,
		Stats:         f.Stats,
	}
}

func phaseFromSchema(p *schema.Phase) *phaseFile {
	f := &phaseFile{
		ID:            p.ID,
		Title:         p.Title,
		Status:        p.Status,
		EstimateWeeks: p.EstimateWeeks,
		Priority:      p.Priority,
		Complexity:    p.Complexity,
		DependsOn:     p.DependsOn,
		Locked:        p.Locked,
		Stats:         p.Stats,
		Milestones:    make([]string, 0, len(p.Milestones)),
	}
	for _, m := range p.Milestones {
		f.Milestones = append(f.Milestones, m.ID)
	}
	return f
}

func milestoneFromSchema(m *schema.Milestone) *milestoneFile {
	f := &milestoneFile{
		ID:            m.ID,
		Title:         m.Title,
		Status:        m.Status,
		EstimateHours: m.EstimateHours,
		Complexity:    m.Complexity,
		DependsOn:     m.DependsOn,
		Locked:        m.Locked,
		Phase:         m.Phase,
		Stats:         m.Stats,
		Epics:         make([]string, 0, len(m.Epics)),
	}
	for _, e := range m.Epics {
		f.Epics = append(f.Epics, e.ID)
	}
	return f
}

func epicFromSchema(e *schema.Epic) *epicFile {
	f := &epicFile{
		ID:            e.ID,
		Title:         e.Title,
		Status:        e.Status,
		EstimateHours: e.EstimateHours,
		Complexity:    e.Complexity,
		DependsOn:     e.DependsOn,
		Locked:        e.Locked,
		Milestone:     e.Milestone,
		Phase:         e.Phase,
		Stats:         e.Stats,
		Tasks:         make([]taskEntry, 0, len(e.Tasks)),
	}
	for _, t := range e.Tasks {
		f.Tasks = append(f.Tasks, taskEntry{File: taskFileName(t.ID)})
	}
	return f
}
