// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// PhaseOptions carries the optional fields of a new phase.
type PhaseOptions struct {
	EstimateWeeks float64
	Priority      schema.Priority
	Complexity    schema.Complexity
	DependsOn     []string
}

// ContainerOptions carries the optional fields of a new milestone or
// epic.
type ContainerOptions struct {
	EstimateHours float64
	Complexity    schema.Complexity
	DependsOn     []string
}

// TaskOptions carries the optional fields of a new task, bug, or
// idea. Body applies only to hierarchical tasks; bugs and ideas are
// index records with no content file.
type TaskOptions struct {
	EstimateHours float64
	Complexity    schema.Complexity
	Priority      schema.Priority
	DependsOn     []string
	Tags          []string
	Body          string
}

// CreatePhase appends a new phase with the next free number. An
// uninitialized store is initialized on the way.
func (s *Store) CreatePhase(title string, opts PhaseOptions) (*schema.Phase, error) {
	if title == "" {
		return nil, fmt.Errorf("creating phase: title is required")
	}

	var idx backlogIndex
	if err := readYAML(s.backlogPath(), &idx); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	next := 1
	for _, ref := range idx.Phases {
		if n := segmentNumber(ref); n >= next {
			next = n + 1
		}
	}
	id := fmt.Sprintf("P%d", next)
	p := taskpath.MustParse(id)

	f := &phaseFile{
		ID:            id,
		Title:         title,
		Status:        schema.StatusPending,
		EstimateWeeks: opts.EstimateWeeks,
		Priority:      opts.Priority,
		Complexity:    opts.Complexity,
		DependsOn:     opts.DependsOn,
		Milestones:    []string{},
	}
	if err := writeYAML(s.nodeFile(p), f); err != nil {
		return nil, fmt.Errorf("creating phase %s: %w", id, err)
	}

	idx.Phases = append(idx.Phases, id)
	if err := writeYAML(s.backlogPath(), &idx); err != nil {
		return nil, fmt.Errorf("creating phase %s: %w", id, err)
	}
	return phaseToSchema(f), nil
}

// CreateMilestone appends a new milestone to a phase.
func (s *Store) CreateMilestone(phaseRef, title string, opts ContainerOptions) (*schema.Milestone, error) {
	if title == "" {
		return nil, fmt.Errorf("creating milestone: title is required")
	}
	tree, err := s.Load(IndexOnly)
	if err != nil {
		return nil, err
	}
	phase, ok := tree.Phase(phaseRef)
	if !ok {
		return nil, fmt.Errorf("no phase matches %q", phaseRef)
	}
	if phase.Locked {
		return nil, fmt.Errorf("phase %s is locked", phase.ID)
	}
	pp := taskpath.MustParse(phase.ID)

	var pf phaseFile
	if err := readYAML(s.nodeFile(pp), &pf); err != nil {
		return nil, fmt.Errorf("creating milestone in %s: %w", phase.ID, err)
	}
	next := 1
	for _, ref := range pf.Milestones {
		if n := lastSegmentNumber(ref); n >= next {
			next = n + 1
		}
	}
	mp, err := pp.Child(next)
	if err != nil {
		return nil, err
	}
	id := mp.String()

	f := &milestoneFile{
		ID:            id,
		Title:         title,
		Status:        schema.StatusPending,
		EstimateHours: opts.EstimateHours,
		Complexity:    opts.Complexity,
		DependsOn:     opts.DependsOn,
		Phase:         phase.ID,
		Epics:         []string{},
	}
	if err := writeYAML(s.nodeFile(mp), f); err != nil {
		return nil, fmt.Errorf("creating milestone %s: %w", id, err)
	}
	pf.Milestones = append(pf.Milestones, id)
	if err := writeYAML(s.nodeFile(pp), &pf); err != nil {
		return nil, fmt.Errorf("creating milestone %s: %w", id, err)
	}
	return milestoneToSchema(f), nil
}

// CreateEpic appends a new epic to a milestone.
func (s *Store) CreateEpic(milestoneRef, title string, opts ContainerOptions) (*schema.Epic, error) {
	if title == "" {
		return nil, fmt.Errorf("creating epic: title is required")
	}
	tree, err := s.Load(IndexOnly)
	if err != nil {
		return nil, err
	}
	milestone, ok := tree.Milestone(milestoneRef)
	if !ok {
		return nil, fmt.Errorf("no milestone matches %q", milestoneRef)
	}
	if milestone.Locked {
		return nil, fmt.Errorf("milestone %s is locked", milestone.ID)
	}
	mp := taskpath.MustParse(milestone.ID)

	var mf milestoneFile
	if err := readYAML(s.nodeFile(mp), &mf); err != nil {
		return nil, fmt.Errorf("creating epic in %s: %w", milestone.ID, err)
	}
	next := 1
	for _, ref := range mf.Epics {
		if n := lastSegmentNumber(ref); n >= next {
			next = n + 1
		}
	}
	ep, err := mp.Child(next)
	if err != nil {
		return nil, err
	}
	id := ep.String()

	f := &epicFile{
		ID:            id,
		Title:         title,
		Status:        schema.StatusPending,
		EstimateHours: opts.EstimateHours,
		Complexity:    opts.Complexity,
		DependsOn:     opts.DependsOn,
		Milestone:     milestone.ID,
		Phase:         mp.PhasePath().String(),
		Tasks:         []taskEntry{},
	}
	if err := writeYAML(s.nodeFile(ep), f); err != nil {
		return nil, fmt.Errorf("creating epic %s: %w", id, err)
	}
	mf.Epics = append(mf.Epics, id)
	if err := writeYAML(s.nodeFile(mp), &mf); err != nil {
		return nil, fmt.Errorf("creating epic %s: %w", id, err)
	}
	return epicToSchema(f), nil
}

// CreateTask appends a new task to an epic: a content file with the
// record in its frontmatter and the template body, plus a short-form
// index entry. Locked epics reject new tasks.
func (s *Store) CreateTask(epicRef, title string, opts TaskOptions) (*schema.Task, error) {
	if title == "" {
		return nil, fmt.Errorf("creating task: title is required")
	}
	tree, err := s.Load(IndexOnly)
	if err != nil {
		return nil, err
	}
	epic, ok := tree.Epic(epicRef)
	if !ok {
		return nil, fmt.Errorf("no epic matches %q", epicRef)
	}
	if epic.Locked {
		return nil, fmt.Errorf("epic %s is locked", epic.ID)
	}
	ep := taskpath.MustParse(epic.ID)

	var ef epicFile
	if err := readYAML(s.nodeFile(ep), &ef); err != nil {
		return nil, fmt.Errorf("creating task in %s: %w", epic.ID, err)
	}
	next := 1
	for _, entry := range ef.Tasks {
		var n int
		switch {
		case entry.File != "":
			n = segmentNumber(strings.TrimSuffix(entry.File, ".md"))
		case entry.Legacy != nil:
			n = lastSegmentNumber(entry.Legacy.ID)
		}
		if n >= next {
			next = n + 1
		}
	}
	tp, err := ep.Child(next)
	if err != nil {
		return nil, err
	}

	mp, _ := tp.MilestonePath()
	task := &schema.Task{
		ID:            tp.String(),
		Title:         title,
		File:          relNodeFile(tp),
		Status:        schema.StatusPending,
		EstimateHours: opts.EstimateHours,
		Complexity:    opts.Complexity,
		Priority:      opts.Priority,
		DependsOn:     opts.DependsOn,
		Tags:          opts.Tags,
		Epic:          epic.ID,
		Milestone:     mp.String(),
		Phase:         tp.PhasePath().String(),
		Body:          opts.Body,
	}
	if task.Body == "" {
		task.Body = NewTaskBody(title)
	}

	data, err := renderTaskFile(task)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(s.abs(task.File), data); err != nil {
		return nil, fmt.Errorf("creating task %s: %w", task.ID, err)
	}

	ef.Tasks = append(ef.Tasks, taskEntry{File: taskFileName(task.ID)})
	if err := writeYAML(s.nodeFile(ep), &ef); err != nil {
		return nil, fmt.Errorf("creating task %s: %w", task.ID, err)
	}
	return task, nil
}

// CreateBug appends a new bug record to the flat bug index.
func (s *Store) CreateBug(title string, opts TaskOptions) (*schema.Task, error) {
	return s.createFlat(s.bugsPath(), taskpath.KindBug, title, opts)
}

// CreateIdea appends a new idea record to the flat idea index.
func (s *Store) CreateIdea(title string, opts TaskOptions) (*schema.Task, error) {
	return s.createFlat(s.ideasPath(), taskpath.KindIdea, title, opts)
}

func (s *Store) createFlat(path string, kind taskpath.Kind, title string, opts TaskOptions) (*schema.Task, error) {
	if title == "" {
		return nil, fmt.Errorf("creating %s: title is required", kind)
	}

	var idx flatIndex
	if err := readYAML(path, &idx); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	items := &idx.Bugs
	format := taskpath.FormatBug
	if kind == taskpath.KindIdea {
		items = &idx.Ideas
		format = taskpath.FormatIdea
	}

	next := 1
	for _, item := range *items {
		if n := segmentNumber(item.ID); n >= next {
			next = n + 1
		}
	}

	task := &schema.Task{
		ID:            format(next),
		Title:         title,
		Status:        schema.StatusPending,
		EstimateHours: opts.EstimateHours,
		Complexity:    opts.Complexity,
		Priority:      opts.Priority,
		DependsOn:     opts.DependsOn,
		Tags:          opts.Tags,
	}
	*items = append(*items, task)

	var stats schema.Stats
	for _, item := range *items {
		stats.Count(item.Status)
	}
	idx.Stats = &stats

	if err := writeYAML(path, &idx); err != nil {
		return nil, fmt.Errorf("creating %s: %w", task.ID, err)
	}
	return task, nil
}

// segmentNumber extracts the number from a single identifier segment
// like "P3", "E12", or "T007". Returns 0 when the segment does not
// parse.
func segmentNumber(segment string) int {
	if len(segment) < 2 {
		return 0
	}
	n := 0
	for i := 1; i < len(segment); i++ {
		c := segment[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// lastSegmentNumber extracts the number from the final segment of a
// dotted identifier.
func lastSegmentNumber(id string) int {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		id = id[i+1:]
	}
	return segmentNumber(id)
}
