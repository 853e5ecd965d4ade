// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"slices"

	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// diversityScore rates how far apart two items sit in the hierarchy:
// different phases score highest, different milestones next, then
// different epics within the same milestone. Items in the same epic,
// and flat items against each other, score zero. Flat items against
// hierarchy items count as a different phase.
func (c *Calculator) diversityScore(a, b *schema.Task) int {
	pa, errA := taskpath.Parse(a.ID)
	pb, errB := taskpath.Parse(b.ID)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil || errB != nil:
		return c.cfg.PhaseScore
	case pa.Phase() != pb.Phase():
		return c.cfg.PhaseScore
	case pa.Milestone() != pb.Milestone():
		return c.cfg.MilestoneScore
	case pa.Epic() != pb.Epic():
		return c.cfg.EpicScore
	}
	return 0
}

// FindIndependentTasks selects up to count ready, unclaimed tasks
// with no dependency relationship, direct or transitive, to the
// primary or to each other. Candidates from the primary's own epic
// are never considered. Selection is greedy on summed diversity
// scores against the primary and everything already selected, so the
// batch spreads across the hierarchy instead of clustering.
func (c *Calculator) FindIndependentTasks(primaryRef string, count int) ([]*schema.Task, error) {
	primary, ok := c.tree.Task(primaryRef)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", primaryRef)
	}
	primaryEpic := epicPrefix(primary.ID)

	var candidates []*schema.Task
	for _, task := range c.tree.AllTasks() {
		if task.ID == primary.ID || task.Kind() != taskpath.KindTask {
			continue
		}
		if primaryEpic != "" && epicPrefix(task.ID) == primaryEpic {
			continue
		}
		if !c.available(task) {
			continue
		}
		if c.HasDependencyRelationship(primary.ID, task.ID) {
			continue
		}
		candidates = append(candidates, task)
	}
	return c.selectDiverse(primary, candidates, count), nil
}

// FindSiblingTasks selects up to count ready, unclaimed tasks from
// the primary's own milestone, the nearest pool an agent can pick up
// without losing context. The same independence and diversity rules
// apply, so within the milestone the batch spreads across epics. Flat
// items have no siblings.
func (c *Calculator) FindSiblingTasks(primaryRef string, count int) ([]*schema.Task, error) {
	primary, ok := c.tree.Task(primaryRef)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", primaryRef)
	}
	primaryPath, err := taskpath.Parse(primary.ID)
	if err != nil {
		return nil, nil
	}
	milestonePath, ok := primaryPath.MilestonePath()
	if !ok {
		return nil, nil
	}
	milestone := milestonePath.String()

	var candidates []*schema.Task
	for _, task := range c.tree.AllTasks() {
		if task.ID == primary.ID || task.Kind() != taskpath.KindTask {
			continue
		}
		p, err := taskpath.Parse(task.ID)
		if err != nil {
			continue
		}
		mp, ok := p.MilestonePath()
		if !ok || mp.String() != milestone {
			continue
		}
		if !c.available(task) {
			continue
		}
		if c.HasDependencyRelationship(primary.ID, task.ID) {
			continue
		}
		candidates = append(candidates, task)
	}
	return c.selectDiverse(primary, candidates, count), nil
}

// FindAdditionalBugs selects up to count ready, unclaimed bugs with
// no dependency relationship to the primary or each other, highest
// priority first.
func (c *Calculator) FindAdditionalBugs(primaryRef string, count int) ([]*schema.Task, error) {
	primary, ok := c.tree.Task(primaryRef)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", primaryRef)
	}
	if count <= 0 {
		count = c.cfg.BatchSize
	}

	var candidates []*schema.Task
	for _, bug := range c.tree.Bugs {
		if bug.ID == primary.ID || !c.available(bug) {
			continue
		}
		if c.HasDependencyRelationship(primary.ID, bug.ID) {
			continue
		}
		candidates = append(candidates, bug)
	}
	slices.SortFunc(candidates, func(a, b *schema.Task) int {
		if a.Priority.Rank() != b.Priority.Rank() {
			return b.Priority.Rank() - a.Priority.Rank()
		}
		return taskpath.CompareIDs(a.ID, b.ID)
	})

	var selected []*schema.Task
	for _, bug := range candidates {
		if len(selected) == count {
			break
		}
		if relatedToAny(c, bug, selected) {
			continue
		}
		selected = append(selected, bug)
	}
	return selected, nil
}

// selectDiverse greedily picks the candidate with the highest summed
// diversity score against the primary and everything already
// selected, dropping candidates related to each pick as it goes.
func (c *Calculator) selectDiverse(primary *schema.Task, candidates []*schema.Task, count int) []*schema.Task {
	if count <= 0 {
		count = c.cfg.BatchSize
	}
	var selected []*schema.Task
	for len(selected) < count && len(candidates) > 0 {
		bestIndex := -1
		bestScore := -1
		for i, candidate := range candidates {
			score := c.diversityScore(candidate, primary)
			for _, chosen := range selected {
				score += c.diversityScore(candidate, chosen)
			}
			if score > bestScore || (score == bestScore && bestIndex >= 0 && outranks(candidate, candidates[bestIndex])) {
				bestIndex, bestScore = i, score
			}
		}
		pick := candidates[bestIndex]
		selected = append(selected, pick)

		remaining := candidates[:0]
		for _, candidate := range candidates {
			if candidate.ID == pick.ID {
				continue
			}
			if c.HasDependencyRelationship(pick.ID, candidate.ID) {
				continue
			}
			remaining = append(remaining, candidate)
		}
		candidates = remaining
	}
	return selected
}

// outranks breaks score ties: higher priority, then lower identifier.
func outranks(a, b *schema.Task) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return taskpath.CompareIDs(a.ID, b.ID) < 0
}

func relatedToAny(c *Calculator, task *schema.Task, others []*schema.Task) bool {
	for _, other := range others {
		if c.HasDependencyRelationship(task.ID, other.ID) {
			return true
		}
	}
	return false
}

// epicPrefix returns the canonical epic identifier owning a task, or
// "" for flat and malformed identifiers.
func epicPrefix(id string) string {
	p, err := taskpath.Parse(id)
	if err != nil {
		return ""
	}
	epicPath, ok := p.EpicPath()
	if !ok {
		return ""
	}
	return epicPath.String()
}
