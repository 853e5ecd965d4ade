// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// MoveItem moves a task into another epic, an epic into another
// milestone, or a milestone into another phase. The moved item is
// renumbered to the destination's next free slot, descendants keep
// their own numbers under the new prefix, and every dependency
// reference anywhere in the store that pointed into the moved subtree
// is rewritten to the new identifiers.
//
// Returns the item's new identifier and the full old-to-new rename
// map. New files are written before old ones are removed, so a crash
// mid-move leaves orphaned files rather than missing ones.
func (s *Store) MoveItem(srcRef, dstRef string) (string, map[string]string, error) {
	tree, err := s.Load(Full)
	if err != nil {
		return "", nil, err
	}

	switch plan.RefKind(srcRef) {
	case taskpath.KindTask:
		return s.moveTask(tree, srcRef, dstRef)
	case taskpath.KindEpic:
		return s.moveEpic(tree, srcRef, dstRef)
	case taskpath.KindMilestone:
		return s.moveMilestone(tree, srcRef, dstRef)
	default:
		return "", nil, fmt.Errorf("cannot move %q: only tasks, epics, and milestones move", srcRef)
	}
}

func (s *Store) moveTask(tree *plan.Tree, srcRef, dstRef string) (string, map[string]string, error) {
	task, ok := tree.Task(srcRef)
	if !ok {
		return "", nil, fmt.Errorf("no task matches %q", srcRef)
	}
	if task.Kind() != taskpath.KindTask {
		return "", nil, fmt.Errorf("%s is not a hierarchical task", task.ID)
	}
	dstEpic, ok := tree.Epic(dstRef)
	if !ok {
		return "", nil, fmt.Errorf("no epic matches %q", dstRef)
	}
	if dstEpic.Locked {
		return "", nil, fmt.Errorf("epic %s is locked", dstEpic.ID)
	}
	srcEpic, ok := tree.EpicOf(task)
	if !ok {
		return "", nil, fmt.Errorf("task %s has no resolvable epic", task.ID)
	}
	if srcEpic.ID == dstEpic.ID {
		return "", nil, fmt.Errorf("task %s is already in epic %s", task.ID, dstEpic.ID)
	}

	newPath, err := taskpath.MustParse(dstEpic.ID).Child(nextChildNumber(epicTaskIDs(dstEpic)))
	if err != nil {
		return "", nil, err
	}
	renames := map[string]string{task.ID: newPath.String()}

	// The task's short-form dependencies referenced siblings in the
	// old epic; freeze them to full identifiers before the context
	// changes under them.
	if len(task.DependsOn) > 0 {
		task.DependsOn = tree.ExpandedDeps(task)
	}

	dirtyTasks, dirtyContainers := remapReferences(tree, renames)

	oldID, oldFile := task.ID, task.File
	srcEpic.Tasks = removeTask(srcEpic.Tasks, oldID)
	mp, _ := newPath.MilestonePath()
	task.ID = newPath.String()
	task.File = relNodeFile(newPath)
	task.Epic = dstEpic.ID
	task.Milestone = mp.String()
	task.Phase = newPath.PhasePath().String()
	dstEpic.Tasks = append(dstEpic.Tasks, task)
	tree.Reindex()

	// New file first, then indexes, then the old file.
	data, err := renderTaskFile(task)
	if err != nil {
		return "", nil, err
	}
	if err := writeFileAtomic(s.abs(task.File), data); err != nil {
		return "", nil, err
	}
	oldName := taskFileName(oldID)
	if err := s.patchEpic(taskpath.MustParse(srcEpic.ID), func(f *epicFile) {
		f.Tasks = removeEntry(f.Tasks, oldName, oldID)
	}); err != nil {
		return "", nil, err
	}
	if err := s.patchEpic(taskpath.MustParse(dstEpic.ID), func(f *epicFile) {
		f.Tasks = append(f.Tasks, taskEntry{File: taskFileName(task.ID)})
	}); err != nil {
		return "", nil, err
	}
	if err := s.persistRemapped(tree, dirtyTasks, dirtyContainers, renames); err != nil {
		return "", nil, err
	}
	if oldFile != "" {
		os.Remove(s.abs(oldFile))
	}
	if err := s.SaveStats(tree); err != nil {
		return "", nil, err
	}
	return task.ID, renames, nil
}

func (s *Store) moveEpic(tree *plan.Tree, srcRef, dstRef string) (string, map[string]string, error) {
	epic, ok := tree.Epic(srcRef)
	if !ok {
		return "", nil, fmt.Errorf("no epic matches %q", srcRef)
	}
	dstMilestone, ok := tree.Milestone(dstRef)
	if !ok {
		return "", nil, fmt.Errorf("no milestone matches %q", dstRef)
	}
	if dstMilestone.Locked {
		return "", nil, fmt.Errorf("milestone %s is locked", dstMilestone.ID)
	}
	srcMilestone, ok := tree.MilestoneOf(epic)
	if !ok {
		return "", nil, fmt.Errorf("epic %s has no resolvable milestone", epic.ID)
	}
	if srcMilestone.ID == dstMilestone.ID {
		return "", nil, fmt.Errorf("epic %s is already in milestone %s", epic.ID, dstMilestone.ID)
	}

	newPath, err := taskpath.MustParse(dstMilestone.ID).Child(nextChildNumber(milestoneEpicIDs(dstMilestone)))
	if err != nil {
		return "", nil, err
	}
	oldID := epic.ID
	oldDir := relNodeDir(taskpath.MustParse(oldID))
	renames := renameSubtree(oldID, newPath.String(), epicTaskIDs(epic))

	dirtyTasks, dirtyContainers := remapReferences(tree, renames)

	srcMilestone.Epics = removeEpic(srcMilestone.Epics, oldID)
	epic.ID = newPath.String()
	epic.Milestone = dstMilestone.ID
	epic.Phase = newPath.PhasePath().String()
	for _, task := range epic.Tasks {
		s.renumberTask(task, renames, epic)
	}
	dstMilestone.Epics = append(dstMilestone.Epics, epic)
	tree.Reindex()

	if err := s.writeEpicSubtree(epic); err != nil {
		return "", nil, err
	}
	if err := s.patchMilestone(taskpath.MustParse(srcMilestone.ID), func(f *milestoneFile) {
		f.Epics = removeRef(f.Epics, oldID)
	}); err != nil {
		return "", nil, err
	}
	if err := s.patchMilestone(taskpath.MustParse(dstMilestone.ID), func(f *milestoneFile) {
		f.Epics = append(f.Epics, epic.ID)
	}); err != nil {
		return "", nil, err
	}
	if err := s.persistRemapped(tree, dirtyTasks, dirtyContainers, renames); err != nil {
		return "", nil, err
	}
	os.RemoveAll(s.abs(oldDir))
	if err := s.SaveStats(tree); err != nil {
		return "", nil, err
	}
	return epic.ID, renames, nil
}

func (s *Store) moveMilestone(tree *plan.Tree, srcRef, dstRef string) (string, map[string]string, error) {
	milestone, ok := tree.Milestone(srcRef)
	if !ok {
		return "", nil, fmt.Errorf("no milestone matches %q", srcRef)
	}
	dstPhase, ok := tree.Phase(dstRef)
	if !ok {
		return "", nil, fmt.Errorf("no phase matches %q", dstRef)
	}
	if dstPhase.Locked {
		return "", nil, fmt.Errorf("phase %s is locked", dstPhase.ID)
	}
	srcPhase, ok := tree.PhaseOf(milestone)
	if !ok {
		return "", nil, fmt.Errorf("milestone %s has no resolvable phase", milestone.ID)
	}
	if srcPhase.ID == dstPhase.ID {
		return "", nil, fmt.Errorf("milestone %s is already in phase %s", milestone.ID, dstPhase.ID)
	}

	newPath, err := taskpath.MustParse(dstPhase.ID).Child(nextChildNumber(phaseMilestoneIDs(dstPhase)))
	if err != nil {
		return "", nil, err
	}
	oldID := milestone.ID
	oldDir := relNodeDir(taskpath.MustParse(oldID))

	var descendants []string
	for _, epic := range milestone.Epics {
		descendants = append(descendants, epic.ID)
		descendants = append(descendants, epicTaskIDs(epic)...)
	}
	renames := renameSubtree(oldID, newPath.String(), descendants)

	dirtyTasks, dirtyContainers := remapReferences(tree, renames)

	srcPhase.Milestones = removeMilestone(srcPhase.Milestones, oldID)
	milestone.ID = newPath.String()
	milestone.Phase = dstPhase.ID
	for _, epic := range milestone.Epics {
		epic.ID = renames[epic.ID]
		epic.Milestone = milestone.ID
		epic.Phase = dstPhase.ID
		for _, task := range epic.Tasks {
			s.renumberTask(task, renames, epic)
		}
	}
	dstPhase.Milestones = append(dstPhase.Milestones, milestone)
	tree.Reindex()

	mp := taskpath.MustParse(milestone.ID)
	if err := writeYAML(s.nodeFile(mp), milestoneFromSchema(milestone)); err != nil {
		return "", nil, err
	}
	for _, epic := range milestone.Epics {
		if err := s.writeEpicSubtree(epic); err != nil {
			return "", nil, err
		}
	}
	if err := s.patchPhase(taskpath.MustParse(srcPhase.ID), func(f *phaseFile) {
		f.Milestones = removeRef(f.Milestones, oldID)
	}); err != nil {
		return "", nil, err
	}
	if err := s.patchPhase(taskpath.MustParse(dstPhase.ID), func(f *phaseFile) {
		f.Milestones = append(f.Milestones, milestone.ID)
	}); err != nil {
		return "", nil, err
	}
	if err := s.persistRemapped(tree, dirtyTasks, dirtyContainers, renames); err != nil {
		return "", nil, err
	}
	os.RemoveAll(s.abs(oldDir))
	if err := s.SaveStats(tree); err != nil {
		return "", nil, err
	}
	return milestone.ID, renames, nil
}

// renumberTask rewrites one moved task's identity fields from the
// rename map and its (already renamed) owning epic.
func (s *Store) renumberTask(task *schema.Task, renames map[string]string, epic *schema.Epic) {
	if newID, ok := renames[task.ID]; ok {
		task.ID = newID
	}
	p, err := taskpath.Parse(task.ID)
	if err != nil {
		return
	}
	mp, _ := p.MilestonePath()
	task.File = relNodeFile(p)
	task.Epic = epic.ID
	task.Milestone = mp.String()
	task.Phase = p.PhasePath().String()
}

// writeEpicSubtree writes an epic's index and every task file at
// their current (post-move) locations. Legacy inline records become
// files in the process.
func (s *Store) writeEpicSubtree(epic *schema.Epic) error {
	for _, task := range epic.Tasks {
		data, err := renderTaskFile(task)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(s.abs(task.File), data); err != nil {
			return err
		}
	}
	ep, err := taskpath.Parse(epic.ID)
	if err != nil {
		return fmt.Errorf("writing epic %q: %w", epic.ID, err)
	}
	return writeYAML(s.nodeFile(ep), epicFromSchema(epic))
}

// remapReferences rewrites every dependency in the tree that resolves
// into the rename map. Must run before the tree is mutated: expansion
// uses each task's current epic context. Returns the hierarchical
// tasks and containers whose records changed.
func remapReferences(tree *plan.Tree, renames map[string]string) ([]*schema.Task, []string) {
	var dirtyTasks []*schema.Task
	var dirtyContainers []string

	for _, task := range tree.AllTasks() {
		changed := false
		for i, dep := range task.DependsOn {
			expanded := tree.ExpandDependency(task, dep)
			if newID, ok := renames[expanded]; ok {
				task.DependsOn[i] = newID
				changed = true
			}
		}
		if changed {
			dirtyTasks = append(dirtyTasks, task)
		}
	}

	remapList := func(id string, deps []string) bool {
		changed := false
		for i, dep := range deps {
			if newID, ok := renames[dep]; ok {
				deps[i] = newID
				changed = true
			}
		}
		return changed
	}
	for _, phase := range tree.Phases {
		if remapList(phase.ID, phase.DependsOn) {
			dirtyContainers = append(dirtyContainers, phase.ID)
		}
		for _, milestone := range phase.Milestones {
			if remapList(milestone.ID, milestone.DependsOn) {
				dirtyContainers = append(dirtyContainers, milestone.ID)
			}
			for _, epic := range milestone.Epics {
				if remapList(epic.ID, epic.DependsOn) {
					dirtyContainers = append(dirtyContainers, epic.ID)
				}
			}
		}
	}
	return dirtyTasks, dirtyContainers
}

// persistRemapped saves records whose dependency lists were rewritten.
// Tasks inside the moved subtree are skipped; the move writes them at
// their new location anyway. Flat records are covered by the stats
// pass that follows every move.
func (s *Store) persistRemapped(tree *plan.Tree, tasks []*schema.Task, containers []string, renames map[string]string) error {
	moved := make(map[string]bool, len(renames))
	for _, newID := range renames {
		moved[newID] = true
	}
	for _, task := range tasks {
		if task.Kind() != taskpath.KindTask || moved[task.ID] {
			continue
		}
		if err := s.SaveTask(task); err != nil {
			return err
		}
	}
	for _, id := range containers {
		p, err := taskpath.Parse(id)
		if err != nil {
			continue
		}
		var patchErr error
		switch p.Kind() {
		case taskpath.KindPhase:
			phase, ok := tree.Phase(id)
			if ok {
				patchErr = s.patchPhase(p, func(f *phaseFile) { f.DependsOn = phase.DependsOn })
			}
		case taskpath.KindMilestone:
			milestone, ok := tree.Milestone(id)
			if ok {
				patchErr = s.patchMilestone(p, func(f *milestoneFile) { f.DependsOn = milestone.DependsOn })
			}
		case taskpath.KindEpic:
			epic, ok := tree.Epic(id)
			if ok {
				patchErr = s.patchEpic(p, func(f *epicFile) { f.DependsOn = epic.DependsOn })
			}
		}
		if patchErr != nil {
			return patchErr
		}
	}
	return nil
}

// --- small helpers ---

func epicTaskIDs(epic *schema.Epic) []string {
	ids := make([]string, 0, len(epic.Tasks))
	for _, t := range epic.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func milestoneEpicIDs(m *schema.Milestone) []string {
	ids := make([]string, 0, len(m.Epics))
	for _, e := range m.Epics {
		ids = append(ids, e.ID)
	}
	return ids
}

func phaseMilestoneIDs(p *schema.Phase) []string {
	ids := make([]string, 0, len(p.Milestones))
	for _, m := range p.Milestones {
		ids = append(ids, m.ID)
	}
	return ids
}

func nextChildNumber(ids []string) int {
	next := 1
	for _, id := range ids {
		if n := lastSegmentNumber(id); n >= next {
			next = n + 1
		}
	}
	return next
}

// renameSubtree maps the moved item and each descendant to its new
// identifier: the old prefix is swapped, the rest of the identifier
// is unchanged.
func renameSubtree(oldID, newID string, descendants []string) map[string]string {
	renames := map[string]string{oldID: newID}
	for _, id := range descendants {
		if strings.HasPrefix(id, oldID+".") {
			renames[id] = newID + strings.TrimPrefix(id, oldID)
		}
	}
	return renames
}

func removeTask(tasks []*schema.Task, id string) []*schema.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func removeEpic(epics []*schema.Epic, id string) []*schema.Epic {
	out := epics[:0]
	for _, e := range epics {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func removeMilestone(milestones []*schema.Milestone, id string) []*schema.Milestone {
	out := milestones[:0]
	for _, m := range milestones {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func removeRef(refs []string, id string) []string {
	out := refs[:0]
	for _, ref := range refs {
		if ref != id {
			out = append(out, ref)
		}
	}
	return out
}

func removeEntry(entries []taskEntry, fileName, id string) []taskEntry {
	out := entries[:0]
	for _, entry := range entries {
		if entry.File == fileName {
			continue
		}
		if entry.Legacy != nil && entry.Legacy.ID == id {
			continue
		}
		out = append(out, entry)
	}
	return out
}
