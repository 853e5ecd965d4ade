// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"time"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// SaveTask persists one task record: hierarchical tasks to their
// content file, bugs and ideas to their flat index. When the task's
// epic index still holds a legacy inline record for it, the entry is
// rewritten in short form, so stores converge on the file layout one
// save at a time.
func (s *Store) SaveTask(task *schema.Task) error {
	switch task.Kind() {
	case taskpath.KindBug:
		return s.saveFlatRecord(s.bugsPath(), task)
	case taskpath.KindIdea:
		return s.saveFlatRecord(s.ideasPath(), task)
	case taskpath.KindTask:
	default:
		return fmt.Errorf("saving task %q: identifier is not a task, bug, or idea", task.ID)
	}

	p, err := taskpath.Parse(task.ID)
	if err != nil {
		return fmt.Errorf("saving task %q: %w", task.ID, err)
	}
	if task.File == "" {
		task.File = relNodeFile(p)
	}

	// A record loaded without its body must not erase the body on
	// disk.
	if task.Body == "" {
		if existing, err := readTaskFile(s.abs(task.File), Full); err == nil {
			task.Body = existing.Body
		}
	}

	data, err := renderTaskFile(task)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.abs(task.File), data); err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}

	return s.upgradeEntry(p, task.ID)
}

// upgradeEntry ensures the owning epic's index lists the task in
// short form. Legacy inline records are replaced; a task missing from
// the index entirely is appended.
func (s *Store) upgradeEntry(p taskpath.Path, taskID string) error {
	epicPath, ok := p.EpicPath()
	if !ok {
		return nil
	}
	name := taskFileName(taskID)
	return s.patchEpic(epicPath, func(f *epicFile) {
		for i, entry := range f.Tasks {
			switch {
			case entry.File == name:
				return
			case entry.Legacy != nil && entry.Legacy.ID == taskID:
				f.Tasks[i] = taskEntry{File: name}
				return
			}
		}
		f.Tasks = append(f.Tasks, taskEntry{File: name})
	})
}

// saveFlatRecord replaces (or appends) one record in a flat index.
func (s *Store) saveFlatRecord(path string, task *schema.Task) error {
	var idx flatIndex
	if err := readYAML(path, &idx); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("saving %s: %w", task.ID, err)
	}

	items := &idx.Bugs
	if task.Kind() == taskpath.KindIdea {
		items = &idx.Ideas
	}
	replaced := false
	for i, existing := range *items {
		if existing.ID == task.ID {
			(*items)[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		*items = append(*items, task)
	}

	var stats schema.Stats
	for _, item := range *items {
		stats.Count(item.Status)
	}
	idx.Stats = &stats

	if err := writeYAML(path, &idx); err != nil {
		return fmt.Errorf("saving %s: %w", task.ID, err)
	}
	return nil
}

// --- node file patching ---
//
// Container indexes are patched read-modify-write so their child
// entry lists round-trip untouched; legacy inline task records in
// particular must survive a stats refresh. A missing node file is
// skipped: it is the validator's finding, not ours.

func (s *Store) patchPhase(p taskpath.Path, apply func(*phaseFile)) error {
	var f phaseFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	apply(&f)
	return writeYAML(s.nodeFile(p), &f)
}

func (s *Store) patchMilestone(p taskpath.Path, apply func(*milestoneFile)) error {
	var f milestoneFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	apply(&f)
	return writeYAML(s.nodeFile(p), &f)
}

func (s *Store) patchEpic(p taskpath.Path, apply func(*epicFile)) error {
	var f epicFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	apply(&f)
	return writeYAML(s.nodeFile(p), &f)
}

// syncContainer writes a container's live status, lock flag, and
// stats into its node file, leaving everything else as stored.
func (s *Store) syncContainer(tree *plan.Tree, id string) error {
	p, err := taskpath.Parse(id)
	if err != nil {
		return fmt.Errorf("syncing %q: %w", id, err)
	}
	switch p.Kind() {
	case taskpath.KindPhase:
		phase, ok := tree.Phase(id)
		if !ok {
			return nil
		}
		return s.patchPhase(p, func(f *phaseFile) {
			f.Status = phase.Status
			f.Locked = phase.Locked
			f.Stats = phase.Stats
		})
	case taskpath.KindMilestone:
		milestone, ok := tree.Milestone(id)
		if !ok {
			return nil
		}
		return s.patchMilestone(p, func(f *milestoneFile) {
			f.Status = milestone.Status
			f.Locked = milestone.Locked
			f.Stats = milestone.Stats
		})
	case taskpath.KindEpic:
		epic, ok := tree.Epic(id)
		if !ok {
			return nil
		}
		return s.patchEpic(p, func(f *epicFile) {
			f.Status = epic.Status
			f.Locked = epic.Locked
			f.Stats = epic.Stats
		})
	}
	return nil
}

// SyncContainers patches the named containers' live status, lock flag,
// and stats into their node files. Callers pass the containers a task
// mutation promoted or demoted.
func (s *Store) SyncContainers(tree *plan.Tree, ids []string) error {
	for _, id := range ids {
		if err := s.syncContainer(tree, id); err != nil {
			return err
		}
	}
	return nil
}

// SaveStats recomputes every stats block from live task statuses and
// patches it into the container indexes, the root index, and the flat
// indexes. Nothing else in the files changes.
func (s *Store) SaveStats(tree *plan.Tree) error {
	tree.RefreshStats()

	for _, phase := range tree.Phases {
		for _, milestone := range phase.Milestones {
			for _, epic := range milestone.Epics {
				ep, err := taskpath.Parse(epic.ID)
				if err != nil {
					return fmt.Errorf("refreshing stats: bad epic id %q", epic.ID)
				}
				if err := s.patchEpic(ep, func(f *epicFile) { f.Stats = epic.Stats }); err != nil {
					return err
				}
			}
			mp, err := taskpath.Parse(milestone.ID)
			if err != nil {
				return fmt.Errorf("refreshing stats: bad milestone id %q", milestone.ID)
			}
			if err := s.patchMilestone(mp, func(f *milestoneFile) { f.Stats = milestone.Stats }); err != nil {
				return err
			}
		}
		pp, err := taskpath.Parse(phase.ID)
		if err != nil {
			return fmt.Errorf("refreshing stats: bad phase id %q", phase.ID)
		}
		if err := s.patchPhase(pp, func(f *phaseFile) { f.Stats = phase.Stats }); err != nil {
			return err
		}
	}

	var idx backlogIndex
	if err := readYAML(s.backlogPath(), &idx); err != nil && !os.IsNotExist(err) {
		return err
	}
	global := tree.Stats()
	idx.Stats = &global
	if err := writeYAML(s.backlogPath(), &idx); err != nil {
		return err
	}

	return s.saveFlatIndexes(tree)
}

func (s *Store) saveFlatIndexes(tree *plan.Tree) error {
	if len(tree.Bugs) > 0 {
		var stats schema.Stats
		for _, bug := range tree.Bugs {
			stats.Count(bug.Status)
		}
		if err := writeYAML(s.bugsPath(), &flatIndex{Bugs: tree.Bugs, Stats: &stats}); err != nil {
			return err
		}
	}
	if len(tree.Ideas) > 0 {
		var stats schema.Stats
		for _, idea := range tree.Ideas {
			stats.Count(idea.Status)
		}
		if err := writeYAML(s.ideasPath(), &flatIndex{Ideas: tree.Ideas, Stats: &stats}); err != nil {
			return err
		}
	}
	return nil
}

// SetItemLocked sets or clears the lock flag on a phase, milestone,
// or epic. Locked containers reject new children.
func (s *Store) SetItemLocked(ref string, locked bool) error {
	tree, err := s.Load(IndexOnly)
	if err != nil {
		return err
	}

	var id string
	switch plan.RefKind(ref) {
	case taskpath.KindEpic:
		epic, ok := tree.Epic(ref)
		if !ok {
			return fmt.Errorf("no epic matches %q", ref)
		}
		id = epic.ID
	case taskpath.KindMilestone:
		milestone, ok := tree.Milestone(ref)
		if !ok {
			return fmt.Errorf("no milestone matches %q", ref)
		}
		id = milestone.ID
	case taskpath.KindPhase:
		phase, ok := tree.Phase(ref)
		if !ok {
			return fmt.Errorf("no phase matches %q", ref)
		}
		id = phase.ID
	default:
		return fmt.Errorf("%q is not a lockable container", ref)
	}

	p, err := taskpath.Parse(id)
	if err != nil {
		return err
	}
	switch p.Kind() {
	case taskpath.KindPhase:
		return s.patchPhase(p, func(f *phaseFile) { f.Locked = locked })
	case taskpath.KindMilestone:
		return s.patchMilestone(p, func(f *milestoneFile) { f.Locked = locked })
	default:
		return s.patchEpic(p, func(f *epicFile) { f.Locked = locked })
	}
}

// SetItemDone force-marks an item and all its descendant tasks DONE,
// then promotes any containers that became complete. Cancelled tasks
// stay cancelled. Returns the identifiers whose status changed.
func (s *Store) SetItemDone(ref string, now time.Time) ([]string, error) {
	return s.setDone(ref, now, true)
}

// SetItemNotDone reopens an item: the task (or every DONE descendant
// task of a container) returns to PENDING with claim and completion
// state cleared, and previously complete ancestors are demoted.
// Returns the identifiers whose status changed.
func (s *Store) SetItemNotDone(ref string, now time.Time) ([]string, error) {
	return s.setDone(ref, now, false)
}

func (s *Store) setDone(ref string, now time.Time, done bool) ([]string, error) {
	tree, err := s.Load(Full)
	if err != nil {
		return nil, err
	}

	var changed []string
	var dirty []*schema.Task
	mark := func(t *schema.Task) {
		if done {
			if t.Status == schema.StatusDone || t.Status == schema.StatusCancelled {
				return
			}
			t.Status = schema.StatusDone
			if t.CompletedAt == nil {
				ts := now.UTC()
				t.CompletedAt = &ts
			}
		} else {
			if t.Status != schema.StatusDone {
				return
			}
			t.Status = schema.StatusPending
			t.Claimant = ""
			t.ClaimedAt = nil
			t.StartedAt = nil
			t.CompletedAt = nil
			t.DurationMinutes = nil
			t.StatusReason = ""
		}
		changed = append(changed, t.ID)
		dirty = append(dirty, t)
	}

	switch plan.RefKind(ref) {
	case taskpath.KindTask, taskpath.KindBug, taskpath.KindIdea:
		task, ok := tree.Task(ref)
		if !ok {
			return nil, fmt.Errorf("no task matches %q", ref)
		}
		mark(task)
	case taskpath.KindEpic:
		epic, ok := tree.Epic(ref)
		if !ok {
			return nil, fmt.Errorf("no epic matches %q", ref)
		}
		for _, task := range epic.Tasks {
			mark(task)
		}
		if len(epic.Tasks) == 0 {
			epic.Status = statusFor(done)
			changed = append(changed, epic.ID)
			// No dirty tasks means the reconcile loop below never
			// runs, so propagate the direct status change here.
			promoted, demoted := tree.ReconcileAbove(epic)
			changed = append(changed, promoted...)
			changed = append(changed, demoted...)
		}
	case taskpath.KindMilestone:
		milestone, ok := tree.Milestone(ref)
		if !ok {
			return nil, fmt.Errorf("no milestone matches %q", ref)
		}
		for _, epic := range milestone.Epics {
			for _, task := range epic.Tasks {
				mark(task)
			}
		}
	case taskpath.KindPhase:
		phase, ok := tree.Phase(ref)
		if !ok {
			return nil, fmt.Errorf("no phase matches %q", ref)
		}
		for _, milestone := range phase.Milestones {
			for _, epic := range milestone.Epics {
				for _, task := range epic.Tasks {
					mark(task)
				}
			}
		}
	default:
		return nil, fmt.Errorf("cannot resolve %q", ref)
	}

	// Reconcile once per affected epic. All marks land before the
	// first reconcile, so shared ancestors flip exactly once.
	seenEpic := make(map[string]bool)
	for _, task := range dirty {
		if epic, ok := tree.EpicOf(task); ok {
			if seenEpic[epic.ID] {
				continue
			}
			seenEpic[epic.ID] = true
		}
		promoted, demoted := tree.ReconcileAncestors(task)
		changed = append(changed, promoted...)
		changed = append(changed, demoted...)
	}

	for _, task := range dirty {
		if task.Kind() == taskpath.KindTask {
			if err := s.SaveTask(task); err != nil {
				return nil, err
			}
		}
	}
	tree.RefreshStats()
	for _, id := range changed {
		if taskpath.KindOf(id) == taskpath.KindTask || taskpath.KindOf(id) == taskpath.KindBug || taskpath.KindOf(id) == taskpath.KindIdea {
			continue
		}
		if err := s.syncContainer(tree, id); err != nil {
			return nil, err
		}
	}
	if err := s.SaveStats(tree); err != nil {
		return nil, err
	}
	return changed, nil
}

func statusFor(done bool) schema.Status {
	if done {
		return schema.StatusDone
	}
	return schema.StatusPending
}
