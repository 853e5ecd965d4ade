// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"strings"

	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// Tree is the root aggregate over the whole backlog. The exported
// slices are the owned hierarchy; the store populates them and calls
// [Tree.Reindex] after any structural change.
type Tree struct {
	Phases []*schema.Phase
	Bugs   []*schema.Task
	Ideas  []*schema.Task

	tasks      map[string]*schema.Task
	epics      map[string]*schema.Epic
	milestones map[string]*schema.Milestone
	phases     map[string]*schema.Phase

	// Deterministic iteration order for tolerant lookup and listing:
	// hierarchy in tree order, then bugs, then ideas.
	orderedTasks []*schema.Task
	orderedEpics []*schema.Epic
}

// New assembles a tree and builds its lookup indexes.
func New(phases []*schema.Phase, bugs, ideas []*schema.Task) *Tree {
	t := &Tree{Phases: phases, Bugs: bugs, Ideas: ideas}
	t.Reindex()
	return t
}

// Reindex rebuilds every lookup index from the owned collections.
// Duplicate identifiers keep the first occurrence; the validator
// reports the duplication itself.
func (t *Tree) Reindex() {
	t.tasks = make(map[string]*schema.Task)
	t.epics = make(map[string]*schema.Epic)
	t.milestones = make(map[string]*schema.Milestone)
	t.phases = make(map[string]*schema.Phase)
	t.orderedTasks = t.orderedTasks[:0]
	t.orderedEpics = t.orderedEpics[:0]

	for _, phase := range t.Phases {
		putFirst(t.phases, phase.ID, phase)
		for _, milestone := range phase.Milestones {
			putFirst(t.milestones, milestone.ID, milestone)
			for _, epic := range milestone.Epics {
				putFirst(t.epics, epic.ID, epic)
				t.orderedEpics = append(t.orderedEpics, epic)
				for _, task := range epic.Tasks {
					putFirst(t.tasks, task.ID, task)
					t.orderedTasks = append(t.orderedTasks, task)
				}
			}
		}
	}
	for _, bug := range t.Bugs {
		putFirst(t.tasks, bug.ID, bug)
		t.orderedTasks = append(t.orderedTasks, bug)
	}
	for _, idea := range t.Ideas {
		putFirst(t.tasks, idea.ID, idea)
		t.orderedTasks = append(t.orderedTasks, idea)
	}
}

func putFirst[V any](m map[string]V, key string, v V) {
	if _, exists := m[key]; !exists {
		m[key] = v
	}
}

// --- lookup ---

// refMatches implements tolerant matching in both directions: the
// stored identifier may be the short legacy form, or the reference
// may be.
func refMatches(id, ref string) bool {
	return taskpath.Matches(id, ref) || taskpath.Matches(ref, id)
}

// RefKind classifies a possibly-short reference by the letter of its
// final segment: T/B/I resolve at task level, E epics, M milestones,
// P phases. References whose final segment carries no level letter
// are KindInvalid.
func RefKind(ref string) taskpath.Kind {
	if ref == "" {
		return taskpath.KindInvalid
	}
	last := ref
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		last = ref[i+1:]
	}
	if last == "" {
		return taskpath.KindInvalid
	}
	switch last[0] {
	case 'T':
		return taskpath.KindTask
	case 'B':
		return taskpath.KindBug
	case 'I':
		return taskpath.KindIdea
	case 'E':
		return taskpath.KindEpic
	case 'M':
		return taskpath.KindMilestone
	case 'P':
		return taskpath.KindPhase
	}
	return taskpath.KindInvalid
}

// Task resolves a task, bug, or idea reference: exact identifier
// first, then unique tolerant match. Ambiguous references resolve to
// nothing.
func (t *Tree) Task(ref string) (*schema.Task, bool) {
	if task, ok := t.tasks[ref]; ok {
		return task, true
	}
	matches := t.MatchTasks(ref)
	if len(matches) != 1 {
		return nil, false
	}
	return matches[0], true
}

// MatchTasks returns every task whose identifier tolerantly matches
// ref, in tree order. Callers use this to report ambiguity.
func (t *Tree) MatchTasks(ref string) []*schema.Task {
	var matches []*schema.Task
	for _, task := range t.orderedTasks {
		if refMatches(task.ID, ref) {
			matches = append(matches, task)
		}
	}
	return matches
}

// Epic resolves an epic reference tolerantly.
func (t *Tree) Epic(ref string) (*schema.Epic, bool) {
	if epic, ok := t.epics[ref]; ok {
		return epic, true
	}
	var hit *schema.Epic
	count := 0
	for _, epic := range t.orderedEpics {
		if refMatches(epic.ID, ref) {
			hit = epic
			count++
		}
	}
	if count != 1 {
		return nil, false
	}
	return hit, true
}

// Milestone resolves a milestone reference tolerantly.
func (t *Tree) Milestone(ref string) (*schema.Milestone, bool) {
	if m, ok := t.milestones[ref]; ok {
		return m, true
	}
	var hit *schema.Milestone
	count := 0
	for _, phase := range t.Phases {
		for _, m := range phase.Milestones {
			if refMatches(m.ID, ref) {
				hit = m
				count++
			}
		}
	}
	if count != 1 {
		return nil, false
	}
	return hit, true
}

// Phase resolves a phase reference. Phase identifiers have no short
// form, so this is an exact lookup.
func (t *Tree) Phase(ref string) (*schema.Phase, bool) {
	phase, ok := t.phases[ref]
	return phase, ok
}

// --- ancestry ---

// EpicOf returns the epic owning the task, resolved from the task's
// identifier position. Flat items have no epic.
func (t *Tree) EpicOf(task *schema.Task) (*schema.Epic, bool) {
	p, err := taskpath.Parse(task.ID)
	if err != nil {
		return nil, false
	}
	epicPath, ok := p.EpicPath()
	if !ok {
		return nil, false
	}
	epic, ok := t.epics[epicPath.String()]
	return epic, ok
}

// MilestoneOf returns the milestone owning the epic.
func (t *Tree) MilestoneOf(epic *schema.Epic) (*schema.Milestone, bool) {
	p, err := taskpath.Parse(epic.ID)
	if err != nil {
		return nil, false
	}
	milestonePath, ok := p.MilestonePath()
	if !ok {
		return nil, false
	}
	m, ok := t.milestones[milestonePath.String()]
	return m, ok
}

// PhaseOf returns the phase owning the milestone.
func (t *Tree) PhaseOf(milestone *schema.Milestone) (*schema.Phase, bool) {
	p, err := taskpath.Parse(milestone.ID)
	if err != nil {
		return nil, false
	}
	phase, ok := t.phases[p.PhasePath().String()]
	return phase, ok
}

// --- iteration ---

// AllTasks returns every task-level record: hierarchy tasks in tree
// order, then bugs, then ideas. The returned slice is shared; callers
// must not modify it.
func (t *Tree) AllTasks() []*schema.Task {
	return t.orderedTasks
}

// AllEpics returns every epic in tree order. Shared slice; read only.
func (t *Tree) AllEpics() []*schema.Epic {
	return t.orderedEpics
}

// PreviousInEpic returns the task immediately before task in its
// epic's ordered list. It reports false for the first task of an
// epic, for flat items, and for tasks whose epic is not in the tree.
func (t *Tree) PreviousInEpic(task *schema.Task) (*schema.Task, bool) {
	epic, ok := t.EpicOf(task)
	if !ok {
		return nil, false
	}
	for i, candidate := range epic.Tasks {
		if candidate.ID == task.ID {
			if i == 0 {
				return nil, false
			}
			return epic.Tasks[i-1], true
		}
	}
	return nil, false
}

// --- dependency expansion ---

// ExpandDependency qualifies a bare dependency reference using the
// referencing task's own position: T007 becomes a sibling task in the
// same epic, E2 an epic in the same milestone, M3 a milestone in the
// same phase. Fully qualified references and flat identifiers pass
// through unchanged, as does everything referenced from a flat item,
// which has no position to borrow.
func (t *Tree) ExpandDependency(task *schema.Task, dep string) string {
	if dep == "" {
		return dep
	}
	own, err := taskpath.Parse(task.ID)
	if err != nil {
		// Flat items and malformed owners cannot provide context.
		return dep
	}
	switch dep[0] {
	case 'T':
		if epicPath, ok := own.EpicPath(); ok {
			return epicPath.String() + "." + dep
		}
	case 'E':
		if milestonePath, ok := own.MilestonePath(); ok {
			return milestonePath.String() + "." + dep
		}
	case 'M':
		return own.PhasePath().String() + "." + dep
	}
	return dep
}

// ExpandedDeps returns the task's explicit dependency list with every
// short form qualified. The implicit previous-task rule is scheduler
// policy and is not applied here.
func (t *Tree) ExpandedDeps(task *schema.Task) []string {
	if len(task.DependsOn) == 0 {
		return nil
	}
	deps := make([]string, 0, len(task.DependsOn))
	for _, dep := range task.DependsOn {
		deps = append(deps, t.ExpandDependency(task, dep))
	}
	return deps
}

// --- statistics ---

// Stats derives the global status counts across the hierarchy and
// both flat queues.
func (t *Tree) Stats() schema.Stats {
	var s schema.Stats
	for _, phase := range t.Phases {
		s.Merge(phase.ComputeStats())
	}
	for _, bug := range t.Bugs {
		s.Count(bug.Status)
	}
	for _, idea := range t.Ideas {
		s.Count(idea.Status)
	}
	return s
}

// ReconcileAncestors re-derives the done state of the task's epic,
// milestone, and phase after the task changed status. The epic is
// judged by its tasks, the milestone by its epics, and the phase by
// its milestones, each read from current statuses rather than stored
// counters. A container whose last open child closes is flagged
// DONE; a container flagged DONE that has open work again reverts to
// IN_PROGRESS. A phase is additionally lock-flagged when it
// completes and unlocked when it reverts. Returns the identifiers of
// containers that flipped in each direction. Flat items have no
// ancestors and reconcile nothing.
func (t *Tree) ReconcileAncestors(task *schema.Task) (promoted, demoted []string) {
	epic, ok := t.EpicOf(task)
	if !ok {
		return nil, nil
	}
	return t.reconcileFrom(epic, true)
}

// ReconcileAbove re-derives the milestone and phase above an epic
// whose own status was set directly, such as an empty epic closed by
// hand. The epic itself is left as the caller set it.
func (t *Tree) ReconcileAbove(epic *schema.Epic) (promoted, demoted []string) {
	return t.reconcileFrom(epic, false)
}

func (t *Tree) reconcileFrom(epic *schema.Epic, includeEpic bool) (promoted, demoted []string) {
	flip := func(id string, status *schema.Status, complete bool) bool {
		switch {
		case complete && *status != schema.StatusDone:
			*status = schema.StatusDone
			promoted = append(promoted, id)
		case !complete && *status == schema.StatusDone:
			*status = schema.StatusInProgress
			demoted = append(demoted, id)
		default:
			return false
		}
		return true
	}

	if includeEpic {
		flip(epic.ID, &epic.Status, epic.ComputeStats().IsComplete())
	}

	milestone, ok := t.MilestoneOf(epic)
	if !ok {
		return promoted, demoted
	}
	flip(milestone.ID, &milestone.Status, milestoneComplete(milestone))

	phase, ok := t.PhaseOf(milestone)
	if !ok {
		return promoted, demoted
	}
	if flip(phase.ID, &phase.Status, phaseComplete(phase)) {
		// Completed phases are closed to new children; reverting
		// reopens them.
		phase.Locked = phase.Status == schema.StatusDone
	}
	return promoted, demoted
}

// milestoneComplete reports whether every epic in the milestone is
// closed (DONE or CANCELLED) with at least one DONE. Containers are
// judged by their direct children, not by aggregated leaf counts, so
// an epic that has no tasks yet holds its milestone open.
func milestoneComplete(m *schema.Milestone) bool {
	done := 0
	for _, epic := range m.Epics {
		switch epic.Status {
		case schema.StatusDone:
			done++
		case schema.StatusCancelled:
		default:
			return false
		}
	}
	return done > 0
}

// phaseComplete is milestoneComplete one level up.
func phaseComplete(p *schema.Phase) bool {
	done := 0
	for _, milestone := range p.Milestones {
		switch milestone.Status {
		case schema.StatusDone:
			done++
		case schema.StatusCancelled:
		default:
			return false
		}
	}
	return done > 0
}

// RefreshStats recomputes the persisted stats block on every phase,
// milestone, and epic. Save paths call this so written summaries are
// current.
func (t *Tree) RefreshStats() {
	for _, phase := range t.Phases {
		for _, milestone := range phase.Milestones {
			for _, epic := range milestone.Epics {
				stats := epic.ComputeStats()
				epic.Stats = &stats
			}
			stats := milestone.ComputeStats()
			milestone.Stats = &stats
		}
		stats := phase.ComputeStats()
		phase.Stats = &stats
	}
}
