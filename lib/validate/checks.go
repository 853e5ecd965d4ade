// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"math"
	"sort"
	"strings"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// CheckTree runs every in-memory structural check against a loaded
// tree. File presence and run-state checks need a store on disk and
// happen only in [RunChecks].
func CheckTree(tree *plan.Tree, opts Options) *Result {
	r := &Result{}
	r.runTreeChecks(tree)
	r.finalize(opts.Strict)
	return r
}

func (r *Result) runTreeChecks(tree *plan.Tree) {
	r.checkIdentifiers(tree)
	r.checkParents(tree)
	r.checkDependencies(tree)
	r.checkCycles(tree)
	r.checkEstimates(tree)
	r.checkContent(tree)
}

// --- identifiers ---

func (r *Result) checkIdentifiers(tree *plan.Tree) {
	seen := make(map[string]int)
	var order []string
	note := func(id string, want taskpath.Kind, what string) {
		if seen[id] == 0 {
			order = append(order, id)
		}
		seen[id]++
		if !taskpath.Canonical(id) {
			r.error("invalid_id", id, "%s identifier %q is not canonical", what, id)
			return
		}
		if got := taskpath.KindOf(id); got != want {
			r.error("invalid_id", id, "%s record carries a %s identifier", what, got)
		}
	}

	for _, phase := range tree.Phases {
		note(phase.ID, taskpath.KindPhase, "phase")
		for _, milestone := range phase.Milestones {
			note(milestone.ID, taskpath.KindMilestone, "milestone")
			for _, epic := range milestone.Epics {
				note(epic.ID, taskpath.KindEpic, "epic")
				for _, task := range epic.Tasks {
					note(task.ID, taskpath.KindTask, "task")
				}
			}
		}
	}
	for _, bug := range tree.Bugs {
		note(bug.ID, taskpath.KindBug, "bug")
	}
	for _, idea := range tree.Ideas {
		note(idea.ID, taskpath.KindIdea, "idea")
	}

	for _, id := range order {
		if n := seen[id]; n > 1 {
			r.error("duplicate_id", id, "identifier appears %d times", n)
		}
	}
}

// --- parent pointers ---

// checkParents verifies both directions of the hierarchy: each item's
// identifier must place it where the indexes filed it, and the
// denormalized ancestry fields, when set, must agree. Items whose
// identifiers do not parse were already reported and are skipped.
func (r *Result) checkParents(tree *plan.Tree) {
	for _, phase := range tree.Phases {
		for _, milestone := range phase.Milestones {
			mp, err := taskpath.Parse(milestone.ID)
			if err == nil && mp.PhasePath().String() != phase.ID {
				r.error("parent_mismatch", milestone.ID,
					"identifier places it in %s but it is filed under %s", mp.PhasePath(), phase.ID)
			}
			if milestone.Phase != "" && milestone.Phase != phase.ID {
				r.error("parent_mismatch", milestone.ID,
					"phase field is %q but it is filed under %s", milestone.Phase, phase.ID)
			}
			for _, epic := range milestone.Epics {
				ep, err := taskpath.Parse(epic.ID)
				if err == nil {
					if parent, ok := ep.MilestonePath(); ok && parent.String() != milestone.ID {
						r.error("parent_mismatch", epic.ID,
							"identifier places it in %s but it is filed under %s", parent, milestone.ID)
					}
				}
				if epic.Milestone != "" && epic.Milestone != milestone.ID {
					r.error("parent_mismatch", epic.ID,
						"milestone field is %q but it is filed under %s", epic.Milestone, milestone.ID)
				}
				if epic.Phase != "" && epic.Phase != phase.ID {
					r.error("parent_mismatch", epic.ID,
						"phase field is %q but it is filed under %s", epic.Phase, phase.ID)
				}
				for _, task := range epic.Tasks {
					tp, err := taskpath.Parse(task.ID)
					if err == nil {
						if parent, ok := tp.EpicPath(); ok && parent.String() != epic.ID {
							r.error("parent_mismatch", task.ID,
								"identifier places it in %s but it is filed under %s", parent, epic.ID)
						}
					}
					if task.Epic != "" && task.Epic != epic.ID {
						r.error("parent_mismatch", task.ID,
							"epic field is %q but it is filed under %s", task.Epic, epic.ID)
					}
					if task.Milestone != "" && task.Milestone != milestone.ID {
						r.error("parent_mismatch", task.ID,
							"milestone field is %q but it is filed under %s", task.Milestone, milestone.ID)
					}
					if task.Phase != "" && task.Phase != phase.ID {
						r.error("parent_mismatch", task.ID,
							"phase field is %q but it is filed under %s", task.Phase, phase.ID)
					}
				}
			}
		}
	}
}

// --- dependencies ---

// checkDependencies reports self-references and references that
// resolve to nothing. Task dependencies may target any task-level
// item or an epic; container dependencies stay within their level.
func (r *Result) checkDependencies(tree *plan.Tree) {
	for _, task := range tree.AllTasks() {
		for _, dep := range task.DependsOn {
			expanded := tree.ExpandDependency(task, dep)
			if target, ok := tree.Task(expanded); ok {
				if target.ID == task.ID {
					r.error("self_dependency", task.ID, "depends on itself via %q", dep)
				}
				continue
			}
			if _, ok := tree.Epic(expanded); ok {
				continue
			}
			r.error("dangling_dependency", task.ID,
				"dependency %q does not resolve to a task or epic", dep)
		}
	}

	for _, epic := range tree.AllEpics() {
		for _, dep := range epic.DependsOn {
			target, ok := tree.Epic(dep)
			if !ok {
				r.error("dangling_dependency", epic.ID,
					"dependency %q does not resolve to an epic", dep)
				continue
			}
			if target.ID == epic.ID {
				r.error("self_dependency", epic.ID, "depends on itself via %q", dep)
			}
		}
	}
	for _, phase := range tree.Phases {
		for _, milestone := range phase.Milestones {
			for _, dep := range milestone.DependsOn {
				target, ok := tree.Milestone(dep)
				if !ok {
					r.error("dangling_dependency", milestone.ID,
						"dependency %q does not resolve to a milestone", dep)
					continue
				}
				if target.ID == milestone.ID {
					r.error("self_dependency", milestone.ID, "depends on itself via %q", dep)
				}
			}
		}
		for _, dep := range phase.DependsOn {
			target, ok := tree.Phase(dep)
			if !ok {
				r.error("dangling_dependency", phase.ID,
					"dependency %q does not resolve to a phase", dep)
				continue
			}
			if target.ID == phase.ID {
				r.error("self_dependency", phase.ID, "depends on itself via %q", dep)
			}
		}
	}
}

// --- cycles ---

// checkCycles runs independent cycle detection over the four
// dependency graphs: tasks and bugs, epics, milestones, phases. A
// task dependency that names an epic is flattened to an edge per
// member task, matching how the scheduler resolves it. Each graph
// reports at most ten cycles with their full chains; a backlog with
// hundreds of findings in one graph is already unambiguous.
func (r *Result) checkCycles(tree *plan.Tree) {
	var taskNodes []string
	taskEdges := make(map[string][]string)
	for _, task := range tree.AllTasks() {
		if task.Kind() == taskpath.KindIdea {
			continue
		}
		taskNodes = append(taskNodes, task.ID)
		for _, dep := range task.DependsOn {
			expanded := tree.ExpandDependency(task, dep)
			if target, ok := tree.Task(expanded); ok {
				if target.ID == task.ID || target.Kind() == taskpath.KindIdea {
					continue
				}
				taskEdges[task.ID] = append(taskEdges[task.ID], target.ID)
				continue
			}
			if epic, ok := tree.Epic(expanded); ok {
				// A task depending on its own epic waits on itself;
				// that edge stays so the loop is reported.
				for _, member := range epic.Tasks {
					taskEdges[task.ID] = append(taskEdges[task.ID], member.ID)
				}
			}
		}
	}
	r.reportCycles("task_dependency_cycle", taskNodes, taskEdges)

	var epicNodes []string
	epicEdges := make(map[string][]string)
	for _, epic := range tree.AllEpics() {
		epicNodes = append(epicNodes, epic.ID)
		for _, dep := range epic.DependsOn {
			if target, ok := tree.Epic(dep); ok && target.ID != epic.ID {
				epicEdges[epic.ID] = append(epicEdges[epic.ID], target.ID)
			}
		}
	}
	r.reportCycles("epic_dependency_cycle", epicNodes, epicEdges)

	var milestoneNodes, phaseNodes []string
	milestoneEdges := make(map[string][]string)
	phaseEdges := make(map[string][]string)
	for _, phase := range tree.Phases {
		phaseNodes = append(phaseNodes, phase.ID)
		for _, dep := range phase.DependsOn {
			if target, ok := tree.Phase(dep); ok && target.ID != phase.ID {
				phaseEdges[phase.ID] = append(phaseEdges[phase.ID], target.ID)
			}
		}
		for _, milestone := range phase.Milestones {
			milestoneNodes = append(milestoneNodes, milestone.ID)
			for _, dep := range milestone.DependsOn {
				if target, ok := tree.Milestone(dep); ok && target.ID != milestone.ID {
					milestoneEdges[milestone.ID] = append(milestoneEdges[milestone.ID], target.ID)
				}
			}
		}
	}
	r.reportCycles("milestone_dependency_cycle", milestoneNodes, milestoneEdges)
	r.reportCycles("phase_dependency_cycle", phaseNodes, phaseEdges)
}

// reportCycles finds cycles by depth-first search and reports each
// back edge's chain. Traversal order is sorted, so the same store
// always yields the same findings.
func (r *Result) reportCycles(code string, nodes []string, edges map[string][]string) {
	const maxReports = 10

	sort.Strings(nodes)
	for _, adjacent := range edges {
		sort.Strings(adjacent)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(nodes))
	var path []string
	reported := 0

	var visit func(node string)
	visit = func(node string) {
		state[node] = gray
		path = append(path, node)
		for _, next := range edges[node] {
			if reported >= maxReports {
				break
			}
			switch state[next] {
			case white:
				visit(next)
			case gray:
				start := len(path) - 1
				for start >= 0 && path[start] != next {
					start--
				}
				chain := append(append([]string{}, path[start:]...), next)
				r.error(code, next, "dependency cycle: %s", strings.Join(chain, " -> "))
				reported++
			}
		}
		path = path[:len(path)-1]
		state[node] = black
	}

	for _, node := range nodes {
		if reported >= maxReports {
			return
		}
		if state[node] == white {
			visit(node)
		}
	}
}

// --- hygiene warnings ---

// checkEstimates flags open tasks and bugs the scheduler cannot
// weigh. Ideas live in the parking lot and are exempt.
func (r *Result) checkEstimates(tree *plan.Tree) {
	for _, task := range tree.AllTasks() {
		if task.Kind() == taskpath.KindIdea {
			continue
		}
		if task.Status == schema.StatusDone || task.Status == schema.StatusCancelled {
			continue
		}
		if task.EstimateHours <= 0 || math.IsNaN(task.EstimateHours) {
			r.warning("zero_estimate", task.ID, "open item has no usable estimate")
		}
	}
}

// checkContent flags task bodies still carrying the unedited creation
// template. Bodies are only present on a full load; a metadata-only
// tree produces no content findings.
func (r *Result) checkContent(tree *plan.Tree) {
	for _, task := range tree.AllTasks() {
		if task.Kind() != taskpath.KindTask || task.Body == "" {
			continue
		}
		if store.IsPlaceholderBody(task.Body) {
			r.warning("placeholder_content", task.ID, "task body is still the unedited template")
		}
	}
}
