// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"slices"
	"time"

	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// Config carries the scheduling policy knobs. The zero value is not
// usable; start from [DefaultConfig].
type Config struct {
	// Multipliers scale a task's hour estimate by complexity when
	// computing path weights. Missing levels scale by 1.
	Multipliers map[schema.Complexity]float64

	// StaleWarn is the claim age at which AlreadyClaimed errors flag
	// the claim as stale. StaleError is the age at which reclamation
	// may force-reset the claim.
	StaleWarn  time.Duration
	StaleError time.Duration

	// Diversity scores for batch selection. Only the relative order
	// matters: a different phase must outrank a different milestone,
	// which must outrank a different epic.
	PhaseScore     int
	MilestoneScore int
	EpicScore      int

	// BatchSize is the default candidate count for batch selection.
	BatchSize int

	// ImplicitSequential gives a task with no explicit dependency
	// list an implied dependency on its predecessor within the epic.
	ImplicitSequential bool
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		Multipliers: map[schema.Complexity]float64{
			schema.ComplexityLow:      1.0,
			schema.ComplexityMedium:   1.3,
			schema.ComplexityHigh:     1.6,
			schema.ComplexityCritical: 2.0,
		},
		StaleWarn:          60 * time.Minute,
		StaleError:         120 * time.Minute,
		PhaseScore:         1000,
		MilestoneScore:     100,
		EpicScore:          10,
		BatchSize:          3,
		ImplicitSequential: true,
	}
}

// Calculator ranks work over a fixed tree snapshot. Not safe for
// concurrent use.
type Calculator struct {
	tree *plan.Tree
	cfg  Config
	clk  clock.Clock

	// deps holds every task's effective dependency references,
	// expanded to fully qualified form and including the implicit
	// previous-task rule. depEdges holds the same graph flattened to
	// task level: an epic dependency becomes an edge to each of its
	// tasks. dependents is the reverse of depEdges.
	deps       map[string][]string
	depEdges   map[string][]string
	dependents map[string][]string
}

// New builds a calculator over the tree. The clock supplies "now" for
// claim-age decisions; pass [clock.Real] outside tests.
func New(tree *plan.Tree, cfg Config, clk clock.Clock) *Calculator {
	c := &Calculator{
		tree:       tree,
		cfg:        cfg,
		clk:        clk,
		deps:       make(map[string][]string),
		depEdges:   make(map[string][]string),
		dependents: make(map[string][]string),
	}
	c.buildGraph()
	return c
}

func (c *Calculator) buildGraph() {
	for _, task := range c.tree.AllTasks() {
		refs := c.effectiveDeps(task)
		if len(refs) > 0 {
			c.deps[task.ID] = refs
		}
		for _, ref := range refs {
			for _, depID := range c.resolveToTasks(ref) {
				c.depEdges[task.ID] = append(c.depEdges[task.ID], depID)
				c.dependents[depID] = append(c.dependents[depID], task.ID)
			}
		}
	}
	// Deterministic neighbor order regardless of build order.
	for _, edges := range [](map[string][]string){c.depEdges, c.dependents} {
		for id := range edges {
			slices.SortFunc(edges[id], taskpath.CompareIDs)
			edges[id] = slices.Compact(edges[id])
		}
	}
}

// effectiveDeps returns the task's dependency references after short
// form expansion, applying the implicit previous-task rule when the
// explicit list is empty.
func (c *Calculator) effectiveDeps(task *schema.Task) []string {
	if deps := c.tree.ExpandedDeps(task); len(deps) > 0 {
		return deps
	}
	if !c.cfg.ImplicitSequential {
		return nil
	}
	if prev, ok := c.tree.PreviousInEpic(task); ok {
		return []string{prev.ID}
	}
	return nil
}

// resolveToTasks flattens a dependency reference to task identifiers:
// a task reference is itself, an epic reference is every task in the
// epic, anything unresolvable is nothing.
func (c *Calculator) resolveToTasks(ref string) []string {
	if task, ok := c.tree.Task(ref); ok {
		return []string{task.ID}
	}
	if epic, ok := c.tree.Epic(ref); ok {
		ids := make([]string, 0, len(epic.Tasks))
		for _, t := range epic.Tasks {
			ids = append(ids, t.ID)
		}
		return ids
	}
	return nil
}

// --- readiness ---

// CheckDependencies reports whether every effective dependency of the
// task is satisfied: task references must be DONE, epic references
// need every task in the epic DONE. Unresolvable references and empty
// epics are unsatisfied, never an error; the validator reports them.
func (c *Calculator) CheckDependencies(task *schema.Task) bool {
	for _, ref := range c.deps[task.ID] {
		if !c.depSatisfied(ref) {
			return false
		}
	}
	return true
}

func (c *Calculator) depSatisfied(ref string) bool {
	if task, ok := c.tree.Task(ref); ok {
		return task.Status == schema.StatusDone
	}
	if epic, ok := c.tree.Epic(ref); ok {
		if len(epic.Tasks) == 0 {
			return false
		}
		for _, t := range epic.Tasks {
			if t.Status != schema.StatusDone {
				return false
			}
		}
		return true
	}
	return false
}

// available reports whether the task could be claimed right now.
func (c *Calculator) available(task *schema.Task) bool {
	return task.Status == schema.StatusPending &&
		!task.Claimed() &&
		c.CheckDependencies(task)
}

// --- weights ---

// weight is the task's cost on a path: estimate scaled by the
// complexity multiplier.
func (c *Calculator) weight(task *schema.Task) float64 {
	estimate := task.EstimateHours
	if estimate < 0 {
		estimate = 0
	}
	multiplier, ok := c.cfg.Multipliers[task.Complexity]
	if !ok {
		multiplier = 1.0
	}
	return estimate * multiplier
}

// schedulable reports whether the task still represents future work
// and therefore belongs on a path.
func schedulable(task *schema.Task) bool {
	return task.Status != schema.StatusDone && task.Status != schema.StatusCancelled
}

// forwardWeight is the heaviest chain starting at the task and
// following dependent edges through not-done work, including the
// task's own weight. memo is pre-marked with zero before recursion
// so dependency cycles terminate instead of looping.
func (c *Calculator) forwardWeight(id string, memo map[string]float64) float64 {
	if w, ok := memo[id]; ok {
		return w
	}
	memo[id] = 0

	task, ok := c.tree.Task(id)
	if !ok || !schedulable(task) {
		return 0
	}
	best := 0.0
	for _, depID := range c.dependents[id] {
		if w := c.forwardWeight(depID, memo); w > best {
			best = w
		}
	}
	w := c.weight(task) + best
	memo[id] = w
	return w
}

// --- critical path and next available ---

// Calculate returns the critical path as an ordered identifier list
// and the identifier of the next task an agent should claim, or ""
// when nothing is available.
func (c *Calculator) Calculate() (path []string, next string) {
	memo := make(map[string]float64)

	var start *schema.Task
	var startWeight float64
	for _, task := range c.tree.AllTasks() {
		if !schedulable(task) {
			continue
		}
		// Paths begin at work that could start now or is already
		// pending its turn.
		if task.Status != schema.StatusPending && !c.CheckDependencies(task) {
			continue
		}
		w := c.forwardWeight(task.ID, memo)
		if start == nil || heavier(w, task, startWeight, start) {
			start, startWeight = task, w
		}
	}
	if start == nil {
		return nil, c.nextAvailable(nil)
	}

	path = c.walkPath(start, memo)
	return path, c.nextAvailable(path)
}

// heavier reports whether (w, task) outranks the incumbent: more
// weight, then higher priority, then lower identifier.
func heavier(w float64, task *schema.Task, bestW float64, best *schema.Task) bool {
	if w != bestW {
		return w > bestW
	}
	if task.Priority.Rank() != best.Priority.Rank() {
		return task.Priority.Rank() > best.Priority.Rank()
	}
	return taskpath.CompareIDs(task.ID, best.ID) < 0
}

func (c *Calculator) walkPath(start *schema.Task, memo map[string]float64) []string {
	path := []string{start.ID}
	seen := map[string]bool{start.ID: true}
	current := start
	for {
		var next *schema.Task
		var nextWeight float64
		for _, depID := range c.dependents[current.ID] {
			if seen[depID] {
				continue
			}
			task, ok := c.tree.Task(depID)
			if !ok || !schedulable(task) {
				continue
			}
			w := c.forwardWeight(depID, memo)
			if next == nil || heavier(w, task, nextWeight, next) {
				next, nextWeight = task, w
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next.ID)
		seen[next.ID] = true
		current = next
	}
}

// Available returns every claimable task in rank order: ready bugs
// first as a priority-boosted pool, then critical-path work, then the
// rest by descending path weight.
func (c *Calculator) Available() []*schema.Task {
	path, _ := c.Calculate()
	return c.rankAvailable(path)
}

func (c *Calculator) nextAvailable(path []string) string {
	ranked := c.rankAvailable(path)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].ID
}

func (c *Calculator) rankAvailable(path []string) []*schema.Task {
	onPath := make(map[string]bool, len(path))
	for _, id := range path {
		onPath[id] = true
	}
	memo := make(map[string]float64)

	var ranked []*schema.Task
	for _, task := range c.tree.AllTasks() {
		if c.available(task) {
			ranked = append(ranked, task)
		}
	}
	slices.SortFunc(ranked, func(a, b *schema.Task) int {
		if cmp := rankBool(a.Kind() == taskpath.KindBug, b.Kind() == taskpath.KindBug); cmp != 0 {
			return cmp
		}
		if cmp := rankBool(onPath[a.ID], onPath[b.ID]); cmp != 0 {
			return cmp
		}
		wa, wb := c.forwardWeight(a.ID, memo), c.forwardWeight(b.ID, memo)
		if wa != wb {
			if wa > wb {
				return -1
			}
			return 1
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return b.Priority.Rank() - a.Priority.Rank()
		}
		return taskpath.CompareIDs(a.ID, b.ID)
	})
	return ranked
}

// rankBool sorts true before false.
func rankBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return -1
	}
	return 1
}

// --- reachability ---

// HasDependencyRelationship reports whether a and b are connected
// through the dependency graph in either direction, directly or
// transitively. Epic-level dependencies connect through every task of
// the epic.
func (c *Calculator) HasDependencyRelationship(a, b string) bool {
	taskA, okA := c.tree.Task(a)
	taskB, okB := c.tree.Task(b)
	if !okA || !okB || taskA.ID == taskB.ID {
		return false
	}
	return c.reaches(taskA.ID, taskB.ID, c.depEdges) ||
		c.reaches(taskA.ID, taskB.ID, c.dependents)
}

// reaches walks edges breadth-first from start looking for goal.
// Visited marking makes cycles harmless.
func (c *Calculator) reaches(start, goal string, edges map[string][]string) bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range edges[id] {
			if next == goal {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// --- stale claims ---

// StaleClaim is an expired in-progress claim, eligible for forced
// reclamation.
type StaleClaim struct {
	Task *schema.Task
	Age  time.Duration
}

// StaleClaims returns every IN_PROGRESS task whose claim age exceeds
// the error threshold, oldest first. Claims without a timestamp
// cannot be aged and are never reported here; the validator flags
// them instead.
func (c *Calculator) StaleClaims() []StaleClaim {
	now := c.clk.Now()
	var stale []StaleClaim
	for _, task := range c.tree.AllTasks() {
		if task.Status != schema.StatusInProgress {
			continue
		}
		age, ok := task.ClaimAge(now)
		if !ok || age <= c.cfg.StaleError {
			continue
		}
		stale = append(stale, StaleClaim{Task: task, Age: age})
	}
	slices.SortFunc(stale, func(a, b StaleClaim) int {
		if a.Age != b.Age {
			if a.Age > b.Age {
				return -1
			}
			return 1
		}
		return taskpath.CompareIDs(a.Task.ID, b.Task.ID)
	})
	return stale
}

// OldestStaleClaim returns the claim reclamation should reset next.
func (c *Calculator) OldestStaleClaim() (StaleClaim, bool) {
	stale := c.StaleClaims()
	if len(stale) == 0 {
		return StaleClaim{}, false
	}
	return stale[0], true
}
