// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

func ids(tasks []*schema.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func containsID(tasks []*schema.Task, id string) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// batchTree spreads ready work across three phases with decoys in the
// primary's epic and a candidate wired to the primary.
func batchTree() *plan.Tree {
	return plan.New([]*schema.Phase{
		phase("P1",
			milestone("P1.M1",
				epic("P1.M1.E1",
					task("P1.M1.E1.T001", schema.StatusPending, 2, schema.ComplexityLow),
					task("P1.M1.E1.T002", schema.StatusPending, 2, schema.ComplexityLow),
				),
				epic("P1.M1.E2",
					task("P1.M1.E2.T001", schema.StatusPending, 2, schema.ComplexityLow),
				),
			),
			milestone("P1.M2",
				epic("P1.M2.E1",
					task("P1.M2.E1.T001", schema.StatusPending, 2, schema.ComplexityLow),
				),
			),
		),
		phase("P2", milestone("P2.M1",
			epic("P2.M1.E1",
				task("P2.M1.E1.T001", schema.StatusPending, 2, schema.ComplexityLow),
				task("P2.M1.E1.T002", schema.StatusPending, 2, schema.ComplexityLow, "P1.M1.E1.T001"),
			),
		)),
		phase("P3", milestone("P3.M1",
			epic("P3.M1.E1",
				task("P3.M1.E1.T001", schema.StatusPending, 2, schema.ComplexityLow),
			),
		)),
	}, nil, nil)
}

func TestIndependentTasksSpreadAcrossPhases(t *testing.T) {
	calc := calculator(batchTree())

	selected, err := calc.FindIndependentTasks("P1.M1.E1.T001", 3)
	if err != nil {
		t.Fatalf("FindIndependentTasks: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("selected %v, want 3 tasks", ids(selected))
	}

	phases := map[int]bool{}
	for _, task := range selected {
		p := taskpath.MustParse(task.ID)
		phases[p.Phase()] = true
		if ep, _ := p.EpicPath(); ep.String() == "P1.M1.E1" {
			t.Errorf("selection includes %s from the primary's own epic", task.ID)
		}
	}
	if len(phases) < 2 {
		t.Errorf("selection %v covers %d phases, want at least 2", ids(selected), len(phases))
	}

	// The greedy pass prefers the two foreign phases before falling
	// back to the primary's own phase.
	if !containsID(selected, "P2.M1.E1.T001") || !containsID(selected, "P3.M1.E1.T001") {
		t.Errorf("selection %v missing the foreign-phase tasks", ids(selected))
	}
}

func TestIndependentTasksExcludeRelatedWork(t *testing.T) {
	calc := calculator(batchTree())

	selected, err := calc.FindIndependentTasks("P1.M1.E1.T001", 10)
	if err != nil {
		t.Fatal(err)
	}
	if containsID(selected, "P2.M1.E1.T002") {
		t.Errorf("selection %v includes a task that depends on the primary", ids(selected))
	}
	// The implicit follower of the primary is both same-epic and
	// related; it must never appear.
	if containsID(selected, "P1.M1.E1.T002") {
		t.Errorf("selection %v includes the primary's follower", ids(selected))
	}
}

func TestIndependentTasksDropInBatchRelations(t *testing.T) {
	// B is ready but transitively related to A through a DONE task:
	// B -> D (done) -> A. Only one of A and B may be selected.
	a := task("P2.M1.E1.T001", schema.StatusPending, 2, schema.ComplexityLow)
	d := task("P2.M2.E1.T001", schema.StatusDone, 2, schema.ComplexityLow, "P2.M1.E1.T001")
	b := task("P2.M2.E1.T002", schema.StatusPending, 2, schema.ComplexityLow, "T001")
	tree := plan.New([]*schema.Phase{
		phase("P1", milestone("P1.M1", epic("P1.M1.E1",
			task("P1.M1.E1.T001", schema.StatusPending, 2, schema.ComplexityLow),
		))),
		phase("P2",
			milestone("P2.M1", epic("P2.M1.E1", a)),
			milestone("P2.M2", epic("P2.M2.E1", d, b)),
		),
	}, nil, nil)

	calc := calculator(tree)
	selected, err := calc.FindIndependentTasks("P1.M1.E1.T001", 5)
	if err != nil {
		t.Fatal(err)
	}
	if containsID(selected, a.ID) && containsID(selected, b.ID) {
		t.Errorf("selection %v contains both ends of a transitive relationship", ids(selected))
	}
}

func TestIndependentTasksDefaultCount(t *testing.T) {
	calc := calculator(batchTree())
	selected, err := calc.FindIndependentTasks("P1.M1.E1.T001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != DefaultConfig().BatchSize {
		t.Errorf("selected %d tasks, want the default batch size %d", len(selected), DefaultConfig().BatchSize)
	}
}

func TestIndependentTasksUnknownPrimary(t *testing.T) {
	calc := calculator(batchTree())
	if _, err := calc.FindIndependentTasks("P9.M9.E9.T999", 3); err == nil {
		t.Error("unknown primary accepted")
	}
}

func TestSiblingTasksStayInMilestone(t *testing.T) {
	calc := calculator(batchTree())

	selected, err := calc.FindSiblingTasks("P1.M1.E1.T001", 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"P1.M1.E2.T001"}
	if len(selected) != 1 || selected[0].ID != want[0] {
		t.Errorf("siblings = %v, want %v", ids(selected), want)
	}

	// Flat items have no siblings.
	tree := batchTree()
	tree.Bugs = []*schema.Task{task("B001", schema.StatusPending, 1, schema.ComplexityLow)}
	tree.Reindex()
	calc = calculator(tree)
	selected, err = calc.FindSiblingTasks("B001", 5)
	if err != nil || len(selected) != 0 {
		t.Errorf("bug siblings = %v, %v; want none", ids(selected), err)
	}
}

func TestAdditionalBugsByPriority(t *testing.T) {
	tree := batchTree()
	critical := task("B001", schema.StatusPending, 1, schema.ComplexityLow)
	critical.Priority = schema.PriorityCritical
	low := task("B002", schema.StatusPending, 1, schema.ComplexityLow)
	low.Priority = schema.PriorityLow
	blocked := task("B003", schema.StatusPending, 1, schema.ComplexityLow, "B001")
	medium := task("B004", schema.StatusPending, 1, schema.ComplexityLow)
	tree.Bugs = []*schema.Task{critical, low, blocked, medium}
	tree.Reindex()

	calc := calculator(tree)
	selected, err := calc.FindAdditionalBugs("P1.M1.E1.T001", 2)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(selected)
	if len(got) != 2 || got[0] != "B001" || got[1] != "B004" {
		t.Errorf("bugs = %v, want [B001 B004]", got)
	}
	if containsID(selected, "B003") {
		t.Error("bug with an unsatisfied dependency selected")
	}
}
