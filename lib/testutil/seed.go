// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
)

// SeedBacklog builds the standard fixture backlog in a fresh temporary
// directory and returns the open store:
//
//	P1               Foundation            2 estimate weeks
//	P1.M1            Data model
//	P1.M1.E1         Schema types
//	P1.M1.E1.T001    Define record types   4h, high priority
//	P1.M1.E1.T002    Wire the codec        2h, depends on T001
//	B001             Index drops trailing newline   1h, critical
//
// Task bodies are the creation template; call [EditBodies] when a test
// needs them to read as edited.
func SeedBacklog(t *testing.T) *store.Store {
	t.Helper()
	s := store.Open(t.TempDir())

	if _, err := s.CreatePhase("Foundation", store.PhaseOptions{EstimateWeeks: 2}); err != nil {
		t.Fatalf("creating phase: %v", err)
	}
	if _, err := s.CreateMilestone("P1", "Data model", store.ContainerOptions{}); err != nil {
		t.Fatalf("creating milestone: %v", err)
	}
	if _, err := s.CreateEpic("P1.M1", "Schema types", store.ContainerOptions{}); err != nil {
		t.Fatalf("creating epic: %v", err)
	}
	if _, err := s.CreateTask("P1.M1.E1", "Define record types", store.TaskOptions{
		EstimateHours: 4,
		Priority:      schema.PriorityHigh,
	}); err != nil {
		t.Fatalf("creating task: %v", err)
	}
	if _, err := s.CreateTask("P1.M1.E1", "Wire the codec", store.TaskOptions{
		EstimateHours: 2,
		DependsOn:     []string{"P1.M1.E1.T001"},
	}); err != nil {
		t.Fatalf("creating task: %v", err)
	}
	if _, err := s.CreateBug("Index drops trailing newline", store.TaskOptions{
		EstimateHours: 1,
		Priority:      schema.PriorityCritical,
	}); err != nil {
		t.Fatalf("creating bug: %v", err)
	}
	return s
}

// EditBodies replaces every hierarchical task's template body with
// short real content.
func EditBodies(t *testing.T, s *store.Store) {
	t.Helper()
	tree, err := s.Load(store.Full)
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}
	for _, epic := range tree.AllEpics() {
		for _, task := range epic.Tasks {
			task.Body = "## Description\n\nReal notes for " + task.ID + ".\n"
			if err := s.SaveTask(task); err != nil {
				t.Fatalf("saving %s: %v", task.ID, err)
			}
		}
	}
}
