// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crewplan/crewplan/lib/config"
	"github.com/crewplan/crewplan/lib/journal"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
)

func TestDoneAndNotDone(t *testing.T) {
	root := seedStore(t)
	st := store.Open(root)

	doneP := &doneParams{}
	doneP.Root = root
	doneP.Agent = "operator"
	var out bytes.Buffer
	if err := runSetDone(doneP, []string{"P1.M1.E1"}, true, &out); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "P1.M1.E1 marked done (5 items)") {
		t.Errorf("done output = %q", got)
	}

	tree, err := st.Load(store.Metadata)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, ref := range []string{"P1.M1.E1.T001", "P1.M1.E1.T002"} {
		task, _ := tree.Task(ref)
		if task.Status != schema.StatusDone || task.CompletedAt == nil {
			t.Errorf("%s = %s completed=%v, want DONE", ref, task.Status, task.CompletedAt)
		}
	}
	phase, _ := tree.Phase("P1")
	if phase.Status != schema.StatusDone {
		t.Errorf("phase not promoted, status = %s", phase.Status)
	}

	entries, err := journal.New(st.JournalDir(), config.Default().JournalOptions()).Read()
	if err != nil {
		t.Fatalf("reading journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "done" || entries[0].Task != "P1.M1.E1" || entries[0].Agent != "operator" {
		t.Errorf("journal = %+v, want one done entry for P1.M1.E1", entries)
	}

	// Marking again changes nothing and is not journaled.
	out.Reset()
	if err := runSetDone(doneP, []string{"P1.M1.E1"}, true, &out); err != nil {
		t.Fatalf("repeat done: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "nothing to change") {
		t.Errorf("repeat done output = %q", got)
	}
	entries, _ = journal.New(st.JournalDir(), config.Default().JournalOptions()).Read()
	if len(entries) != 1 {
		t.Errorf("no-op done appended journal entries: %d", len(entries))
	}

	out.Reset()
	if err := runSetDone(doneP, []string{"P1.M1.E1"}, false, &out); err != nil {
		t.Fatalf("not-done: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "P1.M1.E1 reopened (5 items)") {
		t.Errorf("not-done output = %q", got)
	}

	tree, err = st.Load(store.Metadata)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	task, _ := tree.Task("P1.M1.E1.T001")
	if task.Status != schema.StatusPending || task.CompletedAt != nil {
		t.Errorf("reopened task = %s completed=%v, want PENDING", task.Status, task.CompletedAt)
	}
}

func TestDoneFlatItem(t *testing.T) {
	root := seedStore(t)

	doneP := &doneParams{}
	doneP.Root = root
	var out bytes.Buffer
	if err := runSetDone(doneP, []string{"B001"}, true, &out); err != nil {
		t.Fatalf("done bug: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "B001 marked done (1 items)") {
		t.Errorf("done bug output = %q", got)
	}

	tree, err := store.Open(root).Load(store.Metadata)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	bug, _ := tree.Task("B001")
	if bug.Status != schema.StatusDone {
		t.Errorf("bug status = %s, want DONE", bug.Status)
	}
}

func TestMoveRewritesDependencies(t *testing.T) {
	root := seedStore(t)
	st := store.Open(root)
	if _, err := st.CreateMilestone("P1", "Persistence", store.ContainerOptions{}); err != nil {
		t.Fatalf("creating milestone: %v", err)
	}

	moveP := &moveParams{}
	moveP.Root = root
	var out bytes.Buffer
	if err := runMove(moveP, []string{"P1.M1.E1", "P1.M2"}, &out); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "moved P1.M1.E1 -> P1.M2.E1") {
		t.Errorf("move output = %q", got)
	}
	if !strings.Contains(got, "renumbered 3 items") {
		t.Errorf("rename count missing: %q", got)
	}

	tree, err := st.Load(store.Metadata)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := tree.Task("P1.M1.E1.T001"); ok {
		t.Error("task still reachable at old identifier")
	}
	moved, ok := tree.Task("P1.M2.E1.T002")
	if !ok {
		t.Fatal("moved task not found at new identifier")
	}
	if len(moved.DependsOn) != 1 || moved.DependsOn[0] != "P1.M2.E1.T001" {
		t.Errorf("DependsOn = %v, want rewritten to P1.M2.E1.T001", moved.DependsOn)
	}
}

func TestLockBlocksCreation(t *testing.T) {
	root := seedStore(t)

	lockP := &lockParams{}
	lockP.Root = root
	var out bytes.Buffer
	if err := runSetLocked(lockP, []string{"P1.M1.E1"}, true, &out); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "locked P1.M1.E1") {
		t.Errorf("lock output = %q", got)
	}

	taskP := &createTaskParams{}
	taskP.Root = root
	if err := runCreateTask(taskP, []string{"P1.M1.E1", "Should bounce"}, &out); err == nil {
		t.Fatal("expected creation under a locked epic to fail")
	}

	out.Reset()
	if err := runSetLocked(lockP, []string{"P1.M1.E1"}, false, &out); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "unlocked P1.M1.E1") {
		t.Errorf("unlock output = %q", got)
	}
	if err := runCreateTask(taskP, []string{"P1.M1.E1", "Lands fine"}, &out); err != nil {
		t.Fatalf("create after unlock: %v", err)
	}

	if err := runSetLocked(lockP, []string{"P1.M1.E1.T001"}, true, &out); err == nil {
		t.Error("expected error locking a task")
	}
}
