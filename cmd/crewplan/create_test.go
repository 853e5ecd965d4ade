// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
)

func TestCreateHierarchy(t *testing.T) {
	t.Setenv("CREWPLAN_CONFIG", "")
	root := t.TempDir()

	var out bytes.Buffer
	phaseParams := &createPhaseParams{EstimateWeeks: 3}
	phaseParams.Root = root
	if err := runCreatePhase(phaseParams, []string{"Foundation"}, &out); err != nil {
		t.Fatalf("create phase: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created P1  Foundation") {
		t.Errorf("phase output = %q, want created P1", got)
	}

	out.Reset()
	milestoneParams := &createContainerParams{}
	milestoneParams.Root = root
	if err := runCreateMilestone(milestoneParams, []string{"P1", "Data model"}, &out); err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created P1.M1") {
		t.Errorf("milestone output = %q, want created P1.M1", got)
	}

	out.Reset()
	epicParams := &createContainerParams{Estimate: 12}
	epicParams.Root = root
	if err := runCreateEpic(epicParams, []string{"P1.M1", "Schema types"}, &out); err != nil {
		t.Fatalf("create epic: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created P1.M1.E1") {
		t.Errorf("epic output = %q, want created P1.M1.E1", got)
	}

	out.Reset()
	taskParams := &createTaskParams{Estimate: 4, Priority: "high", Tags: []string{"backend"}}
	taskParams.Root = root
	if err := runCreateTask(taskParams, []string{"P1.M1.E1", "Define record types"}, &out); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created P1.M1.E1.T001") {
		t.Errorf("task output = %q, want created P1.M1.E1.T001", got)
	}

	tree, err := store.Open(root).Load(store.Full)
	if err != nil {
		t.Fatalf("loading store back: %v", err)
	}
	task, ok := tree.Task("P1.M1.E1.T001")
	if !ok {
		t.Fatal("created task not found on reload")
	}
	if task.EstimateHours != 4 {
		t.Errorf("EstimateHours = %v, want 4", task.EstimateHours)
	}
	if task.Body == "" {
		t.Error("task body template missing")
	}
}

func TestCreateTaskBodyFile(t *testing.T) {
	root := seedStore(t)
	bodyPath := filepath.Join(t.TempDir(), "body.md")
	if err := os.WriteFile(bodyPath, []byte("# Codec\n\nWire the encoder first.\n"), 0o644); err != nil {
		t.Fatalf("writing body file: %v", err)
	}

	var out bytes.Buffer
	params := &createTaskParams{BodyFile: bodyPath}
	params.Root = root
	if err := runCreateTask(params, []string{"P1.M1.E1", "Document the codec"}, &out); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tree, err := store.Open(root).Load(store.Full)
	if err != nil {
		t.Fatalf("loading store back: %v", err)
	}
	task, ok := tree.Task("P1.M1.E1.T003")
	if !ok {
		t.Fatal("created task not found on reload")
	}
	if !strings.Contains(task.Body, "Wire the encoder first.") {
		t.Errorf("task body = %q, want supplied markdown", task.Body)
	}
}

func TestCreateRejectsBadEnums(t *testing.T) {
	root := seedStore(t)

	var out bytes.Buffer
	taskParams := &createTaskParams{Priority: "urgent"}
	taskParams.Root = root
	err := runCreateTask(taskParams, []string{"P1.M1.E1", "Misfiled"}, &out)
	if err == nil || !strings.Contains(err.Error(), "unknown priority") {
		t.Errorf("priority error = %v, want unknown priority", err)
	}

	phaseParams := &createPhaseParams{Complexity: "extreme"}
	phaseParams.Root = root
	err = runCreatePhase(phaseParams, []string{"Scaling"}, &out)
	if err == nil || !strings.Contains(err.Error(), "unknown complexity") {
		t.Errorf("complexity error = %v, want unknown complexity", err)
	}
}

func TestCreateNormalizesEnums(t *testing.T) {
	root := seedStore(t)

	var out bytes.Buffer
	params := &createTaskParams{Priority: "HIGH", Complexity: "Medium"}
	params.Root = root
	if err := runCreateTask(params, []string{"P1.M1.E1", "Mixed-case flags"}, &out); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tree, err := store.Open(root).Load(store.Full)
	if err != nil {
		t.Fatalf("loading store back: %v", err)
	}
	task, ok := tree.Task("P1.M1.E1.T003")
	if !ok {
		t.Fatal("created task not found on reload")
	}
	if task.Priority != schema.PriorityHigh {
		t.Errorf("priority = %q, want high", task.Priority)
	}
	if task.Complexity != schema.ComplexityMedium {
		t.Errorf("complexity = %q, want medium", task.Complexity)
	}
}

func TestCreateFlatItems(t *testing.T) {
	root := seedStore(t)

	var out bytes.Buffer
	bugParams := &createTaskParams{Priority: "high"}
	bugParams.Root = root
	if err := runCreateFlat(bugParams, []string{"Stats drift after reload"}, "bug", &out); err != nil {
		t.Fatalf("create bug: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created B002") {
		t.Errorf("bug output = %q, want created B002", got)
	}

	out.Reset()
	ideaParams := &createTaskParams{}
	ideaParams.Root = root
	if err := runCreateFlat(ideaParams, []string{"Burndown chart"}, "idea", &out); err != nil {
		t.Fatalf("create idea: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "created I001") {
		t.Errorf("idea output = %q, want created I001", got)
	}

	bodyPath := filepath.Join(t.TempDir(), "body.md")
	if err := os.WriteFile(bodyPath, []byte("details\n"), 0o644); err != nil {
		t.Fatalf("writing body file: %v", err)
	}
	bodyParams := &createTaskParams{BodyFile: bodyPath}
	bodyParams.Root = root
	err := runCreateFlat(bodyParams, []string{"With body"}, "bug", &out)
	if err == nil || !strings.Contains(err.Error(), "index records") {
		t.Errorf("bug body error = %v, want index records rejection", err)
	}
}
