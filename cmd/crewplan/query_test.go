// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestListFilters(t *testing.T) {
	root := seedStore(t)

	claimP := &claimParams{}
	claimP.Root = root
	claimP.Agent = "agent-1"
	var out bytes.Buffer
	if err := runClaim(claimP, []string{"P1.M1.E1.T001"}, &out); err != nil {
		t.Fatalf("claim: %v", err)
	}

	list := func(p *listParams, args ...string) string {
		t.Helper()
		p.Root = root
		var buf bytes.Buffer
		if err := runList(p, args, &buf); err != nil {
			t.Fatalf("list %v: %v", args, err)
		}
		return buf.String()
	}

	all := list(&listParams{})
	for _, want := range []string{"P1.M1.E1.T001", "P1.M1.E1.T002", "B001"} {
		if !strings.Contains(all, want) {
			t.Errorf("full listing missing %s:\n%s", want, all)
		}
	}
	if !strings.Contains(all, "agent-1") {
		t.Errorf("full listing missing claimant:\n%s", all)
	}

	pending := list(&listParams{Status: "pending"})
	if strings.Contains(pending, "T001") || !strings.Contains(pending, "T002") {
		t.Errorf("pending filter wrong:\n%s", pending)
	}

	claimed := list(&listParams{Claimed: true})
	if !strings.Contains(claimed, "T001") || strings.Contains(claimed, "T002") || strings.Contains(claimed, "B001") {
		t.Errorf("claimed filter wrong:\n%s", claimed)
	}

	bugs := list(&listParams{Bugs: true})
	if !strings.Contains(bugs, "B001") || strings.Contains(bugs, "T001") {
		t.Errorf("bugs filter wrong:\n%s", bugs)
	}

	subtree := list(&listParams{}, "P1.M1")
	if !strings.Contains(subtree, "T001") || strings.Contains(subtree, "B001") {
		t.Errorf("subtree filter wrong:\n%s", subtree)
	}

	// T001 is claimed and T002 waits on it, so the ready view is the
	// bug alone.
	ready := list(&listParams{Ready: true})
	if !strings.Contains(ready, "B001") || strings.Contains(ready, "T001") || strings.Contains(ready, "T002") {
		t.Errorf("ready filter wrong:\n%s", ready)
	}

	ideas := list(&listParams{Ideas: true})
	if !strings.Contains(ideas, "no matching items") {
		t.Errorf("empty listing = %q, want no matching items", ideas)
	}

	badParams := &listParams{}
	badParams.Root = root
	var buf bytes.Buffer
	if err := runList(badParams, []string{"Z9"}, &buf); err == nil {
		t.Error("expected error for bad subtree reference")
	}
}

func TestShowRendersTask(t *testing.T) {
	root := seedStore(t)

	params := &showParams{Width: 60}
	params.Root = root
	var out bytes.Buffer
	if err := runShow(params, []string{"P1.M1.E1.T001"}, &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"P1.M1.E1.T001  Define record types",
		"status PENDING  estimate 4h  priority high",
		"Acceptance Criteria",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("show output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	if err := runShow(params, []string{"P9.M9.E9.T999"}, &out); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestShowFlatItemHasNoBody(t *testing.T) {
	root := seedStore(t)

	params := &showParams{Width: 60}
	params.Root = root
	var out bytes.Buffer
	if err := runShow(params, []string{"B001"}, &out); err != nil {
		t.Fatalf("show bug: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "B001  Index drops trailing newline") {
		t.Errorf("bug header missing:\n%s", got)
	}
	if strings.Contains(got, "Acceptance Criteria") {
		t.Errorf("bug show rendered a body:\n%s", got)
	}
}

func TestStatsSummary(t *testing.T) {
	root := seedStore(t)

	claimP := &claimParams{}
	claimP.Root = root
	claimP.Agent = "agent-1"
	var out bytes.Buffer
	if err := runClaim(claimP, []string{"P1.M1.E1.T001"}, &out); err != nil {
		t.Fatalf("claim: %v", err)
	}
	completeP := &completeParams{}
	completeP.Root = root
	if err := runComplete(completeP, []string{"P1.M1.E1.T001"}, &out); err != nil {
		t.Fatalf("complete: %v", err)
	}

	statsP := &statsParams{}
	statsP.Root = root
	out.Reset()
	if err := runStats(statsP, nil, &out); err != nil {
		t.Fatalf("stats: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"3 tasks: 1 done (33%), 0 in progress, 2 pending, 0 blocked",
		"P1",
		"Foundation",
		"1/2",
		"bugs: 1 total, 0 done",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stats output missing %q:\n%s", want, got)
		}
	}
}
