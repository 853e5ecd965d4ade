// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"
	"time"
)

func validTask(id string) *Task {
	return &Task{
		ID:            id,
		Title:         "implement the thing",
		Status:        StatusPending,
		EstimateHours: 2,
		Complexity:    ComplexityMedium,
		Priority:      PriorityMedium,
	}
}

func TestParseStatus(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Status
	}{
		{"PENDING", StatusPending},
		{"pending", StatusPending},
		{"in_progress", StatusInProgress},
		{"in-progress", StatusInProgress},
		{"Done", StatusDone},
		{"CANCELLED", StatusCancelled},
	} {
		got, err := ParseStatus(tc.in)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := ParseStatus("open"); err == nil {
		t.Error("ParseStatus(open) succeeded, want error")
	}
}

func TestPriorityRank(t *testing.T) {
	order := []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	for i := 0; i < len(order)-1; i++ {
		if order[i].Rank() >= order[i+1].Rank() {
			t.Errorf("Rank(%s) = %d not below Rank(%s) = %d",
				order[i], order[i].Rank(), order[i+1], order[i+1].Rank())
		}
	}
	if got, want := Priority("").Rank(), PriorityMedium.Rank(); got != want {
		t.Errorf("empty priority ranks %d, want medium rank %d", got, want)
	}
	if Priority("urgent").Rank() >= PriorityLow.Rank() {
		t.Error("unknown priority should rank below low")
	}
}

func TestParseComplexityAndPriority(t *testing.T) {
	c, err := ParseComplexity("HIGH")
	if err != nil || c != ComplexityHigh {
		t.Errorf("ParseComplexity(HIGH) = %q, %v", c, err)
	}
	if _, err := ParseComplexity("extreme"); err == nil {
		t.Error("ParseComplexity(extreme) succeeded, want error")
	}
	p, err := ParsePriority("Critical")
	if err != nil || p != PriorityCritical {
		t.Errorf("ParsePriority(Critical) = %q, %v", p, err)
	}
	if _, err := ParsePriority("p0"); err == nil {
		t.Error("ParsePriority(p0) succeeded, want error")
	}
}

func TestTaskValidate(t *testing.T) {
	if err := validTask("P1.M1.E1.T001").Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}
	if err := validTask("B042").Validate(); err != nil {
		t.Fatalf("valid bug rejected: %v", err)
	}

	bad := validTask("P1.M1.E1")
	if err := bad.Validate(); err == nil {
		t.Error("epic identifier accepted as task")
	}

	bad = validTask("P1.M1.E1.T001")
	bad.Status = "OPEN"
	if err := bad.Validate(); err == nil {
		t.Error("invalid status accepted")
	}

	bad = validTask("P1.M1.E1.T001")
	bad.EstimateHours = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative estimate accepted")
	}

	bad = validTask("P1.M1.E1.T001")
	bad.Title = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty title accepted")
	}

	bad = validTask("P1.M1.E1.T001")
	now := time.Now().UTC()
	bad.ClaimedAt = &now
	if err := bad.Validate(); err == nil {
		t.Error("claim timestamp without claimant accepted")
	}

	bad = validTask("P1.M1.E1.T001")
	bad.DependsOn = []string{"T001", ""}
	if err := bad.Validate(); err == nil {
		t.Error("empty dependency entry accepted")
	}
}

func TestClaimAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claimed := now.Add(-90 * time.Minute)

	task := validTask("P1.M1.E1.T001")
	if _, ok := task.ClaimAge(now); ok {
		t.Error("unclaimed task reported a claim age")
	}

	task.Claimant = "agent-7"
	task.ClaimedAt = &claimed
	age, ok := task.ClaimAge(now)
	if !ok {
		t.Fatal("claimed task reported no claim age")
	}
	if age != 90*time.Minute {
		t.Errorf("ClaimAge = %v, want 90m", age)
	}
}

func TestStatsCountAndComplete(t *testing.T) {
	var s Stats
	if s.IsComplete() {
		t.Error("empty stats reported complete")
	}
	s.Count(StatusDone)
	s.Count(StatusDone)
	s.Count(StatusPending)
	if s.Total != 3 || s.Done != 2 || s.Pending != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.IsComplete() {
		t.Error("stats with pending work reported complete")
	}
	s.Count(StatusDone)
	// Still one pending.
	if s.IsComplete() {
		t.Error("stats with pending work reported complete")
	}

	all := Stats{Total: 2, Done: 2}
	if !all.IsComplete() {
		t.Error("fully done stats not complete")
	}
	closed := Stats{Total: 3, Done: 2, Cancelled: 1}
	if !closed.IsComplete() {
		t.Error("done plus cancelled stats not complete")
	}
	dead := Stats{Total: 2, Cancelled: 2}
	if dead.IsComplete() {
		t.Error("all-cancelled stats reported complete")
	}
	if got := all.DoneRatio(); got != 1 {
		t.Errorf("DoneRatio = %v, want 1", got)
	}
	if got := (Stats{}).DoneRatio(); got != 0 {
		t.Errorf("DoneRatio of empty = %v, want 0", got)
	}
}

func TestComputeStatsRollup(t *testing.T) {
	phase := &Phase{
		ID:     "P1",
		Title:  "foundation",
		Status: StatusInProgress,
		Milestones: []*Milestone{
			{
				ID:     "P1.M1",
				Title:  "skeleton",
				Status: StatusInProgress,
				Epics: []*Epic{
					{
						ID:     "P1.M1.E1",
						Title:  "storage",
						Status: StatusInProgress,
						Tasks: []*Task{
							{ID: "P1.M1.E1.T001", Status: StatusDone},
							{ID: "P1.M1.E1.T002", Status: StatusInProgress},
						},
					},
					{
						ID:     "P1.M1.E2",
						Title:  "transport",
						Status: StatusPending,
						Tasks: []*Task{
							{ID: "P1.M1.E2.T001", Status: StatusPending},
						},
					},
				},
			},
		},
	}

	got := phase.ComputeStats()
	want := Stats{Total: 3, Done: 1, InProgress: 1, Pending: 1}
	if got != want {
		t.Errorf("ComputeStats = %+v, want %+v", got, want)
	}
}
