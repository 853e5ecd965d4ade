// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package claim

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func task(id string, status schema.Status) *schema.Task {
	return &schema.Task{
		ID:            id,
		Title:         "work item " + id,
		Status:        status,
		EstimateHours: 2,
		Complexity:    schema.ComplexityLow,
		Priority:      schema.PriorityMedium,
	}
}

// testEngine builds a tree with one milestone owning two epics, plus
// a bug, so propagation has a partial case to get wrong.
func testEngine() (*Engine, *plan.Tree, *clock.FakeClock) {
	tree := plan.New([]*schema.Phase{
		{
			ID: "P1", Title: "foundation", Status: schema.StatusInProgress,
			Milestones: []*schema.Milestone{
				{
					ID: "P1.M1", Title: "skeleton", Status: schema.StatusInProgress, Phase: "P1",
					Epics: []*schema.Epic{
						{
							ID: "P1.M1.E1", Title: "storage", Status: schema.StatusInProgress,
							Milestone: "P1.M1", Phase: "P1",
							Tasks: []*schema.Task{
								task("P1.M1.E1.T001", schema.StatusDone),
								task("P1.M1.E1.T002", schema.StatusPending),
							},
						},
						{
							ID: "P1.M1.E2", Title: "transport", Status: schema.StatusPending,
							Milestone: "P1.M1", Phase: "P1",
							Tasks: []*schema.Task{
								task("P1.M1.E2.T001", schema.StatusPending),
							},
						},
					},
				},
			},
		},
	}, []*schema.Task{task("B001", schema.StatusPending)}, nil)

	fake := clock.Fake(testStart)
	return NewEngine(tree, 60*time.Minute, fake), tree, fake
}

func TestClaimSetsOwnershipAndTimestamps(t *testing.T) {
	engine, tree, _ := testEngine()

	result, err := engine.Claim("P1.M1.E1.T002", "agent-7", false)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result.Action != "claim" || result.From != schema.StatusPending || result.To != schema.StatusInProgress {
		t.Errorf("result = %+v", result)
	}

	claimed, _ := tree.Task("P1.M1.E1.T002")
	if claimed.Status != schema.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", claimed.Status)
	}
	if claimed.Claimant != "agent-7" {
		t.Errorf("claimant = %q, want agent-7", claimed.Claimant)
	}
	if claimed.ClaimedAt == nil || !claimed.ClaimedAt.Equal(testStart) {
		t.Errorf("claimed_at = %v, want %v", claimed.ClaimedAt, testStart)
	}
	if claimed.StartedAt == nil {
		t.Error("started_at not set")
	}
}

func TestDoubleClaim(t *testing.T) {
	engine, tree, fake := testEngine()

	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// Fresh claim: rejected, not yet stale.
	fake.Advance(10 * time.Minute)
	_, err := engine.Claim("P1.M1.E1.T002", "agent-8", false)
	engineErr, ok := AsError(err)
	if !ok || engineErr.Code != CodeAlreadyClaimed {
		t.Fatalf("second claim error = %v, want already_claimed", err)
	}
	if engineErr.Claimant != "agent-7" {
		t.Errorf("error claimant = %q", engineErr.Claimant)
	}
	if engineErr.ClaimAge < 9.9 || engineErr.ClaimAge > 10.1 {
		t.Errorf("claim age = %v minutes, want ~10", engineErr.ClaimAge)
	}
	if engineErr.Stale {
		t.Error("10 minute claim flagged stale with a 60 minute warn threshold")
	}

	// Past the warn threshold the same failure flags staleness.
	fake.Advance(60 * time.Minute)
	_, err = engine.Claim("P1.M1.E1.T002", "agent-8", false)
	engineErr, _ = AsError(err)
	if engineErr == nil || !engineErr.Stale {
		t.Errorf("70 minute claim not flagged stale: %v", err)
	}

	// Force takes the claim over.
	result, err := engine.Claim("P1.M1.E1.T002", "agent-8", true)
	if err != nil {
		t.Fatalf("forced claim: %v", err)
	}
	if result.From != schema.StatusInProgress {
		t.Errorf("forced claim From = %s", result.From)
	}
	claimed, _ := tree.Task("P1.M1.E1.T002")
	if claimed.Claimant != "agent-8" {
		t.Errorf("claimant after force = %q, want agent-8", claimed.Claimant)
	}
}

func TestClaimRequiresPending(t *testing.T) {
	engine, tree, _ := testEngine()

	done, _ := tree.Task("P1.M1.E1.T001")
	if done.Status != schema.StatusDone {
		t.Fatal("fixture changed")
	}
	_, err := engine.Claim("P1.M1.E1.T001", "agent-7", false)
	if !IsCode(err, CodeNotClaimable) {
		t.Errorf("claiming DONE task: %v, want not_claimable", err)
	}

	// Force does not resurrect finished or terminal work.
	if _, err := engine.Claim("P1.M1.E1.T001", "agent-7", true); !IsCode(err, CodeNotClaimable) {
		t.Errorf("forced claim of DONE task: %v, want not_claimable", err)
	}
}

func TestClaimRequiresAgent(t *testing.T) {
	engine, _, _ := testEngine()
	if _, err := engine.Claim("P1.M1.E1.T002", "", false); !IsCode(err, CodeAgentRequired) {
		t.Errorf("empty agent: %v, want agent_required", err)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	engine, _, _ := testEngine()
	_, err := engine.Complete("P1.M1.E1.T002")
	if !IsCode(err, CodeNotInProgress) {
		t.Errorf("completing PENDING task: %v, want not_in_progress", err)
	}
}

func TestCompleteSetsTimestampAndDurationIsCallersJob(t *testing.T) {
	engine, tree, fake := testEngine()

	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatal(err)
	}
	fake.Advance(45 * time.Minute)
	result, err := engine.Complete("P1.M1.E1.T002")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	completed, _ := tree.Task("P1.M1.E1.T002")
	if completed.Status != schema.StatusDone {
		t.Errorf("status = %s", completed.Status)
	}
	wantAt := testStart.Add(45 * time.Minute)
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(wantAt) {
		t.Errorf("completed_at = %v, want %v", completed.CompletedAt, wantAt)
	}
	if completed.DurationMinutes != nil {
		t.Error("engine set duration; that is the caller's job")
	}
	if result.Agent != "agent-7" {
		t.Errorf("result agent = %q", result.Agent)
	}
}

func TestCompletionCascade(t *testing.T) {
	engine, tree, _ := testEngine()

	// Completing E1's last task finishes the epic, but E2 still holds
	// the milestone open.
	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatal(err)
	}
	result, err := engine.Complete("P1.M1.E1.T002")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Promoted) != 1 || result.Promoted[0] != "P1.M1.E1" {
		t.Fatalf("promoted = %v, want [P1.M1.E1]", result.Promoted)
	}
	epic, _ := tree.Epic("P1.M1.E1")
	if epic.Status != schema.StatusDone {
		t.Errorf("epic status = %s", epic.Status)
	}
	milestone, _ := tree.Milestone("P1.M1")
	if milestone.Status == schema.StatusDone {
		t.Error("milestone flagged done with E2 still pending")
	}

	// Finishing the last task anywhere under the milestone cascades
	// to the phase, which also locks.
	if _, err := engine.Claim("P1.M1.E2.T001", "agent-7", false); err != nil {
		t.Fatal(err)
	}
	result, err = engine.Complete("P1.M1.E2.T001")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"P1.M1.E2", "P1.M1", "P1"}
	if len(result.Promoted) != len(want) {
		t.Fatalf("promoted = %v, want %v", result.Promoted, want)
	}
	phase, _ := tree.Phase("P1")
	if phase.Status != schema.StatusDone || !phase.Locked {
		t.Errorf("phase = %s locked=%v, want DONE locked", phase.Status, phase.Locked)
	}
}

func TestCancellingLastOpenTaskCascades(t *testing.T) {
	engine, tree, _ := testEngine()

	// E1 already holds one DONE task. Cancelling the other closes the
	// epic the same way completing it would.
	result, err := engine.UpdateStatus("P1.M1.E1.T002", schema.StatusCancelled, "superseded by T001", "agent-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Promoted) != 1 || result.Promoted[0] != "P1.M1.E1" {
		t.Fatalf("promoted = %v, want [P1.M1.E1]", result.Promoted)
	}
	epic, _ := tree.Epic("P1.M1.E1")
	if epic.Status != schema.StatusDone {
		t.Errorf("epic status = %s, want DONE", epic.Status)
	}
	milestone, _ := tree.Milestone("P1.M1")
	if milestone.Status == schema.StatusDone {
		t.Error("milestone flagged done with E2 still pending")
	}

	// An epic holding nothing but cancellations is dead, not done.
	result, err = engine.UpdateStatus("P1.M1.E2.T001", schema.StatusCancelled, "descoped", "agent-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Promoted) != 0 {
		t.Errorf("promoted = %v, want none", result.Promoted)
	}
	other, _ := tree.Epic("P1.M1.E2")
	if other.Status == schema.StatusDone {
		t.Error("all-cancelled epic flagged done")
	}
}

func TestTransitionTable(t *testing.T) {
	all := []schema.Status{
		schema.StatusPending, schema.StatusInProgress, schema.StatusDone,
		schema.StatusBlocked, schema.StatusRejected, schema.StatusCancelled,
	}
	legal := map[schema.Status]map[schema.Status]bool{
		schema.StatusPending:    {schema.StatusInProgress: true, schema.StatusBlocked: true, schema.StatusCancelled: true},
		schema.StatusInProgress: {schema.StatusDone: true, schema.StatusBlocked: true, schema.StatusRejected: true, schema.StatusPending: true},
		schema.StatusDone:       {schema.StatusBlocked: true, schema.StatusRejected: true},
		schema.StatusBlocked:    {schema.StatusPending: true, schema.StatusCancelled: true},
		schema.StatusRejected:   {schema.StatusPending: true},
		schema.StatusCancelled:  {},
	}

	for _, from := range all {
		for _, to := range all {
			engine, tree, _ := testEngine()
			subject, _ := tree.Task("P1.M1.E2.T001")
			subject.Status = from
			if from == schema.StatusInProgress {
				subject.Claimant = "agent-7"
			}

			_, err := engine.UpdateStatus("P1.M1.E2.T001", to, "test reason", "agent-7")
			if legal[from][to] {
				if err != nil {
					t.Errorf("%s -> %s rejected: %v", from, to, err)
				}
				continue
			}
			if !IsCode(err, CodeInvalidTransition) {
				t.Errorf("%s -> %s: error = %v, want invalid_transition", from, to, err)
			}
			engineErr, _ := AsError(err)
			if engineErr != nil && len(engineErr.ValidNext) != len(legalTransitions[from]) {
				t.Errorf("%s -> %s: valid_next = %v", from, to, engineErr.ValidNext)
			}
		}
	}
}

func TestReasonRequired(t *testing.T) {
	for _, to := range []schema.Status{schema.StatusBlocked, schema.StatusRejected, schema.StatusCancelled} {
		engine, tree, _ := testEngine()
		subject, _ := tree.Task("P1.M1.E2.T001")
		subject.Status = schema.StatusInProgress
		if to == schema.StatusCancelled {
			subject.Status = schema.StatusBlocked
		}

		if _, err := engine.UpdateStatus("P1.M1.E2.T001", to, "   ", "agent-7"); !IsCode(err, CodeReasonRequired) {
			t.Errorf("to %s without reason: %v, want reason_required", to, err)
		}
		result, err := engine.UpdateStatus("P1.M1.E2.T001", to, "credentials expired", "agent-7")
		if err != nil {
			t.Errorf("to %s with reason: %v", to, err)
			continue
		}
		if result.Reason != "credentials expired" {
			t.Errorf("result reason = %q", result.Reason)
		}
		if subject.StatusReason != "credentials expired" {
			t.Errorf("status_reason = %q", subject.StatusReason)
		}
	}
}

func TestTransitionToPendingReleasesClaim(t *testing.T) {
	engine, tree, _ := testEngine()
	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.UpdateStatus("P1.M1.E1.T002", schema.StatusPending, "", "agent-7"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	released, _ := tree.Task("P1.M1.E1.T002")
	if released.Claimant != "" || released.ClaimedAt != nil {
		t.Errorf("claim not released: claimant=%q claimed_at=%v", released.Claimant, released.ClaimedAt)
	}
}

func TestTransitionToDoneSetsCompletionOnce(t *testing.T) {
	engine, tree, fake := testEngine()
	subject, _ := tree.Task("P1.M1.E2.T001")
	subject.Status = schema.StatusInProgress

	if _, err := engine.UpdateStatus("P1.M1.E2.T001", schema.StatusDone, "", ""); err != nil {
		t.Fatal(err)
	}
	first := subject.CompletedAt
	if first == nil {
		t.Fatal("completed_at not set")
	}

	// Re-done after a rejection keeps the original completion time.
	fake.Advance(time.Hour)
	if _, err := engine.UpdateStatus("P1.M1.E2.T001", schema.StatusRejected, "flaky", ""); err != nil {
		t.Fatal(err)
	}
	subject.Status = schema.StatusInProgress // simulate rework without a claim
	if _, err := engine.UpdateStatus("P1.M1.E2.T001", schema.StatusDone, "", ""); err != nil {
		t.Fatal(err)
	}
	if !subject.CompletedAt.Equal(*first) {
		t.Errorf("completed_at overwritten: %v, was %v", subject.CompletedAt, first)
	}
}

func TestUpdateStatusIntoInProgressClaims(t *testing.T) {
	engine, tree, _ := testEngine()
	if _, err := engine.UpdateStatus("P1.M1.E1.T002", schema.StatusInProgress, "", "agent-9"); err != nil {
		t.Fatal(err)
	}
	subject, _ := tree.Task("P1.M1.E1.T002")
	if subject.Claimant != "agent-9" || subject.ClaimedAt == nil {
		t.Errorf("in-progress via update did not record the claim: %+v", subject)
	}
}

func TestReclaim(t *testing.T) {
	engine, tree, fake := testEngine()
	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatal(err)
	}
	fake.Advance(130 * time.Minute)

	if _, err := engine.Reclaim("P1.M1.E1.T002", ""); !IsCode(err, CodeReasonRequired) {
		t.Errorf("reclaim without reason: %v", err)
	}

	result, err := engine.Reclaim("P1.M1.E1.T002", "stale claim: 130m exceeds 120m threshold")
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if result.Action != "reclaim" || result.Agent != "agent-7" {
		t.Errorf("result = %+v", result)
	}

	reset, _ := tree.Task("P1.M1.E1.T002")
	if reset.Status != schema.StatusPending {
		t.Errorf("status = %s, want PENDING", reset.Status)
	}
	if reset.Claimant != "" || reset.ClaimedAt != nil || reset.StartedAt != nil {
		t.Errorf("claim fields not cleared: %+v", reset)
	}

	if _, err := engine.Reclaim("P1.M1.E1.T002", "again"); !IsCode(err, CodeNotInProgress) {
		t.Errorf("reclaiming a PENDING task: %v", err)
	}
}

func TestUnknownAndAmbiguousReferences(t *testing.T) {
	engine, _, _ := testEngine()

	_, err := engine.Claim("P9.M9.E9.T999", "agent-7", false)
	if !IsCode(err, CodeUnknownTask) {
		t.Fatalf("unknown ref: %v", err)
	}

	// T001 matches a task in each epic plus nothing else unique.
	_, err = engine.Claim("T001", "agent-7", false)
	engineErr, ok := AsError(err)
	if !ok || engineErr.Code != CodeUnknownTask {
		t.Fatalf("ambiguous ref: %v", err)
	}
	if !strings.Contains(engineErr.Suggestion, "P1.M1.E1.T001") ||
		!strings.Contains(engineErr.Suggestion, "P1.M1.E2.T001") {
		t.Errorf("suggestion does not enumerate candidates: %q", engineErr.Suggestion)
	}
}

func TestErrorJSONShape(t *testing.T) {
	engine, _, _ := testEngine()
	if _, err := engine.Claim("P1.M1.E1.T002", "agent-7", false); err != nil {
		t.Fatal(err)
	}
	_, err := engine.Claim("P1.M1.E1.T002", "agent-8", false)
	engineErr, _ := AsError(err)
	if engineErr == nil {
		t.Fatal("no structured error")
	}

	raw, jsonErr := json.Marshal(engineErr)
	if jsonErr != nil {
		t.Fatalf("marshal: %v", jsonErr)
	}
	var decoded map[string]any
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if decoded["code"] != "already_claimed" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["claimed_by"] != "agent-7" {
		t.Errorf("claimed_by = %v", decoded["claimed_by"])
	}
	if _, ok := decoded["suggestion"]; !ok {
		t.Error("suggestion missing from JSON")
	}
}

func TestErrorSurvivesWrapping(t *testing.T) {
	engine, _, _ := testEngine()
	_, err := engine.Complete("P1.M1.E1.T002")
	wrapped := fmt.Errorf("running completion: %w", err)

	if !IsCode(wrapped, CodeNotInProgress) {
		t.Error("IsCode failed through wrapping")
	}
	engineErr, ok := AsError(wrapped)
	if !ok || engineErr.TaskID != "P1.M1.E1.T002" {
		t.Errorf("AsError through wrapping = %+v, %v", engineErr, ok)
	}
}
