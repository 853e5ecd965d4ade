// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package claim is the claim/status engine: the only component that
// mutates task records. It enforces the status state machine, the
// at-most-one-claim rule, and completion propagation up the
// hierarchy.
//
// Every operation mutates exactly one task and returns a [Result]
// describing the change; callers persist the task and append the
// result to the audit journal. Failures are structured [Error] values
// carrying a machine-readable code, the relevant context, and a
// remediation suggestion.
package claim

import (
	"fmt"
	"strings"
	"time"

	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
)

// legalTransitions is the status state machine. A status missing from
// a row's targets is an invalid transition from that row.
var legalTransitions = map[schema.Status][]schema.Status{
	schema.StatusPending:    {schema.StatusInProgress, schema.StatusBlocked, schema.StatusCancelled},
	schema.StatusInProgress: {schema.StatusDone, schema.StatusBlocked, schema.StatusRejected, schema.StatusPending},
	schema.StatusDone:       {schema.StatusBlocked, schema.StatusRejected},
	schema.StatusBlocked:    {schema.StatusPending, schema.StatusCancelled},
	schema.StatusRejected:   {schema.StatusPending},
	schema.StatusCancelled:  {},
}

// reasonRequired lists the targets that demand a recorded reason.
var reasonRequired = map[schema.Status]bool{
	schema.StatusBlocked:   true,
	schema.StatusRejected:  true,
	schema.StatusCancelled: true,
}

func transitionAllowed(from, to schema.Status) bool {
	for _, target := range legalTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func validNextList(from schema.Status) string {
	targets := legalTransitions[from]
	if len(targets) == 0 {
		return "none (terminal)"
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Result records a successful mutation for the audit journal.
type Result struct {
	TaskID string        `json:"task_id"`
	Action string        `json:"action"`
	From   schema.Status `json:"from"`
	To     schema.Status `json:"to"`
	Agent  string        `json:"agent,omitempty"`
	Reason string        `json:"reason,omitempty"`
	At     time.Time     `json:"at"`

	// Containers flagged done or reopened by completion propagation.
	Promoted []string `json:"promoted,omitempty"`
	Demoted  []string `json:"demoted,omitempty"`
}

// Engine applies claim and status mutations. Not safe for concurrent
// use; invocations are single threaded and cross-process races are
// advisory by design (last write wins).
type Engine struct {
	tree      *plan.Tree
	clk       clock.Clock
	staleWarn time.Duration
}

// NewEngine builds an engine over the tree. staleWarn is the claim
// age beyond which AlreadyClaimed errors flag the claim as stale.
func NewEngine(tree *plan.Tree, staleWarn time.Duration, clk clock.Clock) *Engine {
	return &Engine{tree: tree, clk: clk, staleWarn: staleWarn}
}

func (e *Engine) resolve(ref string) (*schema.Task, *Error) {
	task, ok := e.tree.Task(ref)
	if ok {
		return task, nil
	}
	suggestion := "check the identifier against the current backlog"
	if matches := e.tree.MatchTasks(ref); len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		suggestion = "reference is ambiguous, qualify it: " + strings.Join(ids, ", ")
	}
	return nil, &Error{
		Code:       CodeUnknownTask,
		Message:    fmt.Sprintf("no task matches %q", ref),
		TaskID:     ref,
		Suggestion: suggestion,
	}
}

// Claim takes ownership of a task for an agent: status PENDING and no
// existing claimant required unless force is set. Force also takes
// over an IN_PROGRESS task, overwriting the claimant; it does not
// resurrect DONE, BLOCKED, REJECTED, or CANCELLED work.
func (e *Engine) Claim(ref, agent string, force bool) (*Result, error) {
	if agent == "" {
		return nil, &Error{
			Code:       CodeAgentRequired,
			Message:    "claim requires an agent identifier",
			TaskID:     ref,
			Suggestion: "pass the claiming agent's name",
		}
	}
	task, resolveErr := e.resolve(ref)
	if resolveErr != nil {
		return nil, resolveErr
	}
	now := e.clk.Now().UTC()

	if task.Claimed() && !force {
		engineErr := &Error{
			Code:     CodeAlreadyClaimed,
			Message:  fmt.Sprintf("task %s is already claimed by %s", task.ID, task.Claimant),
			TaskID:   task.ID,
			From:     task.Status,
			Claimant: task.Claimant,
		}
		if age, ok := task.ClaimAge(now); ok {
			engineErr.ClaimAge = age.Minutes()
			engineErr.Stale = age > e.staleWarn
		}
		if engineErr.Stale {
			engineErr.Suggestion = "claim looks stale; retry with force to take it over"
		} else {
			engineErr.Suggestion = fmt.Sprintf("wait for %s or pick different work", task.Claimant)
		}
		return nil, engineErr
	}

	claimable := task.Status == schema.StatusPending ||
		(force && task.Status == schema.StatusInProgress)
	if !claimable {
		return nil, &Error{
			Code:       CodeNotClaimable,
			Message:    fmt.Sprintf("task %s is %s, not PENDING", task.ID, task.Status),
			TaskID:     task.ID,
			From:       task.Status,
			To:         schema.StatusInProgress,
			Suggestion: fmt.Sprintf("valid transitions from %s: %s", task.Status, validNextList(task.Status)),
		}
	}

	from := task.Status
	task.Status = schema.StatusInProgress
	task.Claimant = agent
	task.ClaimedAt = &now
	task.StartedAt = &now

	return &Result{
		TaskID: task.ID,
		Action: "claim",
		From:   from,
		To:     schema.StatusInProgress,
		Agent:  agent,
		At:     now,
	}, nil
}

// Complete marks an IN_PROGRESS task DONE and runs completion
// propagation. The caller derives the duration from the start
// timestamp and persists it alongside.
func (e *Engine) Complete(ref string) (*Result, error) {
	task, resolveErr := e.resolve(ref)
	if resolveErr != nil {
		return nil, resolveErr
	}
	if task.Status != schema.StatusInProgress {
		return nil, &Error{
			Code:       CodeNotInProgress,
			Message:    fmt.Sprintf("task %s is %s; only IN_PROGRESS work can be completed", task.ID, task.Status),
			TaskID:     task.ID,
			From:       task.Status,
			To:         schema.StatusDone,
			Suggestion: "claim the task first",
		}
	}

	now := e.clk.Now().UTC()
	from := task.Status
	task.Status = schema.StatusDone
	task.CompletedAt = &now
	promoted, demoted := e.tree.ReconcileAncestors(task)

	return &Result{
		TaskID:   task.ID,
		Action:   "complete",
		From:     from,
		To:       schema.StatusDone,
		Agent:    task.Claimant,
		At:       now,
		Promoted: promoted,
		Demoted:  demoted,
	}, nil
}

// UpdateStatus applies an arbitrary legal transition. Transitions
// into BLOCKED, REJECTED, or CANCELLED require a non-empty reason;
// transitioning to PENDING releases the claim; transitioning to DONE
// sets the completion timestamp if unset. The agent is recorded for
// the audit trail and, when moving to IN_PROGRESS, becomes the
// claimant.
func (e *Engine) UpdateStatus(ref string, to schema.Status, reason, agent string) (*Result, error) {
	task, resolveErr := e.resolve(ref)
	if resolveErr != nil {
		return nil, resolveErr
	}
	if !to.Valid() {
		return nil, &Error{
			Code:       CodeInvalidTransition,
			Message:    fmt.Sprintf("unknown status %q", to),
			TaskID:     task.ID,
			From:       task.Status,
			Suggestion: "valid statuses: PENDING, IN_PROGRESS, DONE, BLOCKED, REJECTED, CANCELLED",
		}
	}
	if !transitionAllowed(task.Status, to) {
		return nil, &Error{
			Code:       CodeInvalidTransition,
			Message:    fmt.Sprintf("cannot move task %s from %s to %s", task.ID, task.Status, to),
			TaskID:     task.ID,
			From:       task.Status,
			To:         to,
			ValidNext:  legalTransitions[task.Status],
			Suggestion: fmt.Sprintf("valid transitions from %s: %s", task.Status, validNextList(task.Status)),
		}
	}
	if reasonRequired[to] && strings.TrimSpace(reason) == "" {
		return nil, &Error{
			Code:       CodeReasonRequired,
			Message:    fmt.Sprintf("transition to %s requires a reason", to),
			TaskID:     task.ID,
			From:       task.Status,
			To:         to,
			Suggestion: "pass a short explanation; it lands in the audit journal",
		}
	}

	now := e.clk.Now().UTC()
	from := task.Status
	task.Status = to

	switch to {
	case schema.StatusPending:
		task.Claimant = ""
		task.ClaimedAt = nil
	case schema.StatusDone:
		if task.CompletedAt == nil {
			task.CompletedAt = &now
		}
	case schema.StatusInProgress:
		if agent != "" {
			task.Claimant = agent
			task.ClaimedAt = &now
			task.StartedAt = &now
		}
	}
	if reasonRequired[to] {
		task.StatusReason = strings.TrimSpace(reason)
	}

	// Cancelled counts as closed work, so cancelling the last open
	// task can finish a container just like completing it.
	var promoted, demoted []string
	if from == schema.StatusDone || to == schema.StatusDone || to == schema.StatusCancelled {
		promoted, demoted = e.tree.ReconcileAncestors(task)
	}

	return &Result{
		TaskID:   task.ID,
		Action:   "status",
		From:     from,
		To:       to,
		Agent:    agent,
		Reason:   strings.TrimSpace(reason),
		At:       now,
		Promoted: promoted,
		Demoted:  demoted,
	}, nil
}

// Reclaim force-resets a stale IN_PROGRESS claim to PENDING, clearing
// the claimant and claim timestamps, with a mandatory audit reason.
// Stale discovery lives in the scheduler; this is the mutation half.
func (e *Engine) Reclaim(ref, reason string) (*Result, error) {
	task, resolveErr := e.resolve(ref)
	if resolveErr != nil {
		return nil, resolveErr
	}
	if task.Status != schema.StatusInProgress {
		return nil, &Error{
			Code:       CodeNotInProgress,
			Message:    fmt.Sprintf("task %s is %s; only IN_PROGRESS claims can be reclaimed", task.ID, task.Status),
			TaskID:     task.ID,
			From:       task.Status,
			Suggestion: "nothing to reclaim",
		}
	}
	if strings.TrimSpace(reason) == "" {
		return nil, &Error{
			Code:       CodeReasonRequired,
			Message:    "reclamation requires an audit reason",
			TaskID:     task.ID,
			Suggestion: "describe why the claim is being reset, typically the stale age",
		}
	}

	now := e.clk.Now().UTC()
	previousClaimant := task.Claimant
	task.Status = schema.StatusPending
	task.Claimant = ""
	task.ClaimedAt = nil
	task.StartedAt = nil

	return &Result{
		TaskID: task.ID,
		Action: "reclaim",
		From:   schema.StatusInProgress,
		To:     schema.StatusPending,
		Agent:  previousClaimant,
		Reason: strings.TrimSpace(reason),
		At:     now,
	}, nil
}
