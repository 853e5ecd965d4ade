// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/claim"
	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/config"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/scheduler"
	"github.com/crewplan/crewplan/lib/session"
	"github.com/crewplan/crewplan/lib/store"
)

// loadEngine reads the store and builds the claim engine over it. The
// returned tree is the one the engine mutates; persist from it.
func loadEngine(opts *storeOptions) (*store.Store, *config.Config, *planContext, error) {
	st, cfg, err := opts.open()
	if err != nil {
		return nil, nil, nil, err
	}
	tree, err := st.Load(store.Metadata)
	if err != nil {
		return nil, nil, nil, err
	}
	policy := cfg.SchedulerPolicy()
	engine := claim.NewEngine(tree, policy.StaleWarn, clock.Real())
	return st, cfg, &planContext{tree: tree, engine: engine}, nil
}

// planContext pairs a loaded tree with the engine mutating it.
type planContext struct {
	tree   *plan.Tree
	engine *claim.Engine
}

// syncSessionRecord mirrors claim state into the advisory per-agent
// session record. Failures are reported, never fatal; the records are
// display and validation hints, not scheduling inputs.
func syncSessionRecord(st *store.Store, result *claim.Result) {
	sessions := session.NewDir(st.RunStateDir())
	var err error
	switch {
	case result.Action == "claim",
		result.Action == "status" && result.To == schema.StatusInProgress && result.Agent != "":
		err = sessions.SaveRecord(&session.Record{
			Agent:         result.Agent,
			Task:          result.TaskID,
			ClaimedAt:     result.At,
			LastHeartbeat: result.At,
			PID:           os.Getpid(),
		})
	case result.Action == "complete", result.Action == "reclaim":
		if result.Agent != "" {
			err = sessions.DeleteRecord(result.Agent)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: session record: %v\n", err)
	}
}

type claimParams struct {
	cli.JSONOutput
	storeOptions
	AgentOptions
	Force bool `flag:"force" desc:"take over an active claim"`
}

func claimCommand() *cli.Command {
	var params claimParams
	return &cli.Command{
		Name:    "claim",
		Summary: "Claim a task for an agent",
		Description: `Take ownership of a pending task: status moves to IN_PROGRESS and
the agent is recorded as claimant. --force takes over another agent's
active claim, which is the remedy for stale claims.`,
		Usage: "crewplan claim <task> [flags]",
		Examples: []cli.Example{
			{
				Description: "Claim under an explicit agent name",
				Command:     "crewplan claim P1.M2.E1.T003 --agent agent-1",
			},
			{
				Description: "Take over a stale claim",
				Command:     "crewplan claim P1.M2.E1.T003 --force",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("claim", &params)
		},
		Run: func(args []string) error {
			return runClaim(&params, args, os.Stdout)
		},
	}
}

func runClaim(p *claimParams, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan claim <task> [flags]")
	}
	st, cfg, pc, err := loadEngine(&p.storeOptions)
	if err != nil {
		return err
	}

	result, err := pc.engine.Claim(args[0], p.Agent, p.Force)
	if err != nil {
		return reportEngineError(&p.JSONOutput, err)
	}
	task, _ := pc.tree.Task(result.TaskID)
	if err := persistMutation(st, cfg, pc.tree, task, result); err != nil {
		return err
	}
	syncSessionRecord(st, result)

	if done, err := p.EmitJSON(result); done {
		return err
	}
	fmt.Fprintf(out, "%s claimed by %s\n", result.TaskID, result.Agent)
	return nil
}

type completeParams struct {
	cli.JSONOutput
	storeOptions
}

func completeCommand() *cli.Command {
	var params completeParams
	return &cli.Command{
		Name:    "complete",
		Summary: "Mark a claimed task done",
		Description: `Finish an IN_PROGRESS task. Completion propagates upward: an epic
whose last task finishes is flagged done, and so on through milestone
and phase. The recorded duration is derived from the claim start.`,
		Usage: "crewplan complete <task> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("complete", &params)
		},
		Run: func(args []string) error {
			return runComplete(&params, args, os.Stdout)
		},
	}
}

func runComplete(p *completeParams, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan complete <task> [flags]")
	}
	st, cfg, pc, err := loadEngine(&p.storeOptions)
	if err != nil {
		return err
	}

	result, err := pc.engine.Complete(args[0])
	if err != nil {
		return reportEngineError(&p.JSONOutput, err)
	}
	task, _ := pc.tree.Task(result.TaskID)
	if task.StartedAt != nil {
		minutes := int(result.At.Sub(*task.StartedAt).Minutes())
		if minutes < 0 {
			minutes = 0
		}
		task.DurationMinutes = &minutes
	}
	if err := persistMutation(st, cfg, pc.tree, task, result); err != nil {
		return err
	}
	syncSessionRecord(st, result)

	if done, err := p.EmitJSON(result); done {
		return err
	}
	fmt.Fprintf(out, "%s done", result.TaskID)
	if task.DurationMinutes != nil {
		fmt.Fprintf(out, " (%dm)", *task.DurationMinutes)
	}
	fmt.Fprintln(out)
	for _, id := range result.Promoted {
		fmt.Fprintf(out, "%s done\n", id)
	}
	for _, id := range result.Demoted {
		fmt.Fprintf(out, "%s reopened\n", id)
	}
	return nil
}

type statusParams struct {
	cli.JSONOutput
	storeOptions
	AgentOptions
	Reason string `flag:"reason" desc:"why (required for BLOCKED, REJECTED, CANCELLED)"`
}

func statusCommand() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Move a task to a new status",
		Description: `Apply a legal status transition. Transitions into BLOCKED, REJECTED,
or CANCELLED require --reason; moving back to PENDING releases the
claim; moving to IN_PROGRESS with an agent records a claim.`,
		Usage: "crewplan status <task> <new-status> [flags]",
		Examples: []cli.Example{
			{
				Description: "Block a task on an external decision",
				Command:     "crewplan status P2.M1.E1.T004 blocked --reason \"waiting on design review\"",
			},
			{
				Description: "Release a claim back to the pool",
				Command:     "crewplan status P2.M1.E1.T004 pending",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			return runStatus(&params, args, os.Stdout)
		},
	}
}

func runStatus(p *statusParams, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: crewplan status <task> <new-status> [flags]")
	}
	to, err := schema.ParseStatus(args[1])
	if err != nil {
		return err
	}
	st, cfg, pc, err := loadEngine(&p.storeOptions)
	if err != nil {
		return err
	}

	result, err := pc.engine.UpdateStatus(args[0], to, p.Reason, p.Agent)
	if err != nil {
		return reportEngineError(&p.JSONOutput, err)
	}
	task, _ := pc.tree.Task(result.TaskID)
	if err := persistMutation(st, cfg, pc.tree, task, result); err != nil {
		return err
	}
	syncSessionRecord(st, result)

	if done, err := p.EmitJSON(result); done {
		return err
	}
	fmt.Fprintf(out, "%s: %s -> %s", result.TaskID, result.From, result.To)
	if result.Reason != "" {
		fmt.Fprintf(out, " (%s)", result.Reason)
	}
	fmt.Fprintln(out)
	for _, id := range result.Promoted {
		fmt.Fprintf(out, "%s done\n", id)
	}
	for _, id := range result.Demoted {
		fmt.Fprintf(out, "%s reopened\n", id)
	}
	return nil
}

type reclaimParams struct {
	cli.JSONOutput
	storeOptions
	All    bool   `flag:"all" desc:"reset every stale claim, not just the oldest"`
	Reason string `flag:"reason" desc:"audit reason (default describes the stale age)"`
}

func reclaimCommand() *cli.Command {
	var params reclaimParams
	return &cli.Command{
		Name:    "reclaim",
		Summary: "Reset stale claims back to PENDING",
		Description: `Return abandoned work to the pool. Without arguments the oldest claim
past the stale-error threshold is reset; --all sweeps every stale
claim. An explicit task reference resets that claim regardless of age
and requires --reason.`,
		Usage: "crewplan reclaim [task] [flags]",
		Examples: []cli.Example{
			{
				Description: "Reset the oldest stale claim",
				Command:     "crewplan reclaim",
			},
			{
				Description: "Reset a specific claim with an audit reason",
				Command:     "crewplan reclaim P1.M1.E2.T001 --reason \"agent-3 decommissioned\"",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("reclaim", &params)
		},
		Run: func(args []string) error {
			return runReclaim(&params, args, os.Stdout)
		},
	}
}

func runReclaim(p *reclaimParams, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: crewplan reclaim [task] [flags]")
	}
	st, cfg, pc, err := loadEngine(&p.storeOptions)
	if err != nil {
		return err
	}

	var targets []reclaimTarget
	if len(args) == 1 {
		targets = append(targets, reclaimTarget{ref: args[0], reason: p.Reason})
	} else {
		policy := cfg.SchedulerPolicy()
		calc := scheduler.New(pc.tree, policy, clock.Real())
		stale := calc.StaleClaims()
		if len(stale) == 0 {
			if done, err := p.EmitJSON([]*claim.Result{}); done {
				return err
			}
			fmt.Fprintln(out, "no stale claims")
			return nil
		}
		if !p.All {
			stale = stale[:1]
		}
		for _, sc := range stale {
			reason := p.Reason
			if reason == "" {
				reason = fmt.Sprintf("claim stale after %dm", int(sc.Age.Minutes()))
			}
			targets = append(targets, reclaimTarget{ref: sc.Task.ID, reason: reason})
		}
	}

	var results []*claim.Result
	for _, target := range targets {
		result, err := pc.engine.Reclaim(target.ref, target.reason)
		if err != nil {
			return reportEngineError(&p.JSONOutput, err)
		}
		task, _ := pc.tree.Task(result.TaskID)
		if err := persistMutation(st, cfg, pc.tree, task, result); err != nil {
			return err
		}
		syncSessionRecord(st, result)
		results = append(results, result)
	}

	if done, err := p.EmitJSON(results); done {
		return err
	}
	for _, result := range results {
		fmt.Fprintf(out, "%s reclaimed from %s (%s)\n", result.TaskID, orDash(result.Agent), result.Reason)
	}
	return nil
}

type reclaimTarget struct {
	ref    string
	reason string
}
