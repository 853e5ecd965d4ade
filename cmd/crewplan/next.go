// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/scheduler"
	"github.com/crewplan/crewplan/lib/store"
	"github.com/crewplan/crewplan/lib/taskpath"
)

type nextParams struct {
	cli.JSONOutput
	storeOptions
	Batch bool `flag:"batch,b" desc:"suggest additional non-conflicting items (batch size from config)"`
}

// nextReport is the machine-readable answer to "what should I work
// on". Task is nil when nothing is claimable.
type nextReport struct {
	Task         *schema.Task       `json:"task,omitempty"`
	CriticalPath []string           `json:"critical_path"`
	Batch        []*schema.Task     `json:"batch,omitempty"`
	StaleClaims  []staleClaimReport `json:"stale_claims,omitempty"`
}

type staleClaimReport struct {
	Task       string `json:"task"`
	Claimant   string `json:"claimed_by,omitempty"`
	AgeMinutes int    `json:"age_minutes"`
}

func nextCommand() *cli.Command {
	var params nextParams
	return &cli.Command{
		Name:    "next",
		Summary: "Pick the next available task",
		Description: `Rank the backlog by weighted critical path and print the task an
agent should claim next. With --batch, suggest additional items that
can run in parallel without dependency conflicts.`,
		Usage: "crewplan next [flags]",
		Examples: []cli.Example{
			{
				Description: "The single best next task",
				Command:     "crewplan next",
			},
			{
				Description: "A parallel batch for a multi-agent fleet",
				Command:     "crewplan next --batch --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("next", &params)
		},
		Run: func(args []string) error {
			return runNext(&params, args, os.Stdout)
		},
	}
}

func runNext(p *nextParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan next [flags]")
	}
	st, cfg, err := p.open()
	if err != nil {
		return err
	}
	tree, err := st.Load(store.Metadata)
	if err != nil {
		return err
	}
	policy := cfg.SchedulerPolicy()
	calc := scheduler.New(tree, policy, clock.Real())

	batchCount := 0
	if p.Batch {
		batchCount = policy.BatchSize
	}
	report, err := buildNextReport(tree, calc, batchCount)
	if err != nil {
		return err
	}

	if done, err := p.EmitJSON(report); done {
		return err
	}
	renderNext(out, report)
	return nil
}

func buildNextReport(tree *plan.Tree, calc *scheduler.Calculator, batchCount int) (*nextReport, error) {
	path, nextID := calc.Calculate()
	report := &nextReport{CriticalPath: path}
	if report.CriticalPath == nil {
		report.CriticalPath = []string{}
	}

	if nextID != "" {
		task, ok := tree.Task(nextID)
		if !ok {
			return nil, fmt.Errorf("scheduler returned unknown task %q", nextID)
		}
		report.Task = task
		if batchCount > 0 {
			extra, err := batchSuggestions(calc, task, batchCount)
			if err != nil {
				return nil, err
			}
			report.Batch = extra
		}
	}

	for _, stale := range calc.StaleClaims() {
		report.StaleClaims = append(report.StaleClaims, staleClaimReport{
			Task:       stale.Task.ID,
			Claimant:   stale.Task.Claimant,
			AgeMinutes: int(stale.Age.Minutes()),
		})
	}
	return report, nil
}

// batchSuggestions picks parallel work to go with the primary: more
// bugs when the primary is a bug, otherwise independent tasks from
// elsewhere in the hierarchy, topped up with milestone siblings when
// the backlog is too narrow for full independence.
func batchSuggestions(calc *scheduler.Calculator, primary *schema.Task, count int) ([]*schema.Task, error) {
	if primary.Kind() != taskpath.KindTask {
		return calc.FindAdditionalBugs(primary.ID, count)
	}
	batch, err := calc.FindIndependentTasks(primary.ID, count)
	if err != nil {
		return nil, err
	}
	if len(batch) < count {
		siblings, err := calc.FindSiblingTasks(primary.ID, count-len(batch))
		if err != nil {
			return nil, err
		}
		for _, task := range siblings {
			if len(batch) == count {
				break
			}
			if !containsID(batch, task.ID) {
				batch = append(batch, task)
			}
		}
	}
	return batch, nil
}

func containsID(tasks []*schema.Task, id string) bool {
	for _, task := range tasks {
		if task.ID == id {
			return true
		}
	}
	return false
}

func renderNext(out io.Writer, report *nextReport) {
	if report.Task == nil {
		fmt.Fprintln(out, "nothing to claim: no pending task has its dependencies met")
	} else {
		task := report.Task
		fmt.Fprintf(out, "%s  %s\n", task.ID, task.Title)
		fmt.Fprintf(out, "  estimate %s", hoursLabel(task.EstimateHours))
		if task.Complexity != "" {
			fmt.Fprintf(out, "  complexity %s", task.Complexity)
		}
		if task.Priority != "" {
			fmt.Fprintf(out, "  priority %s", task.Priority)
		}
		fmt.Fprintln(out)
		if len(report.CriticalPath) > 0 {
			fmt.Fprintf(out, "  critical path: %s\n", strings.Join(report.CriticalPath, " -> "))
		}
	}

	if len(report.Batch) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "also claimable:")
		for _, task := range report.Batch {
			fmt.Fprintf(out, "  %s  %s (%s)\n", task.ID, task.Title, hoursLabel(task.EstimateHours))
		}
	}

	if len(report.StaleClaims) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "stale claims:")
		for _, stale := range report.StaleClaims {
			fmt.Fprintf(out, "  %s  %s, %dm\n", stale.Task, orDash(stale.Claimant), stale.AgeMinutes)
		}
		fmt.Fprintln(out, "run 'crewplan reclaim' to reset the oldest")
	}
}
