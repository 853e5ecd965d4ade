// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/mdterm"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/scheduler"
	"github.com/crewplan/crewplan/lib/store"
	"github.com/crewplan/crewplan/lib/taskpath"
)

type listParams struct {
	cli.JSONOutput
	storeOptions
	Status  string `flag:"status" desc:"filter by status (pending, in-progress, done, ...)"`
	Ready   bool   `flag:"ready" desc:"only tasks ready to claim, in rank order"`
	Claimed bool   `flag:"claimed" desc:"only claimed tasks"`
	Bugs    bool   `flag:"bugs" desc:"bugs only"`
	Ideas   bool   `flag:"ideas" desc:"ideas only"`
}

func listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Summary: "List backlog items",
		Description: `List tasks, bugs, and ideas in hierarchy order. An optional phase,
milestone, or epic reference restricts the listing to that subtree.
Filters compose: --ready --bugs lists claimable bugs only.`,
		Usage: "crewplan list [subtree] [flags]",
		Examples: []cli.Example{
			{
				Description: "Everything under one milestone",
				Command:     "crewplan list P1.M2",
			},
			{
				Description: "Claimable work, best first",
				Command:     "crewplan list --ready",
			},
			{
				Description: "Blocked tasks as JSON",
				Command:     "crewplan list --status blocked --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			return runList(&params, args, os.Stdout)
		},
	}
}

func runList(p *listParams, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: crewplan list [subtree] [flags]")
	}
	st, cfg, err := p.open()
	if err != nil {
		return err
	}
	tree, err := st.Load(store.Metadata)
	if err != nil {
		return err
	}

	var statusFilter schema.Status
	if p.Status != "" {
		statusFilter, err = schema.ParseStatus(p.Status)
		if err != nil {
			return err
		}
	}

	var subtree taskpath.Path
	if len(args) == 1 {
		subtree, err = taskpath.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad subtree reference %q: %w", args[0], err)
		}
	}

	tasks := tree.AllTasks()
	if p.Ready {
		calc := scheduler.New(tree, cfg.SchedulerPolicy(), clock.Real())
		tasks = calc.Available()
	}

	var rows []*schema.Task
	for _, task := range tasks {
		if !subtree.IsZero() {
			tp, err := taskpath.Parse(task.ID)
			if err != nil {
				continue
			}
			if subtree.Compare(tp) != 0 && !subtree.IsAncestorOf(tp) {
				continue
			}
		}
		if statusFilter != "" && task.Status != statusFilter {
			continue
		}
		if p.Claimed && !task.Claimed() {
			continue
		}
		if p.Bugs && task.Kind() != taskpath.KindBug {
			continue
		}
		if p.Ideas && task.Kind() != taskpath.KindIdea {
			continue
		}
		rows = append(rows, task)
	}

	if done, err := p.EmitJSON(rows); done {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "no matching items")
		return nil
	}
	renderTaskTable(out, rows)
	return nil
}

func renderTaskTable(out io.Writer, tasks []*schema.Task) {
	tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRI\tEST\tAGENT\tTITLE")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			task.Status,
			orDash(string(task.Priority)),
			hoursLabel(task.EstimateHours),
			orDash(task.Claimant),
			task.Title,
		)
	}
	tw.Flush()
}

type showParams struct {
	cli.JSONOutput
	storeOptions
	Width int `flag:"width" desc:"render width (default: terminal width)"`
}

func showCommand() *cli.Command {
	var params showParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a task with its rendered body",
		Description: `Print a task's full record and render its markdown body for the
terminal. Bugs and ideas are index records without a body; for those
only the record is shown.`,
		Usage: "crewplan show <task> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(args []string) error {
			return runShow(&params, args, os.Stdout)
		},
	}
}

func runShow(p *showParams, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan show <task> [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	tree, err := st.Load(store.Full)
	if err != nil {
		return err
	}
	task, ok := tree.Task(args[0])
	if !ok {
		return fmt.Errorf("no task matches %q", args[0])
	}

	if p.OutputJSON {
		return cli.WriteJSON(struct {
			*schema.Task
			Body string `json:"body,omitempty"`
		}{task, task.Body})
	}

	renderTaskHeader(out, task)
	if strings.TrimSpace(task.Body) != "" {
		width := p.Width
		if width <= 0 {
			width = terminalWidth(os.Stdout, 80)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, mdterm.Render(task.Body, mdterm.DefaultTheme, width))
	}
	return nil
}

func renderTaskHeader(out io.Writer, task *schema.Task) {
	fmt.Fprintf(out, "%s  %s\n", task.ID, task.Title)
	fmt.Fprintf(out, "status %s  estimate %s", task.Status, hoursLabel(task.EstimateHours))
	if task.Complexity != "" {
		fmt.Fprintf(out, "  complexity %s", task.Complexity)
	}
	if task.Priority != "" {
		fmt.Fprintf(out, "  priority %s", task.Priority)
	}
	fmt.Fprintln(out)
	if task.Claimant != "" {
		fmt.Fprintf(out, "claimed by %s", task.Claimant)
		if task.ClaimedAt != nil {
			fmt.Fprintf(out, " since %s", task.ClaimedAt.UTC().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(out)
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(out, "completed %s", task.CompletedAt.UTC().Format("2006-01-02 15:04"))
		if task.DurationMinutes != nil {
			fmt.Fprintf(out, " after %dm", *task.DurationMinutes)
		}
		fmt.Fprintln(out)
	}
	if len(task.DependsOn) > 0 {
		fmt.Fprintf(out, "depends on %s\n", strings.Join(task.DependsOn, ", "))
	}
	if len(task.Tags) > 0 {
		fmt.Fprintf(out, "tags %s\n", strings.Join(task.Tags, ", "))
	}
	if task.StatusReason != "" {
		fmt.Fprintf(out, "reason: %s\n", task.StatusReason)
	}
}

type statsParams struct {
	cli.JSONOutput
	storeOptions
}

type statsReport struct {
	Total  schema.Stats  `json:"total"`
	Phases []phaseStats  `json:"phases"`
	Bugs   *schema.Stats `json:"bugs,omitempty"`
	Ideas  *schema.Stats `json:"ideas,omitempty"`
}

type phaseStats struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Stats schema.Stats `json:"stats"`
}

func statsCommand() *cli.Command {
	var params statsParams
	return &cli.Command{
		Name:    "stats",
		Summary: "Show completion statistics",
		Usage:   "crewplan stats [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stats", &params)
		},
		Run: func(args []string) error {
			return runStats(&params, args, os.Stdout)
		},
	}
}

func runStats(p *statsParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan stats [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	tree, err := st.Load(store.Metadata)
	if err != nil {
		return err
	}
	tree.RefreshStats()

	report := statsReport{Total: tree.Stats(), Phases: []phaseStats{}}
	for _, phase := range tree.Phases {
		ps := phaseStats{ID: phase.ID, Title: phase.Title}
		if phase.Stats != nil {
			ps.Stats = *phase.Stats
		}
		report.Phases = append(report.Phases, ps)
	}
	report.Bugs = flatStats(tree.Bugs)
	report.Ideas = flatStats(tree.Ideas)

	if done, err := p.EmitJSON(report); done {
		return err
	}
	renderStats(out, &report)
	return nil
}

func flatStats(items []*schema.Task) *schema.Stats {
	if len(items) == 0 {
		return nil
	}
	var stats schema.Stats
	for _, item := range items {
		stats.Count(item.Status)
	}
	return &stats
}

func renderStats(out io.Writer, report *statsReport) {
	total := report.Total
	fmt.Fprintf(out, "%d tasks: %d done (%.0f%%), %d in progress, %d pending, %d blocked",
		total.Total, total.Done, total.DoneRatio()*100, total.InProgress, total.Pending, total.Blocked)
	if total.Rejected > 0 {
		fmt.Fprintf(out, ", %d rejected", total.Rejected)
	}
	if total.Cancelled > 0 {
		fmt.Fprintf(out, ", %d cancelled", total.Cancelled)
	}
	fmt.Fprintln(out)

	if len(report.Phases) > 0 {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PHASE\tTITLE\tDONE\tACTIVE\tPENDING\tBLOCKED")
		for _, phase := range report.Phases {
			s := phase.Stats
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%d\n",
				phase.ID, phase.Title, s.Done, s.Total, s.InProgress, s.Pending, s.Blocked)
		}
		tw.Flush()
	}

	if report.Bugs != nil {
		fmt.Fprintf(out, "bugs: %d total, %d done\n", report.Bugs.Total, report.Bugs.Done)
	}
	if report.Ideas != nil {
		fmt.Fprintf(out, "ideas: %d total, %d done\n", report.Ideas.Total, report.Ideas.Done)
	}
}
