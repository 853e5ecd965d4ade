// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
)

func createCommand() *cli.Command {
	return &cli.Command{
		Name:    "create",
		Summary: "Add phases, milestones, epics, tasks, bugs, or ideas",
		Description: `Create backlog items. Identifiers are assigned automatically: the
next free number at that level. A missing store is initialized by the
first phase.`,
		Usage: "crewplan create <kind> ... [flags]",
		Subcommands: []*cli.Command{
			createPhaseCommand(),
			createMilestoneCommand(),
			createEpicCommand(),
			createTaskCommand(),
			createBugCommand(),
			createIdeaCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Grow the hierarchy top down",
				Command:     "crewplan create phase \"Sync engine\" --estimate-weeks 6",
			},
			{
				Description: "Add a task with dependencies",
				Command:     "crewplan create task P1.M2.E1 \"Wire the codec\" --estimate 4 --depends P1.M2.E1.T001",
			},
		},
	}
}

// parseComplexity and parsePriority accept the empty string for an
// omitted flag; anything else goes through the schema parsers.
func parseComplexity(s string) (schema.Complexity, error) {
	if s == "" {
		return "", nil
	}
	return schema.ParseComplexity(s)
}

func parsePriority(s string) (schema.Priority, error) {
	if s == "" {
		return "", nil
	}
	return schema.ParsePriority(s)
}

type createPhaseParams struct {
	cli.JSONOutput
	storeOptions
	EstimateWeeks float64  `flag:"estimate-weeks" desc:"estimate in weeks"`
	Priority      string   `flag:"priority,p" desc:"low, medium, high, or critical"`
	Complexity    string   `flag:"complexity" desc:"low, medium, high, or critical"`
	DependsOn     []string `flag:"depends" desc:"dependency references"`
}

func createPhaseCommand() *cli.Command {
	var params createPhaseParams
	return &cli.Command{
		Name:    "phase",
		Summary: "Create a phase",
		Usage:   "crewplan create phase <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create phase", &params)
		},
		Run: func(args []string) error {
			return runCreatePhase(&params, args, os.Stdout)
		},
	}
}

func runCreatePhase(p *createPhaseParams, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan create phase <title> [flags]")
	}
	priority, err := parsePriority(p.Priority)
	if err != nil {
		return err
	}
	complexity, err := parseComplexity(p.Complexity)
	if err != nil {
		return err
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	phase, err := st.CreatePhase(args[0], store.PhaseOptions{
		EstimateWeeks: p.EstimateWeeks,
		Priority:      priority,
		Complexity:    complexity,
		DependsOn:     p.DependsOn,
	})
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(phase); done {
		return err
	}
	fmt.Fprintf(out, "created %s  %s\n", phase.ID, phase.Title)
	return nil
}

type createContainerParams struct {
	cli.JSONOutput
	storeOptions
	Estimate   float64  `flag:"estimate,e" desc:"estimate in hours"`
	Complexity string   `flag:"complexity" desc:"low, medium, high, or critical"`
	DependsOn  []string `flag:"depends" desc:"dependency references"`
}

func (p *createContainerParams) options() (store.ContainerOptions, error) {
	complexity, err := parseComplexity(p.Complexity)
	if err != nil {
		return store.ContainerOptions{}, err
	}
	return store.ContainerOptions{
		EstimateHours: p.Estimate,
		Complexity:    complexity,
		DependsOn:     p.DependsOn,
	}, nil
}

func createMilestoneCommand() *cli.Command {
	var params createContainerParams
	return &cli.Command{
		Name:    "milestone",
		Summary: "Create a milestone in a phase",
		Usage:   "crewplan create milestone <phase> <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create milestone", &params)
		},
		Run: func(args []string) error {
			return runCreateMilestone(&params, args, os.Stdout)
		},
	}
}

func runCreateMilestone(p *createContainerParams, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: crewplan create milestone <phase> <title> [flags]")
	}
	opts, err := p.options()
	if err != nil {
		return err
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	milestone, err := st.CreateMilestone(args[0], args[1], opts)
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(milestone); done {
		return err
	}
	fmt.Fprintf(out, "created %s  %s\n", milestone.ID, milestone.Title)
	return nil
}

func createEpicCommand() *cli.Command {
	var params createContainerParams
	return &cli.Command{
		Name:    "epic",
		Summary: "Create an epic in a milestone",
		Usage:   "crewplan create epic <milestone> <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create epic", &params)
		},
		Run: func(args []string) error {
			return runCreateEpic(&params, args, os.Stdout)
		},
	}
}

func runCreateEpic(p *createContainerParams, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: crewplan create epic <milestone> <title> [flags]")
	}
	opts, err := p.options()
	if err != nil {
		return err
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	epic, err := st.CreateEpic(args[0], args[1], opts)
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(epic); done {
		return err
	}
	fmt.Fprintf(out, "created %s  %s\n", epic.ID, epic.Title)
	return nil
}

type createTaskParams struct {
	cli.JSONOutput
	storeOptions
	Estimate   float64  `flag:"estimate,e" desc:"estimate in hours"`
	Complexity string   `flag:"complexity" desc:"low, medium, high, or critical"`
	Priority   string   `flag:"priority,p" desc:"low, medium, high, or critical"`
	DependsOn  []string `flag:"depends" desc:"dependency references"`
	Tags       []string `flag:"tags" desc:"tags"`
	BodyFile   string   `flag:"body-file" desc:"markdown body file ('-' reads stdin)"`
}

func (p *createTaskParams) options() (store.TaskOptions, error) {
	complexity, err := parseComplexity(p.Complexity)
	if err != nil {
		return store.TaskOptions{}, err
	}
	priority, err := parsePriority(p.Priority)
	if err != nil {
		return store.TaskOptions{}, err
	}
	body := ""
	if p.BodyFile != "" {
		var data []byte
		if p.BodyFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(p.BodyFile)
		}
		if err != nil {
			return store.TaskOptions{}, fmt.Errorf("reading body: %w", err)
		}
		body = string(data)
	}
	return store.TaskOptions{
		EstimateHours: p.Estimate,
		Complexity:    complexity,
		Priority:      priority,
		DependsOn:     p.DependsOn,
		Tags:          p.Tags,
		Body:          body,
	}, nil
}

func createTaskCommand() *cli.Command {
	var params createTaskParams
	return &cli.Command{
		Name:    "task",
		Summary: "Create a task in an epic",
		Usage:   "crewplan create task <epic> <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create task", &params)
		},
		Run: func(args []string) error {
			return runCreateTask(&params, args, os.Stdout)
		},
	}
}

func runCreateTask(p *createTaskParams, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: crewplan create task <epic> <title> [flags]")
	}
	opts, err := p.options()
	if err != nil {
		return err
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	task, err := st.CreateTask(args[0], args[1], opts)
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(task); done {
		return err
	}
	fmt.Fprintf(out, "created %s  %s\n", task.ID, task.Title)
	return nil
}

func createBugCommand() *cli.Command {
	var params createTaskParams
	return &cli.Command{
		Name:    "bug",
		Summary: "File a bug",
		Usage:   "crewplan create bug <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create bug", &params)
		},
		Run: func(args []string) error {
			return runCreateFlat(&params, args, "bug", os.Stdout)
		},
	}
}

func createIdeaCommand() *cli.Command {
	var params createTaskParams
	return &cli.Command{
		Name:    "idea",
		Summary: "Park an idea",
		Usage:   "crewplan create idea <title> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create idea", &params)
		},
		Run: func(args []string) error {
			return runCreateFlat(&params, args, "idea", os.Stdout)
		},
	}
}

func runCreateFlat(p *createTaskParams, args []string, kind string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan create %s <title> [flags]", kind)
	}
	opts, err := p.options()
	if err != nil {
		return err
	}
	if opts.Body != "" {
		return fmt.Errorf("%ss are index records; --body-file applies to tasks only", kind)
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	var task *schema.Task
	if kind == "bug" {
		task, err = st.CreateBug(args[0], opts)
	} else {
		task, err = st.CreateIdea(args[0], opts)
	}
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(task); done {
		return err
	}
	fmt.Fprintf(out, "created %s  %s\n", task.ID, task.Title)
	return nil
}
