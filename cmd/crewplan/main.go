// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Command crewplan is the file-backed backlog planner for agent
// fleets: a hierarchical store of phases, milestones, epics, and
// tasks, a weighted critical-path scheduler, and a claim engine with
// an audit journal.
package main

import (
	"fmt"
	"os"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like validate) return
		// an ExitError with the desired exit code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "crewplan",
		Description: `Crewplan: backlog planning for agent fleets.

Track phases, milestones, epics, and tasks in plain files; rank work
by weighted critical path; claim and complete tasks under a status
state machine with a full audit journal.`,
		Subcommands: []*cli.Command{
			nextCommand(),
			claimCommand(),
			completeCommand(),
			statusCommand(),
			reclaimCommand(),
			listCommand(),
			showCommand(),
			statsCommand(),
			createCommand(),
			moveCommand(),
			lockCommand(),
			unlockCommand(),
			doneCommand(),
			notDoneCommand(),
			validateCommand(),
			logCommand(),
			boardCommand(),
			contextCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Usage:   "crewplan version",
				Run: func(args []string) error {
					fmt.Printf("crewplan %s\n", version.String())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Pick the next task on the critical path",
				Command:     "crewplan next",
			},
			{
				Description: "Claim it for an agent",
				Command:     "crewplan claim P1.M2.E1.T003 --agent agent-1",
			},
			{
				Description: "Finish it and propagate completion",
				Command:     "crewplan complete P1.M2.E1.T003",
			},
			{
				Description: "File a bug",
				Command:     "crewplan create bug \"Stats drift after reload\" --priority high",
			},
			{
				Description: "Check the store for structural problems",
				Command:     "crewplan validate --strict",
			},
			{
				Description: "Watch the backlog live",
				Command:     "crewplan board",
			},
		},
	}
}
