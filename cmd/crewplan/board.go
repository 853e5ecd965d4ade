// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/board"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/store"
)

type boardParams struct {
	storeOptions
}

func boardCommand() *cli.Command {
	var params boardParams
	return &cli.Command{
		Name:    "board",
		Summary: "Interactive backlog board",
		Description: `Open the full-screen board: claimable, in-progress, blocked, and
all-items views with a detail pane. Press r to reload from disk and
q to quit.`,
		Usage: "crewplan board [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("board", &params)
		},
		Run: func(args []string) error {
			return runBoard(&params, args)
		},
	}
}

func runBoard(p *boardParams, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan board [flags]")
	}
	st, cfg, err := p.open()
	if err != nil {
		return err
	}
	source := func() (*plan.Tree, error) {
		return st.Load(store.Full)
	}
	model, err := board.New(source, cfg.SchedulerPolicy())
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
