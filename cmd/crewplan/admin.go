// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/journal"
)

type moveParams struct {
	cli.JSONOutput
	storeOptions
}

func moveCommand() *cli.Command {
	var params moveParams
	return &cli.Command{
		Name:    "move",
		Summary: "Move an item to a new parent",
		Description: `Move a milestone, epic, or task under a different parent. The item
is renumbered at its destination and every dependency reference into
the moved subtree is rewritten to the new identifiers.`,
		Usage: "crewplan move <src> <dst-parent> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("move", &params)
		},
		Run: func(args []string) error {
			return runMove(&params, args, os.Stdout)
		},
		Examples: []cli.Example{
			{
				Description: "Pull an epic forward into the active milestone",
				Command:     "crewplan move P2.M1.E3 P1.M2",
			},
		},
	}
}

type moveReport struct {
	ID      string            `json:"id"`
	Renames map[string]string `json:"renames"`
}

func runMove(p *moveParams, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: crewplan move <src> <dst-parent> [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	newID, renames, err := st.MoveItem(args[0], args[1])
	if err != nil {
		return err
	}
	if done, err := p.EmitJSON(moveReport{ID: newID, Renames: renames}); done {
		return err
	}
	fmt.Fprintf(out, "moved %s -> %s\n", args[0], newID)
	if n := len(renames); n > 1 {
		fmt.Fprintf(out, "renumbered %d items\n", n)
	}
	return nil
}

type lockParams struct {
	cli.JSONOutput
	storeOptions
}

func lockCommand() *cli.Command {
	var params lockParams
	return &cli.Command{
		Name:    "lock",
		Summary: "Lock a container against new children",
		Usage:   "crewplan lock <phase|milestone|epic> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("lock", &params)
		},
		Run: func(args []string) error {
			return runSetLocked(&params, args, true, os.Stdout)
		},
	}
}

func unlockCommand() *cli.Command {
	var params lockParams
	return &cli.Command{
		Name:    "unlock",
		Summary: "Unlock a container",
		Usage:   "crewplan unlock <phase|milestone|epic> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("unlock", &params)
		},
		Run: func(args []string) error {
			return runSetLocked(&params, args, false, os.Stdout)
		},
	}
}

type lockReport struct {
	ID     string `json:"id"`
	Locked bool   `json:"locked"`
}

func runSetLocked(p *lockParams, args []string, locked bool, out io.Writer) error {
	if len(args) != 1 {
		verb := "lock"
		if !locked {
			verb = "unlock"
		}
		return fmt.Errorf("usage: crewplan %s <phase|milestone|epic> [flags]", verb)
	}
	ref := canonicalRef(args[0])
	st, _, err := p.open()
	if err != nil {
		return err
	}
	if err := st.SetItemLocked(ref, locked); err != nil {
		return err
	}
	if done, err := p.EmitJSON(lockReport{ID: ref, Locked: locked}); done {
		return err
	}
	if locked {
		fmt.Fprintf(out, "locked %s\n", ref)
	} else {
		fmt.Fprintf(out, "unlocked %s\n", ref)
	}
	return nil
}

type doneParams struct {
	cli.JSONOutput
	storeOptions
	AgentOptions
}

func doneCommand() *cli.Command {
	var params doneParams
	return &cli.Command{
		Name:    "done",
		Summary: "Force-mark an item and its descendants done",
		Description: `Mark a task, or a container and every task under it, DONE without
going through claim and complete. Cancelled tasks keep their status.
Containers that become complete are promoted.`,
		Usage: "crewplan done <ref> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("done", &params)
		},
		Run: func(args []string) error {
			return runSetDone(&params, args, true, os.Stdout)
		},
	}
}

func notDoneCommand() *cli.Command {
	var params doneParams
	return &cli.Command{
		Name:    "not-done",
		Summary: "Reopen an item and its descendants",
		Description: `Return a DONE task, or every DONE task under a container, to
PENDING with claim and completion state cleared. Ancestors that were
complete are demoted.`,
		Usage: "crewplan not-done <ref> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("not-done", &params)
		},
		Run: func(args []string) error {
			return runSetDone(&params, args, false, os.Stdout)
		},
	}
}

type doneReport struct {
	ID      string   `json:"id"`
	Action  string   `json:"action"`
	Changed []string `json:"changed"`
}

func runSetDone(p *doneParams, args []string, done bool, out io.Writer) error {
	action := "done"
	if !done {
		action = "not-done"
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: crewplan %s <ref> [flags]", action)
	}
	ref := canonicalRef(args[0])
	st, cfg, err := p.open()
	if err != nil {
		return err
	}
	now := clock.Real().Now()
	var changed []string
	if done {
		changed, err = st.SetItemDone(ref, now)
	} else {
		changed, err = st.SetItemNotDone(ref, now)
	}
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		entry := journal.Entry{
			Time:   now,
			Agent:  p.Agent,
			Task:   ref,
			Action: action,
		}
		if err := appendJournal(st, cfg, entry); err != nil {
			return err
		}
	}
	if emitted, err := p.EmitJSON(doneReport{ID: ref, Action: action, Changed: changed}); emitted {
		return err
	}
	if len(changed) == 0 {
		fmt.Fprintf(out, "%s: nothing to change\n", ref)
		return nil
	}
	fmt.Fprintf(out, "%s %s (%d items)\n", ref, statusVerb(done), len(changed))
	return nil
}

func statusVerb(done bool) string {
	if done {
		return "marked done"
	}
	return "reopened"
}
