// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/clock"
	"github.com/crewplan/crewplan/lib/session"
)

func contextCommand() *cli.Command {
	return &cli.Command{
		Name:    "context",
		Summary: "Inspect or update the session hand-off context",
		Description: `The run-state directory carries a human-editable context note and
one binary record per live agent session. Agents read the context on
startup to pick up where the previous session stopped.`,
		Usage: "crewplan context <show|set|clear> [flags]",
		Subcommands: []*cli.Command{
			contextShowCommand(),
			contextSetCommand(),
			contextClearCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Hand off to the next session",
				Command:     "crewplan context set --task P1.M2.E1.T004 --note \"codec half wired, see branch sync-wire\"",
			},
		},
	}
}

type contextShowParams struct {
	cli.JSONOutput
	storeOptions
}

func contextShowCommand() *cli.Command {
	var params contextShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show the context and live sessions",
		Usage:   "crewplan context show [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("context show", &params)
		},
		Run: func(args []string) error {
			return runContextShow(&params, args, os.Stdout)
		},
	}
}

type sessionReport struct {
	Agent            string    `json:"agent"`
	Task             string    `json:"task,omitempty"`
	ClaimedAt        time.Time `json:"claimed_at"`
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	HeartbeatMinutes int       `json:"heartbeat_age_minutes"`
	PID              int       `json:"pid,omitempty"`
}

type contextReport struct {
	Context  *session.Context `json:"context"`
	Sessions []sessionReport  `json:"sessions"`
	Problems []string         `json:"problems,omitempty"`
}

func runContextShow(p *contextShowParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan context show [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	dir := session.NewDir(st.RunStateDir())
	ctx, err := dir.LoadContext()
	if err != nil {
		return err
	}
	records, problems := dir.LoadRecords()

	now := clock.Real().Now()
	report := contextReport{Context: ctx, Sessions: []sessionReport{}, Problems: problems}
	for _, rec := range records {
		report.Sessions = append(report.Sessions, sessionReport{
			Agent:            rec.Agent,
			Task:             rec.Task,
			ClaimedAt:        rec.ClaimedAt,
			LastHeartbeat:    rec.LastHeartbeat,
			HeartbeatMinutes: int(rec.HeartbeatAge(now).Minutes()),
			PID:              rec.PID,
		})
	}
	if emitted, err := p.EmitJSON(report); emitted {
		return err
	}
	renderContext(out, report)
	return nil
}

func renderContext(out io.Writer, report contextReport) {
	if report.Context == nil && len(report.Sessions) == 0 && len(report.Problems) == 0 {
		fmt.Fprintln(out, "no session context")
		return
	}
	if ctx := report.Context; ctx != nil {
		fmt.Fprintf(out, "agent    %s\n", ctx.Agent)
		if ctx.Task != "" {
			fmt.Fprintf(out, "task     %s\n", ctx.Task)
		}
		if ctx.StartedAt != nil {
			fmt.Fprintf(out, "started  %s\n", ctx.StartedAt.UTC().Format("2006-01-02 15:04"))
		}
		if ctx.Note != "" {
			fmt.Fprintf(out, "note     %s\n", ctx.Note)
		}
	} else {
		fmt.Fprintln(out, "no context set")
	}
	if len(report.Sessions) > 0 {
		fmt.Fprintln(out, "\nsessions:")
		w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  AGENT\tTASK\tHEARTBEAT")
		for _, s := range report.Sessions {
			fmt.Fprintf(w, "  %s\t%s\t%dm ago\n", s.Agent, orDash(s.Task), s.HeartbeatMinutes)
		}
		w.Flush()
	}
	for _, problem := range report.Problems {
		fmt.Fprintf(out, "warning: %s\n", problem)
	}
}

type contextSetParams struct {
	cli.JSONOutput
	storeOptions
	AgentOptions
	Task string `flag:"task,t" desc:"task the session focuses on"`
	Note string `flag:"note" desc:"free-form hand-off note"`
}

func contextSetCommand() *cli.Command {
	var params contextSetParams
	return &cli.Command{
		Name:    "set",
		Summary: "Write the hand-off context",
		Usage:   "crewplan context set [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("context set", &params)
		},
		Run: func(args []string) error {
			return runContextSet(&params, args, os.Stdout)
		},
	}
}

func runContextSet(p *contextSetParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan context set [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	dir := session.NewDir(st.RunStateDir())
	ctx, err := dir.LoadContext()
	if err != nil || ctx == nil {
		ctx = &session.Context{}
	}
	if p.Agent != "" {
		ctx.Agent = p.Agent
	}
	if ctx.Agent == "" {
		return fmt.Errorf("agent is required: pass --agent or set $CREWPLAN_AGENT")
	}
	if p.Task != "" {
		ctx.Task = canonicalRef(p.Task)
		now := clock.Real().Now().UTC()
		ctx.StartedAt = &now
	}
	if p.Note != "" {
		ctx.Note = p.Note
	}
	if err := dir.SaveContext(ctx); err != nil {
		return err
	}
	if emitted, err := p.EmitJSON(ctx); emitted {
		return err
	}
	fmt.Fprintf(out, "context saved for %s\n", ctx.Agent)
	return nil
}

type contextClearParams struct {
	storeOptions
}

func contextClearCommand() *cli.Command {
	var params contextClearParams
	return &cli.Command{
		Name:    "clear",
		Summary: "Remove the hand-off context",
		Usage:   "crewplan context clear [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("context clear", &params)
		},
		Run: func(args []string) error {
			return runContextClear(&params, args, os.Stdout)
		},
	}
}

func runContextClear(p *contextClearParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan context clear [flags]")
	}
	st, _, err := p.open()
	if err != nil {
		return err
	}
	if err := session.NewDir(st.RunStateDir()).ClearContext(); err != nil {
		return err
	}
	fmt.Fprintln(out, "context cleared")
	return nil
}
