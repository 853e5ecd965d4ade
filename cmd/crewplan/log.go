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
	"github.com/crewplan/crewplan/lib/journal"
	"github.com/crewplan/crewplan/lib/taskpath"
)

type logParams struct {
	cli.JSONOutput
	storeOptions
	Task  string `flag:"task,t" desc:"only entries touching this reference"`
	Agent string `flag:"agent,a" desc:"only entries by this agent"`
	Limit int    `flag:"limit,n" desc:"show only the last N entries"`
}

func logCommand() *cli.Command {
	var params logParams
	return &cli.Command{
		Name:    "log",
		Summary: "Show the mutation journal",
		Description: `Print the audit journal: every claim, completion, status change,
reclaim, and force-mark, oldest first. Rotated segments are read
back transparently.`,
		Usage: "crewplan log [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("log", &params)
		},
		Run: func(args []string) error {
			return runLog(&params, args, os.Stdout)
		},
		Examples: []cli.Example{
			{
				Description: "Audit one task's history",
				Command:     "crewplan log --task P1.M2.E1.T004",
			},
			{
				Description: "Tail recent fleet activity",
				Command:     "crewplan log -n 20",
			},
		},
	}
}

func runLog(p *logParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan log [flags]")
	}
	st, cfg, err := p.open()
	if err != nil {
		return err
	}
	entries, err := journal.New(st.JournalDir(), cfg.JournalOptions()).Read()
	if err != nil {
		return err
	}
	entries = filterEntries(entries, p.Task, p.Agent)
	if p.Limit > 0 && len(entries) > p.Limit {
		entries = entries[len(entries)-p.Limit:]
	}
	if emitted, err := p.EmitJSON(entries); emitted {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "journal is empty")
		return nil
	}
	renderEntries(out, entries)
	return nil
}

func filterEntries(entries []journal.Entry, taskRef, agent string) []journal.Entry {
	if taskRef == "" && agent == "" {
		return entries
	}
	var kept []journal.Entry
	for _, e := range entries {
		if taskRef != "" && !taskpath.Matches(e.Task, taskRef) && !taskpath.Matches(taskRef, e.Task) {
			continue
		}
		if agent != "" && e.Agent != agent {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func renderEntries(out io.Writer, entries []journal.Entry) {
	w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tTASK\tAGENT\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Time.UTC().Format("2006-01-02 15:04"),
			e.Action, e.Task, orDash(e.Agent), entryDetail(e))
	}
	w.Flush()
}

func entryDetail(e journal.Entry) string {
	var parts []string
	if e.From != "" || e.To != "" {
		parts = append(parts, fmt.Sprintf("%s -> %s", orDash(e.From), orDash(e.To)))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "  ")
}
