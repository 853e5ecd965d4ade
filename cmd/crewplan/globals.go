// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/claim"
	"github.com/crewplan/crewplan/lib/config"
	"github.com/crewplan/crewplan/lib/journal"
	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/store"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// storeOptions locates the backlog store and configuration file. Every
// command that touches a store embeds it.
type storeOptions struct {
	Root       string `flag:"root" desc:"backlog store directory (overrides config)"`
	ConfigFile string `flag:"config" desc:"config file (default $CREWPLAN_CONFIG)"`
}

// load resolves configuration: --config beats CREWPLAN_CONFIG beats
// the defaults, and --root beats the configured store root.
func (o *storeOptions) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.ConfigFile != "" {
		cfg, err = config.LoadFile(o.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.Root != "" {
		cfg.Root = o.Root
	}
	return cfg, nil
}

// open resolves configuration and returns a handle on the store. The
// store is not read; commands pick their own load mode.
func (o *storeOptions) open() (*store.Store, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	return store.Open(cfg.Root), cfg, nil
}

// AgentOptions supplies the acting agent identity. The flag default
// comes from $CREWPLAN_AGENT so fleet shells set it once. Exported so
// reflect can call AddFlags on it when embedded.
type AgentOptions struct {
	Agent string
}

func (o *AgentOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.Agent, "agent", "a", os.Getenv("CREWPLAN_AGENT"),
		"acting agent identifier (default $CREWPLAN_AGENT)")
}

// persistMutation writes a successful engine result to disk: the task
// record, refreshed stats, the containers completion propagation
// touched, and the audit journal.
func persistMutation(st *store.Store, cfg *config.Config, tree *plan.Tree, task *schema.Task, result *claim.Result) error {
	if err := st.SaveTask(task); err != nil {
		return err
	}
	if err := st.SaveStats(tree); err != nil {
		return err
	}
	touched := append(append([]string{}, result.Promoted...), result.Demoted...)
	if err := st.SyncContainers(tree, touched); err != nil {
		return err
	}
	return appendJournal(st, cfg, journal.Entry{
		Time:   result.At,
		Agent:  result.Agent,
		Task:   result.TaskID,
		Action: result.Action,
		From:   string(result.From),
		To:     string(result.To),
		Reason: result.Reason,
	})
}

func appendJournal(st *store.Store, cfg *config.Config, entry journal.Entry) error {
	if err := journal.New(st.JournalDir(), cfg.JournalOptions()).Append(entry); err != nil {
		return fmt.Errorf("appending journal: %w", err)
	}
	return nil
}

// reportEngineError renders a structured engine failure. JSON mode
// emits the full record on stdout and exits 1 without a generic error
// line; human mode returns the message with the remediation suggestion
// attached.
func reportEngineError(jsonOut *cli.JSONOutput, err error) error {
	engineErr, ok := claim.AsError(err)
	if !ok {
		return err
	}
	if jsonOut.OutputJSON {
		if writeErr := cli.WriteJSON(engineErr); writeErr != nil {
			return writeErr
		}
		return &cli.ExitError{Code: 1}
	}
	if engineErr.Suggestion != "" {
		return fmt.Errorf("%s (%s)", engineErr.Message, engineErr.Suggestion)
	}
	return err
}

// canonicalRef normalizes ref to its canonical rendering when it
// parses as a full identifier of any kind. Short references pass
// through unchanged; the store resolves those itself.
func canonicalRef(ref string) string {
	if p, err := taskpath.Parse(ref); err == nil {
		return p.String()
	}
	if n, err := taskpath.ParseBug(ref); err == nil {
		return taskpath.FormatBug(n)
	}
	if n, err := taskpath.ParseIdea(ref); err == nil {
		return taskpath.FormatIdea(n)
	}
	return ref
}

// hoursLabel formats an estimate for display: "4h", "0.5h", or "-"
// when unset.
func hoursLabel(hours float64) string {
	if hours == 0 {
		return "-"
	}
	return strconv.FormatFloat(hours, 'f', -1, 64) + "h"
}

// orDash substitutes "-" for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// terminalWidth returns the column count of the terminal behind f, or
// the fallback when f is not a terminal.
func terminalWidth(f *os.File, fallback int) int {
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return width
	}
	return fallback
}
