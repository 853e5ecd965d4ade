// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/crewplan/crewplan/cmd/crewplan/cli"
	"github.com/crewplan/crewplan/lib/validate"
)

type validateParams struct {
	cli.JSONOutput
	storeOptions
	Strict bool `flag:"strict" desc:"treat warnings as failures"`
}

func validateCommand() *cli.Command {
	var params validateParams
	return &cli.Command{
		Name:    "validate",
		Summary: "Check store integrity",
		Description: `Run the full consistency suite over the store: identifier shape,
parentage, dependency resolution, cycles, estimates, content, and run
state. Exits 1 when any error is found, or any warning with --strict.`,
		Usage: "crewplan validate [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("validate", &params)
		},
		Run: func(args []string) error {
			return runValidate(&params, args, os.Stdout)
		},
		Examples: []cli.Example{
			{
				Description: "Gate a commit on a clean backlog",
				Command:     "crewplan validate --strict",
			},
		},
	}
}

func runValidate(p *validateParams, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: crewplan validate [flags]")
	}
	cfg, err := p.load()
	if err != nil {
		return err
	}
	result, err := validate.RunChecks(cfg.Root, validate.Options{Strict: p.Strict})
	if err != nil {
		return err
	}
	if emitted, err := p.EmitJSON(result); emitted {
		if err != nil {
			return err
		}
		if !result.OK {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}
	for _, finding := range result.All() {
		fmt.Fprintln(out, finding)
	}
	fmt.Fprintln(out, result.Summary)
	if !result.OK {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
