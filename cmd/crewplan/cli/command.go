// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the CLI tree. Interior nodes carry Subcommands
// and route on the first positional argument; leaf nodes carry Run. A
// node may carry both, in which case Run handles invocations whose
// first argument is not a subcommand name.
type Command struct {
	// Name is the word the user types to select this command.
	Name string

	// Summary is the one-line description shown in the parent's
	// command listing.
	Summary string

	// Description opens this command's own help page. When empty, the
	// Summary stands in.
	Description string

	// Usage overrides the synthesized usage line, for commands whose
	// positional arguments deserve spelling out.
	Usage string

	// Examples render near the bottom of the help page.
	Examples []Example

	// Flags builds the command's flag set. It is called fresh for
	// every parse so repeated executions never share parser state.
	// Nil means the command takes no flags.
	Flags func() *pflag.FlagSet

	// Subcommands is the next level of the tree.
	Subcommands []*Command

	// Run receives the positional arguments that remain after flag
	// parsing.
	Run func(args []string) error

	// parent is stitched in during dispatch so help output and error
	// hints can show the full invocation path.
	parent *Command
}

// Example pairs an explanatory comment with a literal command line for
// the Examples section of a help page.
type Example struct {
	Description string
	Command     string
}

// Execute routes args through the command tree and runs the selected
// command. Errors come back formatted for direct display, with typo
// suggestions and a pointer at --help attached.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && wantsHelp(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			return c.dispatch(args[0], args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(os.Stderr)
			if len(args) == 0 {
				return errors.New("subcommand required")
			}
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}

	rest, err := c.parseArgs(args)
	if err != nil {
		return err
	}
	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(rest)
}

// dispatch hands the remaining arguments to the named subcommand, or
// reports the unknown name alongside the closest defined one.
func (c *Command) dispatch(name string, rest []string) error {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(rest)
		}
	}
	hint := ""
	if match := nearestCommand(name, c.Subcommands); match != "" {
		hint = fmt.Sprintf(" (did you mean %q?)", match)
	}
	return fmt.Errorf("unknown command %q%s\n\nRun '%s --help' for usage.", name, hint, c.fullName())
}

// parseArgs runs the flag set over args and returns the positional
// remainder. pflag's own error printing is discarded; parse failures
// come back as display-ready errors instead.
func (c *Command) parseArgs(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		return nil, c.flagFailure(err, args)
	}
	return flagSet.Args(), nil
}

// flagFailure decorates a parse error with a typo suggestion when the
// failure names an unknown flag. The suggestion scan runs against a
// fresh flag set because the failed parse may have consumed state.
func (c *Command) flagFailure(parseErr error, args []string) error {
	hint := ""
	if strings.Contains(parseErr.Error(), "unknown flag") {
		if match := nearestFlag(args, c.Flags()); match != "" {
			hint = fmt.Sprintf(" (did you mean %s?)", match)
		}
	}
	return fmt.Errorf("%s%s\n\nRun '%s --help' for usage.", parseErr, hint, c.fullName())
}

// PrintHelp writes the command's help page to w.
func (c *Command) PrintHelp(w io.Writer) {
	if lead := c.leadText(); lead != "" {
		fmt.Fprintf(w, "%s\n\n", lead)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		var defaults strings.Builder
		flagSet.SetOutput(&defaults)
		flagSet.PrintDefaults()
		if defaults.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description == "" {
				fmt.Fprintf(w, "  %s\n", example.Command)
				continue
			}
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

// leadText is the paragraph that opens the help page.
func (c *Command) leadText() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Summary
}

// usageLine is the explicit Usage string when set, otherwise a line
// synthesized from the command path.
func (c *Command) usageLine() string {
	if c.Usage != "" {
		return c.Usage
	}
	if len(c.Subcommands) > 0 {
		return c.fullName() + " <command> [flags]"
	}
	return c.fullName() + " [flags]"
}

// fullName is the space-joined path from the root command down to c,
// as the user would type it.
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	var path []string
	for node := c; node != nil; node = node.parent {
		path = append(path, node.Name)
	}
	slices.Reverse(path)
	return strings.Join(path, " ")
}

func wantsHelp(arg string) bool {
	switch arg {
	case "help", "--help", "-h":
		return true
	}
	return false
}
