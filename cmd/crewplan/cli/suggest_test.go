// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"claim", "claim", 0},
		{"clam", "claim", 1},
		{"froce", "force", 2},
		{"nxet", "next", 2},
		{"", "board", 5},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := editDistance(test.a, test.b); got != test.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		// Distance is symmetric.
		if got := editDistance(test.b, test.a); got != test.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestNearestThreshold(t *testing.T) {
	candidates := []string{"force", "agent", "batch"}
	if got := nearest("froce", candidates); got != "force" {
		t.Errorf("nearest(froce) = %q, want force", got)
	}
	if got := nearest("qqqq", candidates); got != "" {
		t.Errorf("nearest(qqqq) = %q, want no match", got)
	}
	// Ties resolve toward the earlier candidate.
	if got := nearest("bone", []string{"done", "gone"}); got != "done" {
		t.Errorf("nearest(bone) = %q, want done", got)
	}
}

func TestNearestFlag(t *testing.T) {
	newSet := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("claim", pflag.ContinueOnError)
		flagSet.StringP("agent", "a", "", "acting agent")
		flagSet.Bool("force", false, "take over an active claim")
		return flagSet
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"simple typo", []string{"--froce"}, "--force"},
		{"typo with value", []string{"--agnet=agent-1"}, "--agent"},
		{"typo after positional", []string{"P1.M1.E1.T001", "--forc"}, "--force"},
		{"typo after valid shorthand", []string{"-a", "agent-1", "--froce"}, "--force"},
		{"nothing close", []string{"--qqqqqqqq"}, ""},
		{"all flags known", []string{"--force"}, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := nearestFlag(test.args, newSet()); got != test.want {
				t.Errorf("nearestFlag(%v) = %q, want %q", test.args, got, test.want)
			}
		})
	}
}
