// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// nearestCommand returns the subcommand name closest to input, or ""
// when every candidate is too far away to be a plausible typo.
func nearestCommand(input string, subs []*Command) string {
	names := make([]string, len(subs))
	for i, sub := range subs {
		names[i] = sub.Name
	}
	return nearest(input, names)
}

// nearestFlag finds the first flag in args that flagSet does not
// define and returns the closest defined long name with its dash
// prefix restored. Both long names and shorthands count as defined, so
// a valid "-a" earlier in the line never masks a typo after it.
func nearestFlag(args []string, flagSet *pflag.FlagSet) string {
	known := make(map[string]bool)
	var names []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		known[f.Name] = true
		if f.Shorthand != "" {
			known[f.Shorthand] = true
		}
		names = append(names, f.Name)
	})

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		if known[name] {
			continue
		}
		switch match := nearest(name, names); {
		case match == "":
			return ""
		case len(match) == 1:
			return "-" + match
		default:
			return "--" + match
		}
	}
	return ""
}

// nearest picks the candidate within three edits of input, preferring
// the closest and breaking ties toward the earlier candidate. Three
// edits covers transpositions and dropped or doubled letters without
// matching unrelated words.
func nearest(input string, candidates []string) string {
	const threshold = 3
	best, bestDistance := "", threshold+1
	for _, candidate := range candidates {
		if d := editDistance(input, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b: how many
// single-character inserts, deletes, and substitutions separate them.
// One matrix row updated in place with a diagonal carry keeps the
// working set at the shorter string's length.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		diagonal := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			next := min(row[j]+1, row[j-1]+1, diagonal+cost)
			diagonal = row[j]
			row[j] = next
		}
	}
	return row[len(b)]
}
