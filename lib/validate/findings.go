// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate checks a backlog store for structural problems:
// missing files, malformed or duplicated identifiers, broken parent
// pointers, dangling and cyclic dependencies, stale run state, and
// neglected task content.
//
// Checks never stop at the first problem; they accumulate leveled
// findings so one run paints the whole picture. Errors are structural
// breakage a scheduler cannot work around; warnings are hygiene.
// Whether warnings fail the run is the caller's policy, passed in as
// [Options.Strict].
package validate

import "fmt"

// Level classifies a finding.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Finding is one problem found in the store. Code is a stable
// machine-readable key; Location names the offending item or file.
type Finding struct {
	Level    Level  `json:"level"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

func (f Finding) String() string {
	if f.Location != "" {
		return fmt.Sprintf("%s [%s] %s: %s", f.Level, f.Code, f.Location, f.Message)
	}
	return fmt.Sprintf("%s [%s] %s", f.Level, f.Code, f.Message)
}

// Result is the outcome of a validation run. OK and Summary are
// derived from the findings when the run finishes; the struct
// marshals directly as CLI --json output.
type Result struct {
	OK       bool      `json:"ok"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Summary  string    `json:"summary"`
}

// Options control a validation run.
type Options struct {
	// Strict makes warnings fail the run as well.
	Strict bool
}

func (r *Result) error(code, location, format string, args ...any) {
	r.Errors = append(r.Errors, Finding{
		Level:    LevelError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}

func (r *Result) warning(code, location, format string, args ...any) {
	r.Warnings = append(r.Warnings, Finding{
		Level:    LevelWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}

// All returns errors followed by warnings.
func (r *Result) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return out
}

// finalize derives OK and Summary from the accumulated findings.
func (r *Result) finalize(strict bool) {
	r.OK = len(r.Errors) == 0 && (!strict || len(r.Warnings) == 0)
	switch {
	case len(r.Errors) == 0 && len(r.Warnings) == 0:
		r.Summary = "no findings"
	default:
		r.Summary = fmt.Sprintf("%s, %s",
			plural(len(r.Errors), "error"), plural(len(r.Warnings), "warning"))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
