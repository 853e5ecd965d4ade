// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes the build identity of the crewplan binary.
//
// The variables are stamped at build time:
//
//	go build -ldflags "\
//	  -X github.com/crewplan/crewplan/lib/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/crewplan/crewplan/lib/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Release is the semantic version, set by hand when tagging.
	Release = "0.1.0-dev"

	// Commit is the short git SHA the binary was built from.
	Commit = "unknown"

	// Dirty is "true" when the work tree had uncommitted changes.
	Dirty = "false"

	// Date is the UTC build timestamp.
	Date = "unknown"
)

// String returns the single-line version report: release, commit,
// build date, and the Go runtime the binary was compiled with.
func String() string {
	commit := Commit
	if Dirty == "true" {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s (%s, built %s, %s %s/%s)",
		Release, commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
