// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"fmt"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/session"
	"github.com/crewplan/crewplan/lib/store"
)

// RunChecks validates the store rooted at the given directory. The
// returned error is reserved for stores too broken to examine at all
// (present but unreadable index files); everything else comes back as
// findings. A missing root index is itself a finding, not an error,
// so `validate` can run against an uninitialized directory.
func RunChecks(root string, opts Options) (*Result, error) {
	s := store.Open(root)
	r := &Result{}

	manifest, err := s.Manifest()
	if err != nil {
		return nil, fmt.Errorf("reading store manifest: %w", err)
	}
	rootMissing := false
	for _, entry := range manifest {
		if entry.Exists {
			continue
		}
		if entry.ID == "" {
			rootMissing = true
			r.error("missing_file", entry.Path, "root index does not exist")
			continue
		}
		r.error("missing_file", entry.Path, "file for %s does not exist", entry.ID)
	}
	if rootMissing {
		r.finalize(opts.Strict)
		return r, nil
	}

	tree, err := s.Load(store.Full)
	if err != nil {
		return nil, err
	}
	r.runTreeChecks(tree)
	r.checkRunState(tree, session.NewDir(s.RunStateDir()))
	r.finalize(opts.Strict)
	return r, nil
}

// checkRunState cross-references advisory agent state against the
// tree. Run-state files are transient and hand-edited, so nothing
// here is fatal: unreadable files and stale task references are
// warnings for an operator to clean up.
func (r *Result) checkRunState(tree *plan.Tree, dir *session.Dir) {
	ctx, err := dir.LoadContext()
	switch {
	case err != nil:
		r.warning("runstate_unreadable", dir.ContextPath(), "%v", err)
	case ctx != nil && ctx.Task != "":
		if _, ok := tree.Task(ctx.Task); !ok {
			r.warning("runstate_missing_task", ctx.Task,
				"context references a task that does not exist")
		}
	}

	records, problems := dir.LoadRecords()
	for _, problem := range problems {
		r.warning("runstate_unreadable", "", "%s", problem)
	}
	for _, rec := range records {
		if rec.Task == "" {
			continue
		}
		if _, ok := tree.Task(rec.Task); !ok {
			r.warning("runstate_missing_task", rec.Task,
				"session for agent %q references a task that does not exist", rec.Agent)
		}
	}
}
