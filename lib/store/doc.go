// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package store reads and writes the on-disk backlog. A store root is
// a plain directory tree:
//
//	<root>/
//	  backlog.yaml            root index: phase list + advisory stats
//	  bugs.yaml               flat bug records
//	  ideas.yaml              flat idea records
//	  phases/P1/phase.yaml
//	  phases/P1/M1/milestone.yaml
//	  phases/P1/M1/E1/epic.yaml
//	  phases/P1/M1/E1/T001.md task files: YAML frontmatter + markdown
//	  runstate/               advisory agent state (see package session)
//	  journal/                audit journal (see package journal)
//
// # Loading
//
// [Store.Load] materializes a [plan.Tree] in one of three modes:
// [IndexOnly] reads only the YAML indexes, [Metadata] additionally
// reads task frontmatter, and [Full] retains the markdown bodies.
// Epic indexes list tasks in two forms: a plain string naming the
// task file, or a legacy inline mapping carrying the full record.
// Both resolve to the same canonical task; when a file and a legacy
// record disagree, the frontmatter wins.
//
// A referenced file that does not exist is skipped rather than
// failing the load: the store is edited by multiple uncoordinated
// processes, and a missing file is a consistency problem for the
// validator to report, not a reason to refuse service. A file that
// exists but cannot be parsed is different; that is corruption, and
// loading fails.
//
// # Writing
//
// Every write is atomic: content goes to a temp file in the target
// directory and is renamed into place, so concurrent readers see
// either the old record or the new one, never a torn write. There is
// no cross-file transaction; when two processes race, the last write
// wins.
//
// Persisted stats blocks are refresh-only. [Store.SaveStats] rewrites
// them from live task statuses; nothing ever reads them back as
// truth.
package store
