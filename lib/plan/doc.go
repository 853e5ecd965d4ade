// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan provides the in-memory backlog tree. It owns the
// phase/milestone/epic/task hierarchy plus the flat bug and idea
// queues, and answers identifier lookups, ancestry queries, and
// statistics rollups for the scheduler, the claim engine, and the
// validator.
//
// The tree is a pure data structure with no I/O. The store loads
// persisted records into it; everything downstream reads it.
//
// # Lookup
//
// Identifier lookup is tolerant: a reference matches a node if the
// strings are equal or one is a dot-suffix of the other, so the short
// forms found in older epic indexes (T001 for P1.M1.E1.T001) resolve
// against canonical identifiers and vice versa. An ambiguous short
// reference resolves to nothing; callers that want to report the
// collision enumerate candidates with [Tree.MatchTasks].
//
// # Statistics
//
// Counts are always derived from leaf task statuses at call time.
// The stats blocks persisted inside index files are write-only
// summaries for human readers; [Tree.RefreshStats] rewrites them
// before a save, and nothing ever reads them back as truth.
//
// # Concurrency
//
// Tree is not safe for concurrent use. Invocations are single
// threaded; cross-process coordination is advisory and handled above
// this layer.
package plan
