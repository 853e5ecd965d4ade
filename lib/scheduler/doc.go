// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler ranks the backlog: readiness under explicit and
// implicit dependencies, weighted critical-path computation, next
// available work, diverse batch selection for parallel agents, and
// stale claim discovery.
//
// A [Calculator] is built over a loaded [plan.Tree] and assumes the
// tree does not change underneath it; build a fresh one after any
// mutation. All rankings are deterministic: ties break by priority,
// then by identifier.
//
// Dependency cycles never crash a ranking. The longest-path walk
// pre-marks nodes so a cycle contributes zero weight, and tasks on a
// cycle simply never become ready. Enumerating the cycles is the
// validator's job, not the scheduler's.
package scheduler
