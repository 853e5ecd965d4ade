// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for crewplan packages.
//
// [SeedBacklog] builds the standard fixture backlog: one phase holding
// a single milestone and epic, two tasks wired in sequence, and one
// bug. Tests across packages assert against its exact titles,
// estimates, and priorities, so changes here ripple; add a new fixture
// instead of reshaping this one.
//
// [EditBodies] replaces the creation-template task bodies with real
// content, so content hygiene checks read the fixture tasks as edited.
//
// All helpers call t.Fatal on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
