// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides crewplan's standard CBOR encoding
// configuration.
//
// Crewplan uses three serialization formats with a clear boundary:
//
//   - YAML for durable, human-edited records: the backlog index,
//     container node files, and task frontmatter (lib/store).
//   - JSON for human-facing surfaces: CLI --json output, the journal
//     (JSONL), and the JSONC agent context file.
//   - CBOR for machine-only run state: per-agent session records
//     that are written and read by tooling, never edited by hand.
//
// This package holds the shared CBOR modes so every package encodes
// identically. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces
// identical bytes, so rewriting an unchanged session record leaves
// an identical file.
//
//	data, err := codec.Marshal(record)
//	err = codec.Unmarshal(data, &record)
//
// Session record types carry `cbor` struct tags; they never appear in
// JSON or YAML output.
package codec
