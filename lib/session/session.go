// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages transient run state alongside the backlog:
// the human-edited agent context file and machine-written per-agent
// session records.
//
// Both are advisory. The scheduler and claim engine never read them;
// the validator cross-references them against the backlog and the CLI
// displays them. Loaders are therefore best-effort: a missing file is
// not an error, and a corrupt record is reported, not fatal.
//
// The context file is JSONC (comments and trailing commas allowed)
// because agents and humans edit it by hand. Session records are
// deterministic CBOR; they are written and read only by tooling.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/crewplan/crewplan/lib/codec"
)

// Context is the shared pointer to what is being worked on right now.
// One per store, edited by hand or via `crewplan context`.
type Context struct {
	Agent     string     `json:"agent"`
	Task      string     `json:"task,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// Record is one agent's session state: which task it holds and when
// it last checked in.
type Record struct {
	Agent         string    `cbor:"agent"`
	Task          string    `cbor:"task,omitempty"`
	ClaimedAt     time.Time `cbor:"claimed_at"`
	LastHeartbeat time.Time `cbor:"last_heartbeat"`
	PID           int       `cbor:"pid"`
}

// HeartbeatAge returns how long ago the record's owner checked in.
func (r *Record) HeartbeatAge(now time.Time) time.Duration {
	return now.Sub(r.LastHeartbeat)
}

// Dir wraps the run-state directory of a store.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at the given run-state directory,
// typically store.RunStateDir(). No I/O happens until a load or save.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ContextPath returns the location of the context file.
func (d *Dir) ContextPath() string {
	return filepath.Join(d.root, "context.jsonc")
}

func (d *Dir) sessionsDir() string {
	return filepath.Join(d.root, "sessions")
}

// recordPath maps an agent name to its session file. Anything that
// could escape the sessions directory is flattened.
func (d *Dir) recordPath(agent string) string {
	return filepath.Join(d.sessionsDir(), sanitizeAgent(agent)+".cbor")
}

func sanitizeAgent(agent string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, agent)
}

// LoadContext reads the context file. A missing file returns
// (nil, nil); a malformed one returns an error the caller can
// downgrade to a warning.
func (d *Dir) LoadContext() (*Context, error) {
	data, err := os.ReadFile(d.ContextPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading context: %w", err)
	}

	var ctx Context
	if err := json.Unmarshal(jsonc.ToJSON(data), &ctx); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", d.ContextPath(), err)
	}
	return &ctx, nil
}

// SaveContext writes the context file. The output is plain JSON with
// a comment header, which is valid JSONC, so hand edits and tool
// writes coexist.
func (d *Dir) SaveContext(ctx *Context) error {
	if ctx.Agent == "" {
		return fmt.Errorf("saving context: agent is required")
	}
	body, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	content := "// Current working context. Comments and trailing commas are allowed.\n" +
		string(body) + "\n"
	return writeFileAtomic(d.ContextPath(), []byte(content))
}

// ClearContext removes the context file. Clearing a context that is
// not set is not an error.
func (d *Dir) ClearContext() error {
	err := os.Remove(d.ContextPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing context: %w", err)
	}
	return nil
}

// SaveRecord writes an agent's session record.
func (d *Dir) SaveRecord(rec *Record) error {
	if rec.Agent == "" {
		return fmt.Errorf("saving session record: agent is required")
	}
	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session record for %s: %w", rec.Agent, err)
	}
	return writeFileAtomic(d.recordPath(rec.Agent), data)
}

// LoadRecord reads one agent's session record. A missing record
// returns (nil, nil).
func (d *Dir) LoadRecord(agent string) (*Record, error) {
	data, err := os.ReadFile(d.recordPath(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session record for %s: %w", agent, err)
	}
	var rec Record
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing session record for %s: %w", agent, err)
	}
	return &rec, nil
}

// DeleteRecord removes an agent's session record, if present.
func (d *Dir) DeleteRecord(agent string) error {
	err := os.Remove(d.recordPath(agent))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session record for %s: %w", agent, err)
	}
	return nil
}

// LoadRecords reads every session record, sorted by agent. Files that
// cannot be read or parsed are skipped and described in problems; a
// missing sessions directory yields nothing at all.
func (d *Dir) LoadRecords() (records []*Record, problems []string) {
	entries, err := os.ReadDir(d.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []string{fmt.Sprintf("reading sessions directory: %v", err)}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".cbor") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.sessionsDir(), name))
		if err != nil {
			problems = append(problems, fmt.Sprintf("reading session %s: %v", name, err))
			continue
		}
		var rec Record
		if err := codec.Unmarshal(data, &rec); err != nil {
			problems = append(problems, fmt.Sprintf("parsing session %s: %v", name, err))
			continue
		}
		records = append(records, &rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Agent < records[j].Agent })
	return records, problems
}

// writeFileAtomic writes via a temp file in the target directory and
// renames into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	success = true
	return nil
}
