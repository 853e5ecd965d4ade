// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal keeps an append-only audit trail of backlog
// mutations as JSON lines under <root>/journal. The active file
// rotates into a compressed segment when it reaches the configured
// size; readers stitch rotated segments and the active file back
// together in order.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Actions recorded by the CLI layer. Action is an open string; these
// cover the built-in mutations.
const (
	ActionClaim    = "claim"
	ActionComplete = "complete"
	ActionStatus   = "status"
	ActionReclaim  = "reclaim"
)

// Entry is one journal line. From and To hold statuses for state
// changes and identifiers for moves.
type Entry struct {
	Time   time.Time `json:"time"`
	Agent  string    `json:"agent,omitempty"`
	Task   string    `json:"task,omitempty"`
	Action string    `json:"action"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// DefaultMaxSegmentBytes is the rotation threshold when Options does
// not set one.
const DefaultMaxSegmentBytes = 1 << 20

const activeName = "audit.jsonl"

// Options configure a journal handle.
type Options struct {
	// MaxSegmentBytes rotates the active file before an append would
	// push it past this size. Zero means DefaultMaxSegmentBytes.
	MaxSegmentBytes int64
	// Codec compresses rotated segments. The zero value is zstd.
	Codec Codec
}

// Journal is a handle on one journal directory. No files are touched
// until the first append.
type Journal struct {
	dir      string
	maxBytes int64
	codec    Codec
}

// New returns a journal rooted at dir.
func New(dir string, opts Options) *Journal {
	maxBytes := opts.MaxSegmentBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSegmentBytes
	}
	return &Journal{dir: dir, maxBytes: maxBytes, codec: opts.Codec}
}

func (j *Journal) activePath() string { return filepath.Join(j.dir, activeName) }

// Append writes one entry to the active file, rotating first when the
// entry would push it past the size limit.
func (j *Journal) Append(entry Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("journal entry has no action")
	}
	if entry.Time.IsZero() {
		return fmt.Errorf("journal entry has no timestamp")
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}
	if info, err := os.Stat(j.activePath()); err == nil {
		if info.Size() > 0 && info.Size()+int64(len(line)) > j.maxBytes {
			if err := j.rotate(); err != nil {
				return err
			}
		}
	}

	f, err := os.OpenFile(j.activePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing journal entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	return nil
}

// rotate compresses the active file into the next numbered segment
// and starts a fresh active file. The segment lands before the active
// file is removed, so a crash in between duplicates lines rather than
// losing them.
func (j *Journal) rotate() error {
	data, err := os.ReadFile(j.activePath())
	if err != nil {
		return fmt.Errorf("rotating journal: %w", err)
	}
	compressed, err := j.codec.compress(data)
	if err != nil {
		return fmt.Errorf("rotating journal: %w", err)
	}
	name := fmt.Sprintf("audit-%06d.jsonl%s", j.nextSegment(), j.codec.ext())
	if err := writeFileAtomic(filepath.Join(j.dir, name), compressed); err != nil {
		return fmt.Errorf("rotating journal: %w", err)
	}
	if err := os.Remove(j.activePath()); err != nil {
		return fmt.Errorf("rotating journal: %w", err)
	}
	return nil
}

// nextSegment returns one past the highest existing segment number.
func (j *Journal) nextSegment() int {
	highest := 0
	for _, name := range j.segmentNames() {
		stem := strings.TrimPrefix(name, "audit-")
		i := strings.IndexByte(stem, '.')
		if i <= 0 {
			continue
		}
		if n, err := strconv.Atoi(stem[:i]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// segmentNames returns rotated segment file names in rotation order.
// Zero-padded numbering makes name order rotation order.
func (j *Journal) segmentNames() []string {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "audit-") {
			continue
		}
		if strings.HasSuffix(name, extZstd) || strings.HasSuffix(name, extLZ4) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Read returns every journal entry, oldest first: rotated segments in
// rotation order, then the active file. A journal that was never
// written reads as empty.
func (j *Journal) Read() ([]Entry, error) {
	var out []Entry
	for _, name := range j.segmentNames() {
		path := filepath.Join(j.dir, name)
		compressed, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading journal segment: %w", err)
		}
		data, err := decompress(compressed, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		entries, err := parseLines(data, name)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}

	data, err := os.ReadFile(j.activePath())
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	entries, err := parseLines(data, activeName)
	if err != nil {
		return nil, err
	}
	return append(out, entries...), nil
}

func parseLines(data []byte, name string) ([]Entry, error) {
	var entries []Entry
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", name, i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// writeFileAtomic writes a rotated segment via a temporary file and
// rename, so readers never see a partial segment.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	success = true
	return nil
}
