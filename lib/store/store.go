// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crewplan/crewplan/lib/plan"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/taskpath"
)

// LoadMode selects how much of the store [Store.Load] materializes.
type LoadMode int

const (
	// IndexOnly reads just the YAML indexes. Tasks referenced by
	// short-form entries come back as stubs carrying only the
	// identifier and file ref; their status is unknown.
	IndexOnly LoadMode = iota
	// Metadata additionally reads task file frontmatter.
	Metadata
	// Full additionally retains markdown bodies on the records.
	Full
)

func (m LoadMode) String() string {
	switch m {
	case IndexOnly:
		return "index-only"
	case Metadata:
		return "metadata"
	case Full:
		return "full"
	}
	return fmt.Sprintf("LoadMode(%d)", int(m))
}

// Store is a handle on a backlog directory. It holds no state beyond
// the root path; every operation reads the current disk contents.
// Not safe for concurrent use by goroutines sharing one process, and
// only advisorily safe across processes.
type Store struct {
	root string
}

// Open returns a handle on the store rooted at the given directory.
// No files are touched until the first operation.
func Open(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Initialized reports whether the root index exists.
func (s *Store) Initialized() bool {
	_, err := os.Stat(s.backlogPath())
	return err == nil
}

// Init creates an empty root index. It refuses to overwrite an
// existing one.
func (s *Store) Init(project string) error {
	if s.Initialized() {
		return fmt.Errorf("store at %s is already initialized", s.root)
	}
	idx := backlogIndex{Project: project, Phases: []string{}}
	if err := writeYAML(s.backlogPath(), &idx); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	return nil
}

// --- path derivation ---
//
// Directory names repeat only the final identifier segment, so the
// tree reads naturally: phases/P1/M2/E1/T001.md holds P1.M2.E1.T001.

func (s *Store) backlogPath() string { return filepath.Join(s.root, "backlog.yaml") }
func (s *Store) bugsPath() string    { return filepath.Join(s.root, "bugs.yaml") }
func (s *Store) ideasPath() string   { return filepath.Join(s.root, "ideas.yaml") }

// RunStateDir is where advisory agent state lives (package session).
func (s *Store) RunStateDir() string { return filepath.Join(s.root, "runstate") }

// JournalDir is where the audit journal lives (package journal).
func (s *Store) JournalDir() string { return filepath.Join(s.root, "journal") }

// relNodeDir returns the store-relative directory for a phase,
// milestone, or epic path, always with forward slashes.
func relNodeDir(p taskpath.Path) string {
	parts := []string{"phases", fmt.Sprintf("P%d", p.Phase())}
	if p.Depth() >= 2 {
		parts = append(parts, fmt.Sprintf("M%d", p.Milestone()))
	}
	if p.Depth() >= 3 {
		parts = append(parts, fmt.Sprintf("E%d", p.Epic()))
	}
	return strings.Join(parts, "/")
}

// relNodeFile returns the store-relative index file for a container
// path, or the content file for a task path.
func relNodeFile(p taskpath.Path) string {
	switch p.Depth() {
	case 1:
		return relNodeDir(p) + "/phase.yaml"
	case 2:
		return relNodeDir(p) + "/milestone.yaml"
	case 3:
		return relNodeDir(p) + "/epic.yaml"
	default:
		return relNodeDir(p) + fmt.Sprintf("/T%03d.md", p.Task())
	}
}

// abs converts a store-relative path to an absolute one.
func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *Store) nodeFile(p taskpath.Path) string { return s.abs(relNodeFile(p)) }
func (s *Store) nodeDir(p taskpath.Path) string  { return s.abs(relNodeDir(p)) }

// --- loading ---

// Load reads the store into a [plan.Tree]. Referenced files that do
// not exist are skipped; the validator reports them. Files that exist
// but cannot be parsed fail the load.
func (s *Store) Load(mode LoadMode) (*plan.Tree, error) {
	var idx backlogIndex
	if err := readYAML(s.backlogPath(), &idx); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no backlog index at %s", s.backlogPath())
		}
		return nil, fmt.Errorf("reading backlog index: %w", err)
	}

	phases := make([]*schema.Phase, 0, len(idx.Phases))
	for _, phaseID := range idx.Phases {
		p, err := taskpath.Parse(phaseID)
		if err != nil || p.Kind() != taskpath.KindPhase {
			return nil, fmt.Errorf("backlog index: bad phase ref %q", phaseID)
		}
		phase, err := s.loadPhase(p, mode)
		if err != nil {
			return nil, err
		}
		if phase != nil {
			phases = append(phases, phase)
		}
	}

	bugs, err := s.loadFlat(s.bugsPath())
	if err != nil {
		return nil, err
	}
	ideas, err := s.loadFlat(s.ideasPath())
	if err != nil {
		return nil, err
	}

	return plan.New(phases, bugs, ideas), nil
}

func (s *Store) loadPhase(p taskpath.Path, mode LoadMode) (*schema.Phase, error) {
	var f phaseFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading phase %s: %w", p, err)
	}

	phase := phaseToSchema(&f)
	for _, msID := range f.Milestones {
		mp, err := taskpath.Parse(msID)
		if err != nil || mp.Kind() != taskpath.KindMilestone {
			return nil, fmt.Errorf("phase %s: bad milestone ref %q", p, msID)
		}
		milestone, err := s.loadMilestone(mp, mode)
		if err != nil {
			return nil, err
		}
		if milestone != nil {
			phase.Milestones = append(phase.Milestones, milestone)
		}
	}
	return phase, nil
}

func (s *Store) loadMilestone(p taskpath.Path, mode LoadMode) (*schema.Milestone, error) {
	var f milestoneFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading milestone %s: %w", p, err)
	}

	milestone := milestoneToSchema(&f)
	for _, epicID := range f.Epics {
		ep, err := taskpath.Parse(epicID)
		if err != nil || ep.Kind() != taskpath.KindEpic {
			return nil, fmt.Errorf("milestone %s: bad epic ref %q", p, epicID)
		}
		epic, err := s.loadEpic(ep, mode)
		if err != nil {
			return nil, err
		}
		if epic != nil {
			milestone.Epics = append(milestone.Epics, epic)
		}
	}
	return milestone, nil
}

func (s *Store) loadEpic(p taskpath.Path, mode LoadMode) (*schema.Epic, error) {
	var f epicFile
	if err := readYAML(s.nodeFile(p), &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading epic %s: %w", p, err)
	}

	epic := epicToSchema(&f)
	for _, entry := range f.Tasks {
		task, err := s.resolveEntry(p, f.ID, entry, mode)
		if err != nil {
			return nil, err
		}
		if task != nil {
			epic.Tasks = append(epic.Tasks, task)
		}
	}
	return epic, nil
}

// resolveEntry materializes one epic index entry as a task record.
// Short-form entries read the named file (stubbed in IndexOnly mode);
// legacy inline records are upgraded from their file's frontmatter
// when the file is readable, and returned as-is when not.
func (s *Store) resolveEntry(epicPath taskpath.Path, epicID string, entry taskEntry, mode LoadMode) (*schema.Task, error) {
	switch {
	case entry.File != "":
		rel := relNodeDir(epicPath) + "/" + entry.File
		if mode == IndexOnly {
			stem := strings.TrimSuffix(entry.File, ".md")
			return &schema.Task{ID: epicID + "." + stem, File: rel}, nil
		}
		task, err := readTaskFile(s.abs(rel), mode)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		if task.File == "" {
			task.File = rel
		}
		return task, nil

	case entry.Legacy != nil:
		task := entry.Legacy
		if task.File != "" && mode != IndexOnly {
			fromFile, err := readTaskFile(s.abs(task.File), mode)
			switch {
			case err == nil:
				if fromFile.File == "" {
					fromFile.File = task.File
				}
				return fromFile, nil
			case !os.IsNotExist(err):
				return nil, err
			}
		}
		return task, nil
	}
	return nil, nil
}

func (s *Store) loadFlat(path string) ([]*schema.Task, error) {
	var idx flatIndex
	if err := readYAML(path, &idx); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading flat index: %w", err)
	}
	if len(idx.Bugs) > 0 {
		return idx.Bugs, nil
	}
	return idx.Ideas, nil
}

// --- manifest ---

// ManifestEntry names one file the indexes say should exist.
type ManifestEntry struct {
	ID     string // owning node, "" for the root index
	Path   string // store-relative
	Exists bool
}

// Manifest enumerates every file the index structure expects,
// with an existence flag for each. The validator turns missing
// entries into findings; Load simply skips them.
func (s *Store) Manifest() ([]ManifestEntry, error) {
	var entries []ManifestEntry
	add := func(id, rel string) bool {
		_, err := os.Stat(s.abs(rel))
		exists := err == nil
		entries = append(entries, ManifestEntry{ID: id, Path: rel, Exists: exists})
		return exists
	}

	if !add("", "backlog.yaml") {
		return entries, nil
	}
	var idx backlogIndex
	if err := readYAML(s.backlogPath(), &idx); err != nil {
		return nil, fmt.Errorf("reading backlog index: %w", err)
	}

	for _, phaseID := range idx.Phases {
		p, err := taskpath.Parse(phaseID)
		if err != nil {
			continue // malformed refs are ID-format findings, not files
		}
		if !add(phaseID, relNodeFile(p)) {
			continue
		}
		var pf phaseFile
		if err := readYAML(s.nodeFile(p), &pf); err != nil {
			return nil, err
		}
		for _, msID := range pf.Milestones {
			mp, err := taskpath.Parse(msID)
			if err != nil {
				continue
			}
			if !add(msID, relNodeFile(mp)) {
				continue
			}
			var mf milestoneFile
			if err := readYAML(s.nodeFile(mp), &mf); err != nil {
				return nil, err
			}
			for _, epicID := range mf.Epics {
				ep, err := taskpath.Parse(epicID)
				if err != nil {
					continue
				}
				if !add(epicID, relNodeFile(ep)) {
					continue
				}
				var ef epicFile
				if err := readYAML(s.nodeFile(ep), &ef); err != nil {
					return nil, err
				}
				for _, entry := range ef.Tasks {
					switch {
					case entry.File != "":
						stem := strings.TrimSuffix(entry.File, ".md")
						add(epicID+"."+stem, relNodeDir(ep)+"/"+entry.File)
					case entry.Legacy != nil && entry.Legacy.File != "":
						add(entry.Legacy.ID, entry.Legacy.File)
					}
				}
			}
		}
	}
	return entries, nil
}
