// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskpath implements the identifier algebra for backlog
// items: hierarchical dot-delimited paths (P2, P2.M1, P2.M1.E3,
// P2.M1.E3.T004) and flat bug and idea numbers (B042, I007).
//
// [Path] is an immutable value type. Derivation methods return new
// values; a Path never changes after construction. Parsing tolerates
// non-canonical zero padding (P01 parses as phase 1), rendering is
// always canonical: phase, milestone, and epic numbers unpadded, task
// numbers padded to three digits. Callers that need to detect
// non-canonical identifiers compare the input against the re-rendered
// form.
package taskpath

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a backlog identifier by the level it names.
type Kind int

const (
	KindInvalid Kind = iota
	KindPhase
	KindMilestone
	KindEpic
	KindTask
	KindBug
	KindIdea
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindPhase:     "phase",
	KindMilestone: "milestone",
	KindEpic:      "epic",
	KindTask:      "task",
	KindBug:       "bug",
	KindIdea:      "idea",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Path identifies a node in the phase/milestone/epic/task hierarchy.
// The zero value is no path at all; construct values with [Parse],
// [Phase], or [Path.Child].
type Path struct {
	phase     int
	milestone int
	epic      int
	task      int
}

// Segment prefixes by depth. Task numbers render zero-padded so that
// identifiers sort correctly as plain strings within an epic.
var segmentPrefixes = [4]byte{'P', 'M', 'E', 'T'}

// Parse parses a hierarchical path of one to four dot-delimited
// segments. Each segment is its level's letter followed by a positive
// decimal number. Leading zeros are accepted and normalized away.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	segments := strings.Split(s, ".")
	if len(segments) > 4 {
		return Path{}, fmt.Errorf("path %q: %d segments, maximum is 4", s, len(segments))
	}
	var p Path
	for i, segment := range segments {
		n, err := segmentNumber(segment, segmentPrefixes[i])
		if err != nil {
			return Path{}, fmt.Errorf("path %q: %w", s, err)
		}
		switch i {
		case 0:
			p.phase = n
		case 1:
			p.milestone = n
		case 2:
			p.epic = n
		case 3:
			p.task = n
		}
	}
	return p, nil
}

// MustParse is Parse for known-good literals. It panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic("taskpath: " + err.Error())
	}
	return p
}

func segmentNumber(segment string, prefix byte) (int, error) {
	if len(segment) < 2 || segment[0] != prefix {
		return 0, fmt.Errorf("segment %q must be %q followed by a number", segment, string(prefix))
	}
	digits := segment[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("segment %q: non-digit in number", segment)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("segment %q: %w", segment, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("segment %q: number must be positive", segment)
	}
	return n, nil
}

// Phase returns the depth-1 path for phase number n. It panics if n
// is not positive; callers allocate numbers starting at 1.
func Phase(n int) Path {
	if n < 1 {
		panic("taskpath: non-positive phase number")
	}
	return Path{phase: n}
}

// Child returns the path of child number n one level below p: a
// milestone under a phase, an epic under a milestone, a task under an
// epic.
func (p Path) Child(n int) (Path, error) {
	if n < 1 {
		return Path{}, fmt.Errorf("child number %d must be positive", n)
	}
	switch p.Depth() {
	case 1:
		p.milestone = n
	case 2:
		p.epic = n
	case 3:
		p.task = n
	case 4:
		return Path{}, fmt.Errorf("task path %s has no children", p)
	default:
		return Path{}, fmt.Errorf("cannot derive child of the zero path")
	}
	return p, nil
}

// String renders the canonical identifier, or "" for the zero Path.
func (p Path) String() string {
	if p.phase == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "P%d", p.phase)
	if p.milestone > 0 {
		fmt.Fprintf(&b, ".M%d", p.milestone)
	}
	if p.epic > 0 {
		fmt.Fprintf(&b, ".E%d", p.epic)
	}
	if p.task > 0 {
		fmt.Fprintf(&b, ".T%03d", p.task)
	}
	return b.String()
}

// Depth reports how many levels p names: 1 for a phase through 4 for
// a task, 0 for the zero Path.
func (p Path) Depth() int {
	switch {
	case p.task > 0:
		return 4
	case p.epic > 0:
		return 3
	case p.milestone > 0:
		return 2
	case p.phase > 0:
		return 1
	}
	return 0
}

// IsZero reports whether p is the zero Path.
func (p Path) IsZero() bool { return p.phase == 0 }

// Kind returns the hierarchy level p names, or KindInvalid for the
// zero Path.
func (p Path) Kind() Kind {
	switch p.Depth() {
	case 1:
		return KindPhase
	case 2:
		return KindMilestone
	case 3:
		return KindEpic
	case 4:
		return KindTask
	}
	return KindInvalid
}

// Phase returns the phase number.
func (p Path) Phase() int { return p.phase }

// Milestone returns the milestone number, or 0 for a phase path.
func (p Path) Milestone() int { return p.milestone }

// Epic returns the epic number, or 0 above epic depth.
func (p Path) Epic() int { return p.epic }

// Task returns the task number, or 0 above task depth.
func (p Path) Task() int { return p.task }

// Parent returns the path one level up, or false for a phase path and
// the zero Path.
func (p Path) Parent() (Path, bool) {
	switch p.Depth() {
	case 2:
		p.milestone = 0
	case 3:
		p.epic = 0
	case 4:
		p.task = 0
	default:
		return Path{}, false
	}
	return p, true
}

// PhasePath returns the depth-1 prefix of p.
func (p Path) PhasePath() Path {
	return Path{phase: p.phase}
}

// MilestonePath returns the depth-2 prefix of p, or false for a phase
// path.
func (p Path) MilestonePath() (Path, bool) {
	if p.milestone == 0 {
		return Path{}, false
	}
	return Path{phase: p.phase, milestone: p.milestone}, true
}

// EpicPath returns the depth-3 prefix of p, or false above epic depth.
func (p Path) EpicPath() (Path, bool) {
	if p.epic == 0 {
		return Path{}, false
	}
	return Path{phase: p.phase, milestone: p.milestone, epic: p.epic}, true
}

// IsAncestorOf reports whether p strictly contains other: same
// numbers at every level p names, and other at least one level
// deeper.
func (p Path) IsAncestorOf(other Path) bool {
	d := p.Depth()
	if d == 0 || d >= other.Depth() {
		return false
	}
	if p.phase != other.phase {
		return false
	}
	if d >= 2 && p.milestone != other.milestone {
		return false
	}
	if d >= 3 && p.epic != other.epic {
		return false
	}
	return true
}

// Compare orders paths by position: phase, then milestone, epic,
// task. Shallower paths sort before their descendants.
func (p Path) Compare(other Path) int {
	if c := cmp.Compare(p.phase, other.phase); c != 0 {
		return c
	}
	if c := cmp.Compare(p.milestone, other.milestone); c != 0 {
		return c
	}
	if c := cmp.Compare(p.epic, other.epic); c != 0 {
		return c
	}
	return cmp.Compare(p.task, other.task)
}

// --- flat identifiers ---

// FormatBug returns the canonical bug identifier for number n (B042).
func FormatBug(n int) string { return fmt.Sprintf("B%03d", n) }

// FormatIdea returns the canonical idea identifier for number n
// (I007).
func FormatIdea(n int) string { return fmt.Sprintf("I%03d", n) }

// ParseBug returns the number of a bug identifier.
func ParseBug(id string) (int, error) {
	n, err := segmentNumber(id, 'B')
	if err != nil {
		return 0, fmt.Errorf("bug identifier: %w", err)
	}
	return n, nil
}

// ParseIdea returns the number of an idea identifier.
func ParseIdea(id string) (int, error) {
	n, err := segmentNumber(id, 'I')
	if err != nil {
		return 0, fmt.Errorf("idea identifier: %w", err)
	}
	return n, nil
}

// KindOf classifies an identifier of any kind: hierarchical paths by
// depth, flat bug and idea identifiers by prefix. Returns KindInvalid
// for anything else.
func KindOf(id string) Kind {
	if id == "" {
		return KindInvalid
	}
	switch id[0] {
	case 'B':
		if _, err := ParseBug(id); err == nil {
			return KindBug
		}
	case 'I':
		if _, err := ParseIdea(id); err == nil {
			return KindIdea
		}
	case 'P':
		if p, err := Parse(id); err == nil {
			return p.Kind()
		}
	}
	return KindInvalid
}

// Canonical reports whether id is the canonical rendering of a valid
// identifier of any kind. "P1.M1.E1.T1" is a parseable task path but
// not canonical; "P01" likewise.
func Canonical(id string) bool {
	if id == "" {
		return false
	}
	switch {
	case id[0] == 'B':
		n, err := ParseBug(id)
		return err == nil && FormatBug(n) == id
	case id[0] == 'I':
		n, err := ParseIdea(id)
		return err == nil && FormatIdea(n) == id
	default:
		p, err := Parse(id)
		return err == nil && p.String() == id
	}
}

// Matches reports whether ref identifies id, either exactly or as a
// dot-suffix: "M2.E3" matches "P1.M2.E3" and "T004" matches
// "P1.M2.E3.T004". Flat identifiers only match exactly.
func Matches(id, ref string) bool {
	if id == ref {
		return true
	}
	if ref == "" {
		return false
	}
	return strings.HasSuffix(id, "."+ref)
}

// CompareIDs orders identifier strings of any kind deterministically:
// segment by segment, letter prefix first, then numeric value, so
// P2.M10 sorts after P2.M9. Malformed segments fall back to plain
// string order.
func CompareIDs(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegments(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(as), len(bs))
}

func compareSegments(a, b string) int {
	ap, an, aok := splitSegment(a)
	bp, bn, bok := splitSegment(b)
	if !aok || !bok {
		return strings.Compare(a, b)
	}
	if c := strings.Compare(ap, bp); c != 0 {
		return c
	}
	if c := cmp.Compare(an, bn); c != 0 {
		return c
	}
	// Same value, different padding.
	return strings.Compare(a, b)
}

func splitSegment(s string) (prefix string, n int, ok bool) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	if i == 0 || i == len(s) {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}
