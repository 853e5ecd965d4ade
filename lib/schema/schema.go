// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the persisted entity types of the backlog:
// tasks, epics, milestones, phases, and the status/complexity/priority
// vocabularies they share. Every type here is plain data with
// validation; traversal, lookup, and aggregation live in [plan], and
// persistence lives in [store].
//
// All timestamps are UTC. Nullable fields (claim and completion
// timestamps, duration) are pointers so that "absent" survives a
// round-trip through YAML and JSON.
package schema

import (
	"fmt"
	"time"

	"github.com/crewplan/crewplan/lib/taskpath"
)

// Status is the lifecycle state of a work item. The values are the
// persisted on-disk strings.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusBlocked    Status = "BLOCKED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusDone:       {},
	StatusBlocked:    {},
	StatusRejected:   {},
	StatusCancelled:  {},
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := validStatuses[s]
	return ok
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool { return s == StatusCancelled }

// ParseStatus normalizes a user-supplied status string. It accepts
// any casing and the dash form of IN_PROGRESS.
func ParseStatus(s string) (Status, error) {
	normalized := Status(normalizeToken(s))
	if !normalized.Valid() {
		return "", fmt.Errorf("unknown status %q (valid: PENDING, IN_PROGRESS, DONE, BLOCKED, REJECTED, CANCELLED)", s)
	}
	return normalized, nil
}

func normalizeToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == '-':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// Complexity weights a task's estimate when the scheduler computes
// path lengths. The numeric multipliers live in configuration, not
// here.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityCritical Complexity = "critical"
)

var validComplexities = map[Complexity]struct{}{
	ComplexityLow:      {},
	ComplexityMedium:   {},
	ComplexityHigh:     {},
	ComplexityCritical: {},
}

// Valid reports whether c is one of the defined complexity levels.
func (c Complexity) Valid() bool {
	_, ok := validComplexities[c]
	return ok
}

// ParseComplexity normalizes a user-supplied complexity string.
func ParseComplexity(s string) (Complexity, error) {
	normalized := Complexity(lowerToken(s))
	if !normalized.Valid() {
		return "", fmt.Errorf("unknown complexity %q (valid: low, medium, high, critical)", s)
	}
	return normalized, nil
}

// Priority orders competing work. Rank order is critical > high >
// medium > low.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRanks = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Rank returns a comparable weight for p; higher outranks lower. The
// empty priority ranks as medium so unset records sort sensibly.
func (p Priority) Rank() int {
	if p == "" {
		return priorityRanks[PriorityMedium]
	}
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return -1
}

// ParsePriority normalizes a user-supplied priority string.
func ParsePriority(s string) (Priority, error) {
	normalized := Priority(lowerToken(s))
	if !normalized.Valid() {
		return "", fmt.Errorf("unknown priority %q (valid: low, medium, high, critical)", s)
	}
	return normalized, nil
}

func lowerToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}

// Task is the unit of schedulable work. Bugs and ideas reuse this
// type with flat identifiers (B042, I007) and empty ancestry fields.
type Task struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	File          string     `yaml:"file,omitempty" json:"file,omitempty"`
	Status        Status     `yaml:"status" json:"status"`
	EstimateHours float64    `yaml:"estimate_hours" json:"estimate_hours"`
	Complexity    Complexity `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	Priority      Priority   `yaml:"priority,omitempty" json:"priority,omitempty"`
	DependsOn     []string   `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Tags          []string   `yaml:"tags,omitempty" json:"tags,omitempty"`

	Claimant        string     `yaml:"claimed_by,omitempty" json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time `yaml:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	StartedAt       *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt     *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	DurationMinutes *int       `yaml:"duration_minutes,omitempty" json:"duration_minutes,omitempty"`
	StatusReason    string     `yaml:"status_reason,omitempty" json:"status_reason,omitempty"`

	// Denormalized ancestry for O(1) lookup. Must agree with the
	// identifier; the validator checks this.
	Epic      string `yaml:"epic,omitempty" json:"epic,omitempty"`
	Milestone string `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	Phase     string `yaml:"phase,omitempty" json:"phase,omitempty"`

	// Body is the markdown content below the frontmatter, present
	// only when the store loaded task files in full. Never persisted
	// as a record field; the store writes it back as the file body.
	Body string `yaml:"-" json:"-"`
}

// Kind classifies the task's identifier: task, bug, or idea.
func (t *Task) Kind() taskpath.Kind { return taskpath.KindOf(t.ID) }

// Claimed reports whether any agent currently holds the task.
func (t *Task) Claimed() bool { return t.Claimant != "" }

// ClaimAge returns how long the current claim has been held. ok is
// false when the task is unclaimed or has no claim timestamp.
func (t *Task) ClaimAge(now time.Time) (time.Duration, bool) {
	if t.Claimant == "" || t.ClaimedAt == nil {
		return 0, false
	}
	return now.Sub(*t.ClaimedAt), true
}

// Validate checks the fields a single record can check in isolation.
// Cross-record invariants (dangling dependencies, ancestry mismatch,
// cycles) are the validator's job.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has no identifier")
	}
	switch taskpath.KindOf(t.ID) {
	case taskpath.KindTask, taskpath.KindBug, taskpath.KindIdea:
	default:
		return fmt.Errorf("task %s: identifier is not a task, bug, or idea", t.ID)
	}
	if t.Title == "" {
		return fmt.Errorf("task %s: empty title", t.ID)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	if t.EstimateHours < 0 {
		return fmt.Errorf("task %s: negative estimate %v", t.ID, t.EstimateHours)
	}
	if t.Complexity != "" && !t.Complexity.Valid() {
		return fmt.Errorf("task %s: invalid complexity %q", t.ID, t.Complexity)
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("task %s: invalid priority %q", t.ID, t.Priority)
	}
	for _, dep := range t.DependsOn {
		if dep == "" {
			return fmt.Errorf("task %s: empty dependency entry", t.ID)
		}
	}
	if t.Claimant == "" && t.ClaimedAt != nil {
		return fmt.Errorf("task %s: claim timestamp without claimant", t.ID)
	}
	return nil
}

// Epic groups an ordered run of tasks. Task order is significant: a
// task with no explicit dependencies implicitly depends on its
// predecessor in the epic.
type Epic struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	Status        Status     `yaml:"status" json:"status"`
	EstimateHours float64    `yaml:"estimate_hours,omitempty" json:"estimate_hours,omitempty"`
	Complexity    Complexity `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	DependsOn     []string   `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Locked        bool       `yaml:"locked,omitempty" json:"locked,omitempty"`
	Tasks         []*Task    `yaml:"tasks" json:"tasks"`

	Milestone string `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	Phase     string `yaml:"phase,omitempty" json:"phase,omitempty"`

	// Refreshed on save; never read back as truth.
	Stats *Stats `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// Validate checks the epic record in isolation.
func (e *Epic) Validate() error {
	if taskpath.KindOf(e.ID) != taskpath.KindEpic {
		return fmt.Errorf("epic %q: malformed identifier", e.ID)
	}
	if e.Title == "" {
		return fmt.Errorf("epic %s: empty title", e.ID)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("epic %s: invalid status %q", e.ID, e.Status)
	}
	return nil
}

// Milestone groups epics under a phase.
type Milestone struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	Status        Status     `yaml:"status" json:"status"`
	EstimateHours float64    `yaml:"estimate_hours,omitempty" json:"estimate_hours,omitempty"`
	Complexity    Complexity `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	DependsOn     []string   `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Locked        bool       `yaml:"locked,omitempty" json:"locked,omitempty"`
	Epics         []*Epic    `yaml:"epics" json:"epics"`

	Phase string `yaml:"phase,omitempty" json:"phase,omitempty"`

	Stats *Stats `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// Validate checks the milestone record in isolation.
func (m *Milestone) Validate() error {
	if taskpath.KindOf(m.ID) != taskpath.KindMilestone {
		return fmt.Errorf("milestone %q: malformed identifier", m.ID)
	}
	if m.Title == "" {
		return fmt.Errorf("milestone %s: empty title", m.ID)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("milestone %s: invalid status %q", m.ID, m.Status)
	}
	return nil
}

// Phase is the top of the hierarchy.
type Phase struct {
	ID            string       `yaml:"id" json:"id"`
	Title         string       `yaml:"title" json:"title"`
	Status        Status       `yaml:"status" json:"status"`
	EstimateWeeks float64      `yaml:"estimate_weeks,omitempty" json:"estimate_weeks,omitempty"`
	Priority      Priority     `yaml:"priority,omitempty" json:"priority,omitempty"`
	Complexity    Complexity   `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	DependsOn     []string     `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Locked        bool         `yaml:"locked,omitempty" json:"locked,omitempty"`
	Milestones    []*Milestone `yaml:"milestones" json:"milestones"`

	Stats *Stats `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// Validate checks the phase record in isolation.
func (p *Phase) Validate() error {
	if taskpath.KindOf(p.ID) != taskpath.KindPhase {
		return fmt.Errorf("phase %q: malformed identifier", p.ID)
	}
	if p.Title == "" {
		return fmt.Errorf("phase %s: empty title", p.ID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("phase %s: invalid status %q", p.ID, p.Status)
	}
	return nil
}

// Stats counts leaf tasks by status. Persisted copies are advisory
// summaries; anything that needs the truth recomputes from tasks.
type Stats struct {
	Total      int `yaml:"total" json:"total"`
	Pending    int `yaml:"pending" json:"pending"`
	InProgress int `yaml:"in_progress" json:"in_progress"`
	Done       int `yaml:"done" json:"done"`
	Blocked    int `yaml:"blocked" json:"blocked"`
	Rejected   int `yaml:"rejected" json:"rejected"`
	Cancelled  int `yaml:"cancelled" json:"cancelled"`
}

// Count adds one task in the given status.
func (s *Stats) Count(status Status) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusInProgress:
		s.InProgress++
	case StatusDone:
		s.Done++
	case StatusBlocked:
		s.Blocked++
	case StatusRejected:
		s.Rejected++
	case StatusCancelled:
		s.Cancelled++
	}
}

// Merge adds other's counts into s.
func (s *Stats) Merge(other Stats) {
	s.Total += other.Total
	s.Pending += other.Pending
	s.InProgress += other.InProgress
	s.Done += other.Done
	s.Blocked += other.Blocked
	s.Rejected += other.Rejected
	s.Cancelled += other.Cancelled
}

// IsComplete reports whether every counted task is closed: DONE, or
// CANCELLED with at least one sibling DONE. An empty node is never
// complete; there is nothing it could have finished. A node whose
// tasks were all cancelled is likewise not complete, only dead.
func (s Stats) IsComplete() bool {
	return s.Total > 0 && s.Done > 0 && s.Done+s.Cancelled == s.Total
}

// DoneRatio returns completed work as a fraction in [0, 1].
func (s Stats) DoneRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// ComputeStats derives the epic's status counts from its tasks.
func (e *Epic) ComputeStats() Stats {
	var s Stats
	for _, t := range e.Tasks {
		s.Count(t.Status)
	}
	return s
}

// ComputeStats derives the milestone's counts from all leaf tasks.
func (m *Milestone) ComputeStats() Stats {
	var s Stats
	for _, e := range m.Epics {
		s.Merge(e.ComputeStats())
	}
	return s
}

// ComputeStats derives the phase's counts from all leaf tasks.
func (p *Phase) ComputeStats() Stats {
	var s Stats
	for _, m := range p.Milestones {
		s.Merge(m.ComputeStats())
	}
	return s
}
