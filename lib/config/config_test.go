// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crewplan/crewplan/lib/journal"
	"github.com/crewplan/crewplan/lib/schema"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewplan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scheduler.Multipliers["medium"] != 1.3 {
		t.Errorf("medium multiplier = %v, want 1.3", cfg.Scheduler.Multipliers["medium"])
	}
	if cfg.Scheduler.BatchSize != 3 {
		t.Errorf("batch size = %d, want 3", cfg.Scheduler.BatchSize)
	}
	if cfg.Journal.Codec != "zstd" {
		t.Errorf("journal codec = %q, want zstd", cfg.Journal.Codec)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
root: /srv/backlog
scheduler:
  batch_size: 5
  multipliers:
    high: 2.5
journal:
  codec: lz4
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Root != "/srv/backlog" {
		t.Errorf("Root = %q, want /srv/backlog", cfg.Root)
	}
	if cfg.Scheduler.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.Scheduler.BatchSize)
	}
	if cfg.Scheduler.Multipliers["high"] != 2.5 {
		t.Errorf("high multiplier = %v, want the file's 2.5", cfg.Scheduler.Multipliers["high"])
	}
	if cfg.Scheduler.Multipliers["low"] != 1.0 {
		t.Errorf("low multiplier = %v, want the default 1.0", cfg.Scheduler.Multipliers["low"])
	}
	if cfg.Scheduler.StaleWarnMinutes != 60 {
		t.Errorf("StaleWarnMinutes = %d, want the default 60", cfg.Scheduler.StaleWarnMinutes)
	}
	if cfg.Journal.Codec != "lz4" {
		t.Errorf("journal codec = %q, want lz4", cfg.Journal.Codec)
	}
}

func TestLoadFileRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  batch_size: -1
  multipliers:
    extreme: 3
journal:
  codec: gzip
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"batch_size", "unknown complexity", "journal.codec"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateDiversityOrdering(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.PhaseScore = 10
	cfg.Scheduler.MilestoneScore = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for phase_score below milestone_score")
	}
}

func TestLoadWithoutEnvUsesDefaults(t *testing.T) {
	t.Setenv("CREWPLAN_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root == "" {
		t.Fatal("default root is empty")
	}
}

func TestLoadHonorsEnv(t *testing.T) {
	path := writeConfig(t, "root: /srv/elsewhere\n")
	t.Setenv("CREWPLAN_CONFIG", path)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/srv/elsewhere" {
		t.Errorf("Root = %q, want /srv/elsewhere", cfg.Root)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRootVariableExpansion(t *testing.T) {
	t.Setenv("CREWPLAN_HOME", "/srv/crew")
	path := writeConfig(t, "root: ${CREWPLAN_HOME}/backlog\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/srv/crew/backlog" {
		t.Errorf("Root = %q, want /srv/crew/backlog", cfg.Root)
	}

	t.Setenv("ABSENT_VAR_FOR_TEST", "")
	path = writeConfig(t, "root: ${ABSENT_VAR_FOR_TEST:-/var/lib/crewplan}\n")
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/var/lib/crewplan" {
		t.Errorf("Root = %q, want the ${VAR:-default} fallback", cfg.Root)
	}
}

func TestSchedulerPolicyConversion(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.StaleErrorMinutes = 240
	cfg.Scheduler.ImplicitSequential = false
	cfg.Scheduler.Multipliers = map[string]float64{"critical": 2.4}

	policy := cfg.SchedulerPolicy()
	if policy.StaleError != 4*time.Hour {
		t.Errorf("StaleError = %v, want 4h", policy.StaleError)
	}
	if policy.ImplicitSequential {
		t.Error("ImplicitSequential not carried over")
	}
	if policy.Multipliers[schema.ComplexityCritical] != 2.4 {
		t.Errorf("critical multiplier = %v, want 2.4", policy.Multipliers[schema.ComplexityCritical])
	}
}

func TestJournalOptionsConversion(t *testing.T) {
	cfg := Default()
	opts := cfg.JournalOptions()
	if opts.MaxSegmentBytes != 1<<20 {
		t.Errorf("MaxSegmentBytes = %d, want %d", opts.MaxSegmentBytes, 1<<20)
	}
	if opts.Codec != journal.CodecZstd {
		t.Errorf("Codec = %v, want zstd", opts.Codec)
	}

	cfg.Journal.Codec = "lz4"
	if got := cfg.JournalOptions().Codec; got != journal.CodecLZ4 {
		t.Errorf("Codec = %v, want lz4", got)
	}
}
