// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads crewplan configuration.
//
// Configuration comes from a single YAML file named by either the
// CREWPLAN_CONFIG environment variable or the --config flag. There is
// no automatic discovery and environment variables never override
// file values; the one expansion performed is ${VAR} substitution in
// the store root path for portability. Running without a config file
// is normal: every field has a usable default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewplan/crewplan/lib/journal"
	"github.com/crewplan/crewplan/lib/schema"
	"github.com/crewplan/crewplan/lib/scheduler"
)

// Config is the master configuration for crewplan.
type Config struct {
	// Root is the backlog store directory. The --root flag overrides
	// it per invocation.
	Root string `yaml:"root"`

	// Scheduler tunes ranking policy.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Journal tunes audit journal rotation.
	Journal JournalConfig `yaml:"journal"`
}

// SchedulerConfig mirrors the scheduler policy knobs in file form.
// Durations are whole minutes; complexity multipliers are keyed by
// level name.
type SchedulerConfig struct {
	Multipliers map[string]float64 `yaml:"multipliers"`

	StaleWarnMinutes  int `yaml:"stale_warn_minutes"`
	StaleErrorMinutes int `yaml:"stale_error_minutes"`

	// Diversity scores for batch selection. Only the relative order
	// is load-bearing: phase must outrank milestone must outrank
	// epic. Validate enforces the ordering.
	PhaseScore     int `yaml:"phase_score"`
	MilestoneScore int `yaml:"milestone_score"`
	EpicScore      int `yaml:"epic_score"`

	BatchSize int `yaml:"batch_size"`

	// ImplicitSequential gives a task with no explicit dependencies
	// an implied dependency on its predecessor within the epic.
	ImplicitSequential bool `yaml:"implicit_sequential"`
}

// JournalConfig tunes audit journal rotation.
type JournalConfig struct {
	// MaxSegmentKB rotates the active journal file before it grows
	// past this size.
	MaxSegmentKB int `yaml:"max_segment_kb"`

	// Codec names the compression for rotated segments: "zstd" or
	// "lz4".
	Codec string `yaml:"codec"`
}

// Default returns the stock configuration. Loading merges the file
// over these values, so absent fields keep their defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Root: filepath.Join(homeDir, ".crewplan"),
		Scheduler: SchedulerConfig{
			Multipliers: map[string]float64{
				"low":      1.0,
				"medium":   1.3,
				"high":     1.6,
				"critical": 2.0,
			},
			StaleWarnMinutes:   60,
			StaleErrorMinutes:  120,
			PhaseScore:         1000,
			MilestoneScore:     100,
			EpicScore:          10,
			BatchSize:          3,
			ImplicitSequential: true,
		},
		Journal: JournalConfig{
			MaxSegmentKB: 1024,
			Codec:        "zstd",
		},
	}
}

// Load reads the file named by CREWPLAN_CONFIG. When the variable is
// unset the defaults are returned as-is; an unreadable or invalid
// file is always an error.
func Load() (*Config, error) {
	path := os.Getenv("CREWPLAN_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads one configuration file, merged over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Root = expandVars(cfg.Root)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, fmt.Errorf("root is required"))
	}

	for name, value := range c.Scheduler.Multipliers {
		if !schema.Complexity(name).Valid() {
			errs = append(errs, fmt.Errorf("scheduler.multipliers: unknown complexity %q", name))
		}
		if value <= 0 {
			errs = append(errs, fmt.Errorf("scheduler.multipliers.%s must be positive", name))
		}
	}
	if c.Scheduler.StaleWarnMinutes <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.stale_warn_minutes must be positive"))
	}
	if c.Scheduler.StaleErrorMinutes <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.stale_error_minutes must be positive"))
	}
	if c.Scheduler.StaleWarnMinutes > 0 && c.Scheduler.StaleErrorMinutes > 0 &&
		c.Scheduler.StaleWarnMinutes > c.Scheduler.StaleErrorMinutes {
		errs = append(errs, fmt.Errorf("scheduler.stale_warn_minutes must not exceed stale_error_minutes"))
	}
	if c.Scheduler.PhaseScore <= c.Scheduler.MilestoneScore {
		errs = append(errs, fmt.Errorf("scheduler.phase_score must exceed milestone_score"))
	}
	if c.Scheduler.MilestoneScore <= c.Scheduler.EpicScore {
		errs = append(errs, fmt.Errorf("scheduler.milestone_score must exceed epic_score"))
	}
	if c.Scheduler.EpicScore <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.epic_score must be positive"))
	}
	if c.Scheduler.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.batch_size must be positive"))
	}

	if c.Journal.MaxSegmentKB <= 0 {
		errs = append(errs, fmt.Errorf("journal.max_segment_kb must be positive"))
	}
	if _, err := journal.ParseCodec(c.Journal.Codec); err != nil {
		errs = append(errs, fmt.Errorf("journal.codec: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SchedulerPolicy converts the file form into the scheduler's config.
func (c *Config) SchedulerPolicy() scheduler.Config {
	policy := scheduler.DefaultConfig()

	if len(c.Scheduler.Multipliers) > 0 {
		multipliers := make(map[schema.Complexity]float64, len(c.Scheduler.Multipliers))
		for name, value := range c.Scheduler.Multipliers {
			multipliers[schema.Complexity(name)] = value
		}
		policy.Multipliers = multipliers
	}
	policy.StaleWarn = time.Duration(c.Scheduler.StaleWarnMinutes) * time.Minute
	policy.StaleError = time.Duration(c.Scheduler.StaleErrorMinutes) * time.Minute
	policy.PhaseScore = c.Scheduler.PhaseScore
	policy.MilestoneScore = c.Scheduler.MilestoneScore
	policy.EpicScore = c.Scheduler.EpicScore
	policy.BatchSize = c.Scheduler.BatchSize
	policy.ImplicitSequential = c.Scheduler.ImplicitSequential
	return policy
}

// JournalOptions converts the file form into journal options. Call
// Validate first; an unknown codec falls back to the default here.
func (c *Config) JournalOptions() journal.Options {
	codec, err := journal.ParseCodec(c.Journal.Codec)
	if err != nil {
		codec = journal.CodecZstd
	}
	return journal.Options{
		MaxSegmentBytes: int64(c.Journal.MaxSegmentKB) << 10,
		Codec:           codec,
	}
}
