package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

// Strategy selects how much of the declared team Deploy brings up initially.
type Strategy string

const (
	StrategyBigBang  Strategy = "big-bang"
	StrategyPhased   Strategy = "phased"
	StrategyAdaptive Strategy = "adaptive"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyBigBang, StrategyPhased, StrategyAdaptive:
		return true
	}
	return false
}

// GitDiscipline configures the commit discipline service.
type GitDiscipline struct {
	Enabled           bool   `yaml:"enabled"`
	IntervalMinutes   int    `yaml:"interval_minutes"`
	BranchingStrategy string `yaml:"branching_strategy"`
	CommitTemplate    string `yaml:"commit_template"`
	RequireTests      bool   `yaml:"require_tests"`
	RequireReview     bool   `yaml:"require_review"`
	CommitterName     string `yaml:"committer_name"`
	CommitterEmail    string `yaml:"committer_email"`
	TestCommand       string `yaml:"test_command"`
}

func (g GitDiscipline) Interval() time.Duration {
	return time.Duration(g.IntervalMinutes) * time.Minute
}

// SelfScheduling configures agent check-in scheduling.
type SelfScheduling struct {
	Enabled          bool   `yaml:"enabled"`
	DefaultMinutes   int    `yaml:"default_minutes"`
	MinMinutes       int    `yaml:"min_minutes"`
	MaxMinutes       int    `yaml:"max_minutes"`
	Adaptive         bool   `yaml:"adaptive"`
	CheckInCron      string `yaml:"check_in_cron,omitempty"`
	RecoveryStrategy string `yaml:"recovery_strategy"`
}

func (s SelfScheduling) Default() time.Duration {
	return time.Duration(s.DefaultMinutes) * time.Minute
}

func (s SelfScheduling) Min() time.Duration {
	return time.Duration(s.MinMinutes) * time.Minute
}

func (s SelfScheduling) Max() time.Duration {
	return time.Duration(s.MaxMinutes) * time.Minute
}

// Orchestration is the full declarative input supplied once at construction
// and read-only thereafter.
type Orchestration struct {
	ProjectName        string                    `yaml:"project_name"`
	Strategy           Strategy                  `yaml:"strategy"`
	CommunicationModel router.CommunicationModel `yaml:"communication_model"`
	Git                GitDiscipline             `yaml:"git_discipline"`
	Scheduling         SelfScheduling            `yaml:"self_scheduling"`
	Team               []team.Descriptor         `yaml:"team"`
}

// Default returns an Orchestration with the baseline discipline and
// scheduling settings; callers fill in ProjectName and Team.
func Default() Orchestration {
	return Orchestration{
		Strategy:           StrategyBigBang,
		CommunicationModel: router.ModelHubAndSpoke,
		Git: GitDiscipline{
			Enabled:           true,
			IntervalMinutes:   30,
			BranchingStrategy: "feature",
			CommitterName:     "orchestrator",
			CommitterEmail:    "orchestrator@localhost",
			TestCommand:       "go test ./...",
		},
		Scheduling: SelfScheduling{
			Enabled:          true,
			DefaultMinutes:   15,
			MinMinutes:       5,
			MaxMinutes:       60,
			Adaptive:         true,
			RecoveryStrategy: "reschedule",
		},
	}
}

// Load reads an orchestration config from a YAML file, merged over defaults
// and validated.
func Load(path string) (Orchestration, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enums, interval bounds, the optional cron expression, and
// the team forest.
func (c Orchestration) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is required")
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if !c.CommunicationModel.Valid() {
		return fmt.Errorf("unknown communication model %q", c.CommunicationModel)
	}
	if c.Git.Enabled && c.Git.IntervalMinutes <= 0 {
		return fmt.Errorf("git discipline interval must be positive, got %d", c.Git.IntervalMinutes)
	}
	if c.Scheduling.Enabled {
		if c.Scheduling.MinMinutes <= 0 || c.Scheduling.MaxMinutes < c.Scheduling.MinMinutes {
			return fmt.Errorf("self scheduling bounds invalid: min=%d max=%d",
				c.Scheduling.MinMinutes, c.Scheduling.MaxMinutes)
		}
		if c.Scheduling.DefaultMinutes < c.Scheduling.MinMinutes || c.Scheduling.DefaultMinutes > c.Scheduling.MaxMinutes {
			return fmt.Errorf("self scheduling default %d outside [%d, %d]",
				c.Scheduling.DefaultMinutes, c.Scheduling.MinMinutes, c.Scheduling.MaxMinutes)
		}
		if c.Scheduling.CheckInCron != "" && !gronx.New().IsValid(c.Scheduling.CheckInCron) {
			return fmt.Errorf("invalid check-in cron expression %q", c.Scheduling.CheckInCron)
		}
	}
	if len(c.Team) == 0 {
		return fmt.Errorf("team is empty")
	}
	return team.ValidateForest(c.Team)
}
