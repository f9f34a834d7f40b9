package discipline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/git"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

// complianceGrace pads the configured interval when judging whether an
// agent's last commit is recent enough.
const complianceGrace = 1.5

// Event reports the outcome of one auto-commit tick. Err is set when the
// commit failed for a reason other than the tree being clean.
type Event struct {
	AgentID string
	Role    team.Role
	Hash    string
	Message string
	Time    time.Time
	Err     error
}

// Service runs one auto-commit timer per agent against the orchestrated
// project's working directory.
type Service struct {
	git         git.GitOps
	projectPath string
	cfg         config.GitDiscipline
	events      chan Event

	mu         sync.Mutex
	timers     map[string]chan struct{} // agent id → stop channel
	lastCommit map[string]time.Time
	perAgent   map[string]int
	total      int
	gapTotal   time.Duration
	gapCount   int
}

func New(g git.GitOps, projectPath string, cfg config.GitDiscipline) *Service {
	return &Service{
		git:         g,
		projectPath: projectPath,
		cfg:         cfg,
		events:      make(chan Event, 64),
		timers:      make(map[string]chan struct{}),
		lastCommit:  make(map[string]time.Time),
		perAgent:    make(map[string]int),
	}
}

// Events is the stream of commit outcomes, drained by the coordinator's
// run loop.
func (s *Service) Events() <-chan Event {
	return s.events
}

// Initialize ensures the project directory is a repository, configures the
// committer identity, and installs the test-gate hook when required.
func (s *Service) Initialize() error {
	if !s.git.IsRepo(s.projectPath) {
		if err := s.git.Init(s.projectPath); err != nil {
			return fmt.Errorf("initialize discipline: %w", err)
		}
	}
	if err := s.git.SetIdentity(s.projectPath, s.cfg.CommitterName, s.cfg.CommitterEmail); err != nil {
		return fmt.Errorf("initialize discipline: %w", err)
	}
	if s.cfg.RequireTests {
		if err := s.git.InstallHook(s.projectPath, "pre-commit", testGateScript(s.cfg.TestCommand)); err != nil {
			return fmt.Errorf("install test gate: %w", err)
		}
	}
	return nil
}

// StartAutoCommit begins the periodic commit timer for an agent. A second
// call for the same agent replaces the previous timer.
func (s *Service) StartAutoCommit(agentID string, role team.Role) {
	s.mu.Lock()
	if stop, ok := s.timers[agentID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.timers[agentID] = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.cfg.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick(agentID, role)
			}
		}
	}()

	slog.Info("auto-commit started", "agent", agentID, "interval", s.cfg.Interval())
}

func (s *Service) StopAutoCommit(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.timers[agentID]; ok {
		close(stop)
		delete(s.timers, agentID)
	}
}

// StopAll cancels every agent timer.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stop := range s.timers {
		close(stop)
		delete(s.timers, id)
	}
}

// tick inspects the working tree and commits if dirty. A clean tree is not
// an error, and neither is the tree becoming clean between the check and
// the commit.
func (s *Service) tick(agentID string, role team.Role) {
	err := s.CommitNow(agentID, role)
	if err != nil {
		s.events <- Event{AgentID: agentID, Role: role, Time: time.Now(), Err: err}
	}
}

// CommitNow performs one discipline cycle for an agent: stage everything
// and commit with the templated message. Returns nil when there was nothing
// to commit.
func (s *Service) CommitNow(agentID string, role team.Role) error {
	if !s.git.HasChanges(s.projectPath) {
		return nil
	}
	if err := s.git.StageAll(s.projectPath); err != nil {
		return fmt.Errorf("auto-commit for %s: %w", agentID, err)
	}

	now := time.Now()
	msg := s.commitMessage(agentID, role, now)
	if err := s.git.Commit(s.projectPath, msg); err != nil {
		if errors.Is(err, git.ErrNothingToCommit) {
			// Tree became clean between check and commit.
			return nil
		}
		return fmt.Errorf("auto-commit for %s: %w", agentID, err)
	}

	hash, _ := s.git.HeadCommit(s.projectPath)

	s.mu.Lock()
	if last, ok := s.lastCommit[agentID]; ok {
		s.gapTotal += now.Sub(last)
		s.gapCount++
	}
	s.lastCommit[agentID] = now
	s.perAgent[agentID]++
	s.total++
	s.mu.Unlock()

	slog.Info("auto-commit created", "agent", agentID, "hash", hash)
	s.events <- Event{AgentID: agentID, Role: role, Hash: hash, Message: msg, Time: now}
	return nil
}

// commitMessage builds the commit message from the configured template,
// substituting $TASK, $DESCRIPTION, $AGENT, and $TIMESTAMP. Without a
// custom template a structured default is used.
func (s *Service) commitMessage(agentID string, role team.Role, now time.Time) string {
	task := "checkpoint"
	description := "periodic work-in-progress checkpoint"
	ts := now.Format(time.RFC3339)

	if s.cfg.CommitTemplate != "" {
		msg := s.cfg.CommitTemplate
		msg = strings.ReplaceAll(msg, "$TASK", task)
		msg = strings.ReplaceAll(msg, "$DESCRIPTION", description)
		msg = strings.ReplaceAll(msg, "$AGENT", agentID)
		msg = strings.ReplaceAll(msg, "$TIMESTAMP", ts)
		return msg
	}

	return fmt.Sprintf("chore(%s): %s\n\nAgent: %s (%s)\nTimestamp: %s",
		agentID, description, agentID, role, ts)
}

// CheckCompliance reports whether the agent's most recent commit falls
// within the grace-padded interval. An agent that has not committed yet is
// compliant.
func (s *Service) CheckCompliance(agentID string) bool {
	s.mu.Lock()
	last, ok := s.lastCommit[agentID]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return time.Since(last) <= time.Duration(complianceGrace*float64(s.cfg.Interval()))
}

// CreateFeatureBranch sanitizes the name into a branch slug and creates or
// switches to feature/<slug>.
func (s *Service) CreateFeatureBranch(name, agentID string) (string, error) {
	branch := "feature/" + slugify(name)
	if !s.git.BranchExists(s.projectPath, branch) {
		if err := s.git.CreateBranch(s.projectPath, branch); err != nil {
			return "", fmt.Errorf("feature branch for %s: %w", agentID, err)
		}
	}
	if err := s.git.CheckoutBranch(s.projectPath, branch); err != nil {
		return "", fmt.Errorf("feature branch for %s: %w", agentID, err)
	}
	slog.Info("feature branch ready", "agent", agentID, "branch", branch)
	return branch, nil
}

func (s *Service) TagStableVersion(name, message, agentID string) error {
	if err := s.git.CreateTag(s.projectPath, name, message); err != nil {
		return fmt.Errorf("tag stable version for %s: %w", agentID, err)
	}
	slog.Info("stable version tagged", "agent", agentID, "tag", name)
	return nil
}

// slugify lowers the name and reduces it to alphanumerics and hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Stats summarizes commit discipline across the run.
type Stats struct {
	TotalCommits    int
	PerAgent        map[string]int
	AverageInterval time.Duration
	ComplianceRate  float64
}

// Stats reports totals, per-agent counts, the average inter-commit gap, and
// the compliance rate across agents with an active timer.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	active := make([]string, 0, len(s.timers))
	for id := range s.timers {
		active = append(active, id)
	}
	perAgent := make(map[string]int, len(s.perAgent))
	for k, v := range s.perAgent {
		perAgent[k] = v
	}
	total := s.total
	var avg time.Duration
	if s.gapCount > 0 {
		avg = s.gapTotal / time.Duration(s.gapCount)
	}
	s.mu.Unlock()

	rate := 1.0
	if len(active) > 0 {
		compliant := 0
		for _, id := range active {
			if s.CheckCompliance(id) {
				compliant++
			}
		}
		rate = float64(compliant) / float64(len(active))
	}

	return Stats{
		TotalCommits:    total,
		PerAgent:        perAgent,
		AverageInterval: avg,
		ComplianceRate:  rate,
	}
}

// testGateScript is the pre-commit hook installed when tests are required:
// it blocks the commit when the configured test command fails.
func testGateScript(testCommand string) string {
	if testCommand == "" {
		testCommand = "go test ./..."
	}
	return fmt.Sprintf(`#!/bin/sh
# Test gate: reject commits when the test suite fails.
set -e

%s
`, testCommand)
}
