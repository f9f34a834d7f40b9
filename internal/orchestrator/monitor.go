package orchestrator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

// Run is the coordinator's dispatcher loop: it owns every reaction to
// timers and messages so no two handlers mutate coordinator state
// concurrently. Commit and check-in timers post events here instead of
// touching state from their own goroutines.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("run loop stopped: context cancelled")
			return
		case <-ticker.C:
			if c.State() == StateRunning {
				c.MonitorAgents()
			}
		case ev := <-c.discipline.Events():
			c.handleCommitEvent(ev.AgentID, ev.Hash, ev.Err)
		case ev := <-c.scheduler.Events():
			c.HandleAgentCheckIn(ev.AgentID, ev.Note)
		case m := <-c.inbox:
			c.handleMessage(m)
		}
	}
}

// MonitorAgents polls each session's recent pane output and reclassifies
// its status: an "error" substring (case-insensitive) always wins, then 30
// minutes without activity means idle, otherwise the agent is active.
func (c *Coordinator) MonitorAgents() {
	for _, s := range c.sessions.All() {
		if s.Status() == session.StatusCompleted {
			continue
		}

		content, err := c.tmux.CaptureWindowContent(s.SessionName, s.WindowIndex, monitorLines)
		if err != nil {
			c.recordError(s.AgentID, ErrorCommunication, SeverityWarning,
				fmt.Sprintf("monitoring capture failed: %v", err), false)
			continue
		}

		// Changing pane content counts as activity.
		hash := hashContent(content)
		c.mu.Lock()
		if c.captureHashes[s.AgentID] != hash {
			c.captureHashes[s.AgentID] = hash
			s.Touch(time.Now())
		}
		c.mu.Unlock()

		prev := s.Status()
		next := classifyOutput(content, s.LastActivity())
		if next == session.StatusError && prev != session.StatusError {
			c.recordError(s.AgentID, ErrorAgentCrash, SeverityError,
				"error detected in agent output", true)
		}
		if next != prev {
			s.SetStatus(next)
			slog.Debug("agent status change", "id", s.AgentID, "status", next)
			c.notify(AgentStatusMsg{AgentID: s.AgentID, Status: next})
		}
	}

	c.mu.Lock()
	c.touchLocked()
	c.mu.Unlock()
	c.writeStatus()
}

// classifyOutput applies the monitoring precedence: error beats idle beats
// active.
func classifyOutput(content string, lastActivity time.Time) session.Status {
	if strings.Contains(strings.ToLower(content), "error") {
		return session.StatusError
	}
	if time.Since(lastActivity) > idleThreshold {
		return session.StatusIdle
	}
	return session.StatusActive
}

// HandleAgentCheckIn re-examines one agent when its scheduled check-in
// falls due, then arms the next check-in from the agent's new state.
func (c *Coordinator) HandleAgentCheckIn(agentID, note string) {
	s, ok := c.sessions.Get(agentID)
	if !ok {
		c.recordError(agentID, ErrorScheduling, SeverityWarning,
			"check-in for unknown agent", false)
		return
	}

	content, err := c.tmux.CaptureWindowContent(s.SessionName, s.WindowIndex, monitorLines)
	if err != nil {
		c.recordError(agentID, ErrorScheduling, SeverityWarning,
			fmt.Sprintf("check-in capture failed: %v", err), false)
	} else {
		lower := strings.ToLower(content)
		var next session.Status
		switch {
		case strings.Contains(lower, "error"):
			next = session.StatusError
			if s.Status() != session.StatusError {
				c.recordError(agentID, ErrorAgentCrash, SeverityError,
					"error detected at check-in", true)
			}
		case strings.Contains(lower, "blocked"):
			next = session.StatusBlocked
		case strings.Contains(lower, "waiting"):
			next = session.StatusIdle
		default:
			next = session.StatusActive
		}
		if next != s.Status() {
			s.SetStatus(next)
			c.notify(AgentStatusMsg{AgentID: agentID, Status: next})
		}
		s.Touch(time.Now())
	}

	slog.Debug("agent check-in", "id", agentID, "note", note, "status", s.Status())
	c.notify(CheckInMsg{AgentID: agentID})

	if c.cfg.Scheduling.Enabled && c.State() == StateRunning {
		c.scheduler.ScheduleCheckIn(agentID, c.scheduler.IntervalFor(s.Status()), "")
	}
	c.writeStatus()
}

// handleCommitEvent reacts to one auto-commit tick outcome.
func (c *Coordinator) handleCommitEvent(agentID, hash string, commitErr error) {
	if commitErr != nil {
		c.recordError(agentID, ErrorGit, SeverityWarning, commitErr.Error(), false)
		return
	}
	if s, ok := c.sessions.Get(agentID); ok {
		s.AddCommit()
		s.Touch(time.Now())
	}
	c.notify(CommitMsg{AgentID: agentID, Hash: hash})
	c.writeStatus()
}

// handleMessage applies the message-driven side effects while running.
func (c *Coordinator) handleMessage(m router.Message) {
	if s, ok := c.sessions.Get(m.FromAgent); ok {
		s.AddMessage()
	}
	if s, ok := c.sessions.Get(m.ToAgent); ok {
		s.AddMessage()
	}

	switch m.Type {
	case router.TypeTaskCompleted:
		if s, ok := c.sessions.Get(m.FromAgent); ok {
			s.AddCompletedTask()
			s.Touch(time.Now())
		}
		c.mu.Lock()
		c.tasksCompleted++
		c.touchLocked()
		c.mu.Unlock()

	case router.TypeTaskBlocked:
		if s, ok := c.sessions.Get(m.FromAgent); ok {
			s.SetStatus(session.StatusBlocked)
			c.notify(AgentStatusMsg{AgentID: m.FromAgent, Status: session.StatusBlocked})
		}
		c.mu.Lock()
		c.tasksBlocked++
		c.mu.Unlock()
		c.recordError(m.FromAgent, ErrorTaskBlocked, SeverityWarning, m.Content, false)

	case router.TypeCodeReviewRequest:
		c.fanOut(m, team.RoleCodeReviewer, "Code review requested")

	case router.TypeDeploymentRequest:
		c.fanOut(m, team.RoleDevOps, "Deployment requested")

	case router.TypeEscalation:
		c.recordError(m.FromAgent, ErrorEscalation, SeverityCritical, m.Content, true)
		c.notify(EscalationMsg{AgentID: m.FromAgent, Content: m.Content})
	}

	c.writeStatus()
}

// fanOut forwards a request into the window of every session holding the
// target role.
func (c *Coordinator) fanOut(m router.Message, role team.Role, prefix string) {
	targets := c.sessions.ByRole(role)
	if len(targets) == 0 {
		c.recordError(m.FromAgent, ErrorCommunication, SeverityWarning,
			fmt.Sprintf("no %s agents available for %s", role, m.Type), false)
		return
	}
	for _, s := range targets {
		text := fmt.Sprintf("%s by %s: %s", prefix, m.FromAgent, m.Content)
		if err := c.tmux.SendAgentMessage(s.SessionName, s.WindowIndex, text); err != nil {
			c.recordError(s.AgentID, ErrorCommunication, SeverityWarning,
				fmt.Sprintf("fan-out to %s failed: %v", s.AgentID, err), false)
		}
	}
}

func hashContent(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
