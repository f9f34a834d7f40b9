package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/report"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
)

// Status is the aggregated orchestration view, recomputed on demand from
// the session set and error log.
type Status struct {
	ID             string     `json:"id"`
	ProjectName    string     `json:"projectName"`
	State          State      `json:"state"`
	StartTime      time.Time  `json:"startTime"`
	LastUpdate     time.Time  `json:"lastUpdate"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	TotalAgents    int        `json:"totalAgents"`
	ActiveAgents   int        `json:"activeAgents"`
	CompletedTasks int        `json:"completedTasks"`
	PendingTasks   int        `json:"pendingTasks"`
	TotalCommits   int        `json:"totalCommits"`
	Errors         int        `json:"errors"`
	UptimeSeconds  int64      `json:"uptimeSeconds"`
}

func (c *Coordinator) GetStatus() Status {
	counts := c.sessions.CountByStatus()
	gitStats := c.discipline.Stats()
	commStats := c.router.Statistics()

	c.mu.Lock()
	defer c.mu.Unlock()

	uptimeEnd := time.Now()
	if !c.endTime.IsZero() {
		uptimeEnd = c.endTime
	}

	st := Status{
		ID:             c.id,
		ProjectName:    c.cfg.ProjectName,
		State:          c.state,
		StartTime:      c.startTime,
		LastUpdate:     c.lastUpdate,
		TotalAgents:    c.sessions.Len(),
		ActiveAgents:   counts[session.StatusActive],
		CompletedTasks: c.tasksCompleted,
		PendingTasks:   commStats.Pending,
		TotalCommits:   gitStats.TotalCommits,
		Errors:         len(c.errors),
		UptimeSeconds:  int64(uptimeEnd.Sub(c.startTime).Seconds()),
	}
	if !c.endTime.IsZero() {
		end := c.endTime
		st.EndTime = &end
	}
	return st
}

// GenerateSummary renders the compact human-readable status line.
func (c *Coordinator) GenerateSummary() string {
	st := c.GetStatus()
	compliance := c.discipline.Stats().ComplianceRate

	return fmt.Sprintf("%s: %d/%d agents active, %d tasks done (%d pending), %d commits (%.0f%% compliant), up %s",
		st.ProjectName, st.ActiveAgents, st.TotalAgents, st.CompletedTasks, st.PendingTasks,
		st.TotalCommits, compliance*100, (time.Duration(st.UptimeSeconds)*time.Second).Round(time.Second))
}

// statusFile holds the persisted document: the aggregate status plus a
// snapshot of every agent session.
type statusFile struct {
	Status Status             `json:"status"`
	Agents []session.Snapshot `json:"agents"`
}

// writeStatus persists the status document after every status-affecting
// operation. Atomic: temp file then rename.
func (c *Coordinator) writeStatus() {
	doc := statusFile{Status: c.GetStatus()}
	for _, s := range c.sessions.All() {
		doc.Agents = append(doc.Agents, s.Snapshot())
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		slog.Error("failed to marshal status", "error", err)
		return
	}

	if err := os.MkdirAll(c.stateDir, 0o755); err != nil {
		slog.Error("failed to create state dir", "error", err)
		return
	}
	path := filepath.Join(c.stateDir, "status.json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		slog.Error("failed to write status temp file", "error", err)
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		slog.Error("failed to rename status file", "error", err)
	}
}

// archiveLogs captures each session's recent pane output into a per-agent
// timestamped log file under the state directory.
func (c *Coordinator) archiveLogs() {
	logDir := filepath.Join(c.stateDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		slog.Error("failed to create log dir", "error", err)
		return
	}

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	for _, s := range c.sessions.All() {
		content, err := c.tmux.CaptureWindowContent(s.SessionName, s.WindowIndex, archiveLines)
		if err != nil {
			c.recordError(s.AgentID, ErrorCommunication, SeverityWarning,
				fmt.Sprintf("log archive capture failed: %v", err), false)
			continue
		}
		path := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", s.AgentID, stamp))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			slog.Error("failed to archive agent log", "agent", s.AgentID, "error", err)
		}
	}
}

// writeReport renders and persists the final markdown report.
func (c *Coordinator) writeReport() (string, error) {
	in := report.Input{
		ProjectName: c.cfg.ProjectName,
		Git:         c.discipline.Stats(),
		Comm:        c.router.Statistics(),
	}
	for _, s := range c.sessions.All() {
		in.Sessions = append(in.Sessions, s.Snapshot())
	}

	c.mu.Lock()
	in.StartTime = c.startTime
	in.EndTime = c.endTime
	if in.EndTime.IsZero() {
		in.EndTime = time.Now()
	}
	for _, e := range c.errors {
		in.Errors.Total++
		if e.Severity == SeverityCritical {
			in.Errors.Critical++
		}
		if e.RequiresIntervention {
			in.Errors.InterventionRequired++
		}
	}
	c.mu.Unlock()

	if err := os.MkdirAll(c.stateDir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(c.stateDir, fmt.Sprintf("report_%s.md", in.EndTime.UTC().Format("2006-01-02T15-04-05Z")))
	if err := os.WriteFile(path, []byte(report.Render(in)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
