package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/discipline"
	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
)

// ErrorCounts summarizes the coordinator's error log for the report.
type ErrorCounts struct {
	Total                int
	Critical             int
	InterventionRequired int
}

// Input is everything the final report is rendered from.
type Input struct {
	ProjectName string
	StartTime   time.Time
	EndTime     time.Time
	Sessions    []session.Snapshot
	Git         discipline.Stats
	Comm        router.Statistics
	Errors      ErrorCounts
}

// Render produces the final markdown report: team composition, per-agent
// productivity, completion rate, git and communication statistics, and
// heuristic recommendations.
func Render(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Orchestration Report: %s\n\n", in.ProjectName)
	fmt.Fprintf(&b, "Generated: %s\n\n", in.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Uptime: %s\n\n", in.EndTime.Sub(in.StartTime).Round(time.Second))

	b.WriteString("## Team\n\n")
	b.WriteString("| Agent | Role | Status | Tasks | Commits | Messages |\n")
	b.WriteString("|-------|------|--------|-------|---------|----------|\n")
	totalTasks := 0
	completed := 0
	for _, s := range in.Sessions {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d |\n",
			s.AgentID, s.Role, s.Status, s.CompletedTasks, s.GitCommits, s.MessagesExchanged)
		totalTasks += s.CompletedTasks
		if s.Status == session.StatusCompleted {
			completed++
		}
	}
	b.WriteString("\n")

	b.WriteString("## Productivity\n\n")
	fmt.Fprintf(&b, "- Tasks completed: %d\n", totalTasks)
	if len(in.Sessions) > 0 {
		fmt.Fprintf(&b, "- Agent completion rate: %.0f%% (%d of %d agents finished)\n",
			100*float64(completed)/float64(len(in.Sessions)), completed, len(in.Sessions))
	}
	b.WriteString("\n")

	b.WriteString("## Git Discipline\n\n")
	fmt.Fprintf(&b, "- Total commits: %d\n", in.Git.TotalCommits)
	fmt.Fprintf(&b, "- Compliance rate: %.0f%%\n", in.Git.ComplianceRate*100)
	if in.Git.AverageInterval > 0 {
		fmt.Fprintf(&b, "- Average commit interval: %s\n", in.Git.AverageInterval.Round(time.Second))
	}
	b.WriteString("\n")

	b.WriteString("## Communication\n\n")
	fmt.Fprintf(&b, "- Messages exchanged: %d\n", in.Comm.TotalMessages)
	fmt.Fprintf(&b, "- Blocked by topology: %d\n", in.Comm.Blocked)
	fmt.Fprintf(&b, "- Escalations: %d\n", in.Comm.Escalated)
	if in.Comm.AverageResponse > 0 {
		fmt.Fprintf(&b, "- Average response time: %s\n", in.Comm.AverageResponse.Round(time.Millisecond))
	}
	if in.Comm.Pending > 0 {
		fmt.Fprintf(&b, "- Unanswered requests: %d\n", in.Comm.Pending)
	}
	b.WriteString("\n")

	if in.Errors.Total > 0 {
		b.WriteString("## Errors\n\n")
		fmt.Fprintf(&b, "- Recorded: %d (critical: %d, intervention required: %d)\n\n",
			in.Errors.Total, in.Errors.Critical, in.Errors.InterventionRequired)
	}

	recs := Recommendations(in)
	if len(recs) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return b.String()
}

// Recommendations derives operator hints from the run's aggregates.
func Recommendations(in Input) []string {
	var recs []string

	idle := 0
	blocked := 0
	for _, s := range in.Sessions {
		switch s.Status {
		case session.StatusIdle:
			idle++
		case session.StatusBlocked:
			blocked++
		}
	}
	if idle > 0 {
		recs = append(recs, fmt.Sprintf("%d agents idle — consider reassigning work or scaling the team down", idle))
	}
	if blocked > 0 {
		recs = append(recs, fmt.Sprintf("%d agents blocked — review their pending escalations before the next run", blocked))
	}
	if in.Git.ComplianceRate < 0.8 {
		recs = append(recs, fmt.Sprintf("commit compliance below 80%% (%.0f%%) — shorten the interval or remind agents to commit", in.Git.ComplianceRate*100))
	}
	if in.Comm.Blocked > 0 {
		recs = append(recs, fmt.Sprintf("%d messages blocked by topology — the communication model may be too restrictive", in.Comm.Blocked))
	}
	if in.Errors.InterventionRequired > 0 {
		recs = append(recs, fmt.Sprintf("%d errors require operator intervention", in.Errors.InterventionRequired))
	}

	return recs
}
