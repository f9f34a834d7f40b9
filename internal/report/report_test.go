package report

import (
	"strings"
	"testing"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/discipline"
	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

func sampleInput() Input {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return Input{
		ProjectName: "demo",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Sessions: []session.Snapshot{
			{AgentID: "orc", Role: team.RoleOrchestrator, Status: session.StatusCompleted, CompletedTasks: 1},
			{AgentID: "dev1", Role: team.RoleDeveloper, Status: session.StatusIdle, CompletedTasks: 3, GitCommits: 5},
			{AgentID: "dev2", Role: team.RoleDeveloper, Status: session.StatusBlocked, CompletedTasks: 1},
		},
		Git:    discipline.Stats{TotalCommits: 5, ComplianceRate: 0.5},
		Comm:   router.Statistics{TotalMessages: 12, Blocked: 2, Escalated: 1},
		Errors: ErrorCounts{Total: 3, Critical: 1, InterventionRequired: 1},
	}
}

func TestRenderSections(t *testing.T) {
	out := Render(sampleInput())

	for _, want := range []string{
		"# Orchestration Report: demo",
		"Uptime: 2h0m0s",
		"| dev1 | developer | idle | 3 | 5 | 0 |",
		"Tasks completed: 5",
		"Compliance rate: 50%",
		"Messages exchanged: 12",
		"Escalations: 1",
		"## Recommendations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestRecommendationHeuristics(t *testing.T) {
	recs := Recommendations(sampleInput())
	joined := strings.Join(recs, "\n")

	for _, want := range []string{
		"1 agents idle",
		"1 agents blocked",
		"compliance below 80%",
		"2 messages blocked by topology",
		"1 errors require operator intervention",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("recommendations missing %q: %v", want, recs)
		}
	}
}

func TestNoRecommendationsForHealthyRun(t *testing.T) {
	in := sampleInput()
	in.Sessions = []session.Snapshot{
		{AgentID: "orc", Role: team.RoleOrchestrator, Status: session.StatusCompleted},
	}
	in.Git.ComplianceRate = 1.0
	in.Comm.Blocked = 0
	in.Errors = ErrorCounts{}

	if recs := Recommendations(in); len(recs) != 0 {
		t.Errorf("expected no recommendations, got %v", recs)
	}
}
