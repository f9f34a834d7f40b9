package team

import (
	"fmt"
	"strings"
)

// Policy defines the role-specific behavior applied when an agent is
// deployed and supervised: its window name, the briefing it receives, and
// the criteria the coordinator uses when reporting on it.
type Policy struct {
	WindowName         string
	BriefingIntro      string
	EscalationCriteria []string
	SuccessCriteria    []string
}

var policies = map[Role]Policy{
	RoleOrchestrator: {
		WindowName:    "orchestrator",
		BriefingIntro: "You are the orchestrator. Coordinate the team, assign tasks, and resolve blockers.",
		EscalationCriteria: []string{
			"any agent blocked for more than one check-in cycle",
			"critical error reported by any agent",
		},
		SuccessCriteria: []string{
			"all assigned tasks completed",
			"no agents left in blocked state",
		},
	},
	RoleProjectManager: {
		WindowName:    "pm",
		BriefingIntro: "You are the project manager. Break work into tasks, track progress, and report status upward.",
		EscalationCriteria: []string{
			"scope change requested by a developer",
			"deadline at risk",
		},
		SuccessCriteria: []string{
			"task list maintained and up to date",
			"status reported every check-in",
		},
	},
	RoleDeveloper: {
		WindowName:    "dev",
		BriefingIntro: "You are a developer. Implement assigned tasks, commit regularly, and raise blockers early.",
		EscalationCriteria: []string{
			"blocked on missing requirements",
			"failing tests that cannot be fixed locally",
		},
		SuccessCriteria: []string{
			"assigned tasks implemented and committed",
			"tests passing before requesting review",
		},
	},
	RoleQAEngineer: {
		WindowName:    "qa",
		BriefingIntro: "You are a QA engineer. Test completed work, file defects, and verify fixes.",
		EscalationCriteria: []string{
			"regression found in previously verified work",
		},
		SuccessCriteria: []string{
			"all completed tasks verified",
			"defects reported with reproduction steps",
		},
	},
	RoleDevOps: {
		WindowName:    "devops",
		BriefingIntro: "You are the devops engineer. Handle deployment requests, CI, and environment issues.",
		EscalationCriteria: []string{
			"deployment failure",
			"environment outage",
		},
		SuccessCriteria: []string{
			"deployment requests handled",
			"environments healthy",
		},
	},
	RoleCodeReviewer: {
		WindowName:    "review",
		BriefingIntro: "You are a code reviewer. Review requested changes for correctness and style.",
		EscalationCriteria: []string{
			"change that weakens security or data integrity",
		},
		SuccessCriteria: []string{
			"review requests answered",
		},
	},
	RoleResearcher: {
		WindowName:    "research",
		BriefingIntro: "You are a researcher. Investigate open questions and summarize findings for the team.",
		EscalationCriteria: []string{
			"investigation blocked on inaccessible resources",
		},
		SuccessCriteria: []string{
			"findings summarized and shared",
		},
	},
	RoleDocWriter: {
		WindowName:    "docs",
		BriefingIntro: "You are the documentation writer. Keep docs current with completed work.",
		EscalationCriteria: []string{
			"undocumented behavior discovered in shipped work",
		},
		SuccessCriteria: []string{
			"documentation matches completed tasks",
		},
	},
}

// PolicyFor returns the policy for a role. Unknown roles get the developer
// policy so a caller holding an unvalidated role still gets defined behavior.
func PolicyFor(r Role) Policy {
	if p, ok := policies[r]; ok {
		return p
	}
	return policies[RoleDeveloper]
}

// Briefing renders the message sent to an agent's window right after
// deployment: role intro, project, supervisor, and declared duties.
func Briefing(d Descriptor, projectName string) string {
	p := PolicyFor(d.Role)
	var b strings.Builder
	b.WriteString(p.BriefingIntro)
	fmt.Fprintf(&b, " Project: %s. Agent id: %s.", projectName, d.ID)
	if d.ReportsTo != "" {
		fmt.Fprintf(&b, " You report to %s.", d.ReportsTo)
	}
	if len(d.Responsibilities) > 0 {
		fmt.Fprintf(&b, " Responsibilities: %s.", strings.Join(d.Responsibilities, "; "))
	}
	if len(d.Constraints) > 0 {
		fmt.Fprintf(&b, " Constraints: %s.", strings.Join(d.Constraints, "; "))
	}
	if len(d.FocusAreas) > 0 {
		fmt.Fprintf(&b, " Focus areas: %s.", strings.Join(d.FocusAreas, "; "))
	}
	return b.String()
}

// WindowName returns the tmux window name for a deployed agent.
func WindowName(d Descriptor) string {
	return PolicyFor(d.Role).WindowName + "-" + d.ID
}
