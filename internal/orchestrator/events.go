package orchestrator

import "github.com/webdevtodayjason/context-forge-sub002/internal/session"

// Messages sent to the dashboard program, mirroring the coordinator's
// internal events.

type AgentStatusMsg struct {
	AgentID string
	Status  session.Status
}

type CommitMsg struct {
	AgentID string
	Hash    string
}

type CheckInMsg struct {
	AgentID string
}

type EscalationMsg struct {
	AgentID string
	Content string
}

type ErrorMsg struct {
	Err OrchestrationError
}

type StoppedMsg struct {
	ReportPath string
}
