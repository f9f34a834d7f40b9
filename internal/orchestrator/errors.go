package orchestrator

import (
	"errors"
	"time"
)

// ErrTmuxUnavailable aborts deployment when the multiplexer binary is
// missing. Checked once, before any window is created.
var ErrTmuxUnavailable = errors.New("tmux not available on PATH")

// ErrNotRunning is returned by operations that require a running
// orchestration.
var ErrNotRunning = errors.New("orchestration is not running")

type ErrorType string

const (
	ErrorAgentCrash    ErrorType = "agent-crash"
	ErrorCommunication ErrorType = "communication"
	ErrorGit           ErrorType = "git"
	ErrorScheduling    ErrorType = "scheduling"
	ErrorValidation    ErrorType = "validation"
	ErrorEscalation    ErrorType = "escalation"
	ErrorTaskBlocked   ErrorType = "task-blocked"
	ErrorCodeQuality   ErrorType = "code-quality"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// OrchestrationError is one entry in the append-only error log. Non-fatal:
// recorded, surfaced in the report, never aborts the run loop.
type OrchestrationError struct {
	Timestamp            time.Time `json:"timestamp"`
	AgentID              string    `json:"agentId,omitempty"`
	Type                 ErrorType `json:"type"`
	Severity             Severity  `json:"severity"`
	Message              string    `json:"message"`
	RequiresIntervention bool      `json:"requiresIntervention"`
}
