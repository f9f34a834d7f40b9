package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/discipline"
	"github.com/webdevtodayjason/context-forge-sub002/internal/git"
	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/schedule"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
	"github.com/webdevtodayjason/context-forge-sub002/internal/tmux"
)

// State is the coordinator's lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateCompleted    State = "completed"
	StateError        State = "error"
)

const (
	// idleThreshold is how long without observed pane activity before an
	// agent is reclassified as idle.
	idleThreshold = 30 * time.Minute

	// monitorLines is how much pane output a monitoring poll inspects.
	monitorLines = 50

	// archiveLines is how much pane output is archived per agent on stop.
	archiveLines = 200
)

// Coordinator deploys a declared team into tmux windows, wires every agent
// to the message router and its discipline/scheduling timers, supervises
// agent health, and renders the final report on stop. It is an explicit
// context object: the caller constructs it with its configuration and tears
// it down with Stop.
type Coordinator struct {
	id          string
	cfg         config.Orchestration
	projectPath string
	sessionName string
	stateDir    string

	tmux       tmux.TmuxOps
	router     *router.Router
	discipline *discipline.Service
	scheduler  *schedule.Service
	sessions   *session.Store
	archive    ErrorArchiver
	program    *tea.Program

	// inbox serializes router deliveries into the run loop.
	inbox chan router.Message

	mu             sync.Mutex
	state          State
	startTime      time.Time
	endTime        time.Time
	lastUpdate     time.Time
	nextWindow     int
	tasksCompleted int
	tasksBlocked   int
	errors         []OrchestrationError
	captureHashes  map[string]string // agent id → hash of last observed pane content
	reportPath     string

	monitorInterval time.Duration
}

// ErrorArchiver persists orchestration errors. Optional; implemented by
// the sqlite store.
type ErrorArchiver interface {
	SaveError(agentID, typ, severity, message string, intervention bool, at time.Time) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTmux overrides the default tmux implementation.
func WithTmux(t tmux.TmuxOps) Option {
	return func(c *Coordinator) { c.tmux = t }
}

// WithGit overrides the git implementation used by the discipline service.
func WithGit(g git.GitOps) Option {
	return func(c *Coordinator) {
		c.discipline = discipline.New(g, c.projectPath, c.cfg.Git)
	}
}

// WithErrorArchive attaches an error archive.
func WithErrorArchive(a ErrorArchiver) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithMessageArchive attaches a message archive to the router.
func WithMessageArchive(a router.Archiver) Option {
	return func(c *Coordinator) { c.router.SetArchive(a) }
}

// WithMonitorInterval overrides the monitoring poll cadence.
func WithMonitorInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.monitorInterval = d }
}

func New(cfg config.Orchestration, projectPath, sessionName, stateDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		id:              uuid.NewString(),
		cfg:             cfg,
		projectPath:     projectPath,
		sessionName:     sessionName,
		stateDir:        stateDir,
		tmux:            tmux.RealTmux{},
		router:          router.New(cfg.CommunicationModel),
		scheduler:       schedule.New(cfg.Scheduling),
		sessions:        session.NewStore(),
		inbox:           make(chan router.Message, 64),
		state:           StateInitializing,
		startTime:       time.Now(),
		lastUpdate:      time.Now(),
		nextWindow:      1,
		captureHashes:   make(map[string]string),
		monitorInterval: 30 * time.Second,
	}
	c.discipline = discipline.New(git.RealGit{}, projectPath, cfg.Git)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) ID() string {
	return c.id
}

// SetProgram attaches the dashboard program for event notifications.
func (c *Coordinator) SetProgram(p *tea.Program) {
	c.program = p
}

// Router exposes the message bus for collaborators that send on behalf of
// agents.
func (c *Coordinator) Router() *router.Router {
	return c.router
}

// Discipline exposes the commit discipline service.
func (c *Coordinator) Discipline() *discipline.Service {
	return c.discipline
}

// Sessions exposes the deployed agent sessions.
func (c *Coordinator) Sessions() *session.Store {
	return c.sessions
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deploy brings up the orchestration: tool check, session ensure, then the
// strategy-dictated subset of the team, each agent getting a window, its
// briefing, hierarchy registration, and timers. Any failure aborts the
// whole deployment and propagates; the team is never left partially
// running in the background silently.
func (c *Coordinator) Deploy() error {
	c.mu.Lock()
	if c.state != StateInitializing {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("deploy from state %s", state)
	}
	c.mu.Unlock()

	// Failure anywhere below leaves the state in initializing: the caller
	// sees the error before any transition, and nothing keeps running.
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("validate orchestration config: %w", err)
	}
	if !c.tmux.HasTmux() {
		return ErrTmuxUnavailable
	}

	if c.cfg.Git.Enabled {
		if err := c.discipline.Initialize(); err != nil {
			return err
		}
	}

	// Reusing an existing session is fine: skip creation and go straight
	// to window deployment.
	if !c.tmux.SessionExists(c.sessionName) {
		if err := c.tmux.CreateSession(c.sessionName, c.projectPath); err != nil {
			return err
		}
	}

	for _, d := range c.initialWave() {
		if err := c.deployAgent(d); err != nil {
			c.setState(StateError)
			c.discipline.StopAll()
			c.scheduler.CancelAll()
			return fmt.Errorf("deploy agent %s: %w", d.ID, err)
		}
	}

	c.setState(StateRunning)
	c.writeStatus()
	slog.Info("orchestration running", "id", c.id, "project", c.cfg.ProjectName,
		"strategy", c.cfg.Strategy, "agents", c.sessions.Len())
	return nil
}

// initialWave selects which agents the strategy deploys immediately:
// big-bang takes the whole team in role order, phased the orchestrator and
// the first project manager, adaptive only the orchestrator.
func (c *Coordinator) initialWave() []team.Descriptor {
	ordered := team.DeploymentOrder(c.cfg.Team)
	switch c.cfg.Strategy {
	case config.StrategyPhased:
		var wave []team.Descriptor
		for _, d := range ordered {
			if d.Role == team.RoleOrchestrator {
				wave = append(wave, d)
			}
			if d.Role == team.RoleProjectManager && len(wave) == 1 {
				wave = append(wave, d)
			}
		}
		return wave
	case config.StrategyAdaptive:
		for _, d := range ordered {
			if d.Role == team.RoleOrchestrator {
				return []team.Descriptor{d}
			}
		}
		return nil
	default:
		return ordered
	}
}

// DeployRemaining deploys every declared agent not yet running. Used by the
// phased and adaptive strategies to widen the team after the initial wave.
func (c *Coordinator) DeployRemaining() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.mu.Unlock()

	for _, d := range team.DeploymentOrder(c.cfg.Team) {
		if _, deployed := c.sessions.Get(d.ID); deployed {
			continue
		}
		if err := c.deployAgent(d); err != nil {
			return fmt.Errorf("deploy agent %s: %w", d.ID, err)
		}
	}
	c.writeStatus()
	return nil
}

func (c *Coordinator) deployAgent(d team.Descriptor) error {
	c.mu.Lock()
	windowIndex := c.nextWindow
	c.nextWindow++
	c.mu.Unlock()

	windowName := team.WindowName(d)
	if err := c.tmux.CreateWindow(c.sessionName, windowIndex, windowName, c.projectPath, ""); err != nil {
		return err
	}

	if err := c.tmux.SendAgentMessage(c.sessionName, windowIndex, team.Briefing(d, c.cfg.ProjectName)); err != nil {
		return fmt.Errorf("deliver briefing: %w", err)
	}

	if err := c.router.RegisterHierarchy(d.ID, d.ReportsTo); err != nil {
		return err
	}
	agentID := d.ID
	c.router.Subscribe(agentID, func(m router.Message) {
		c.inbox <- m
	})

	c.sessions.Add(session.New(d, c.sessionName, windowIndex))

	if c.cfg.Git.Enabled {
		c.discipline.StartAutoCommit(d.ID, d.Role)
	}
	if c.cfg.Scheduling.Enabled {
		c.scheduler.ScheduleCheckIn(d.ID, c.scheduler.IntervalFor(session.StatusActive), "initial check-in")
	}

	slog.Info("agent deployed", "id", d.ID, "role", d.Role, "window", windowIndex)
	return nil
}

// Pause suspends discipline and scheduling timers without tearing down any
// windows.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StatePaused
	c.mu.Unlock()

	c.discipline.StopAll()
	c.scheduler.CancelAll()
	c.writeStatus()
	slog.Info("orchestration paused", "id", c.id)
	return nil
}

// Resume restarts timers for every deployed agent.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("resume from state %s", state)
	}
	c.state = StateRunning
	c.mu.Unlock()

	for _, s := range c.sessions.All() {
		if c.cfg.Git.Enabled {
			c.discipline.StartAutoCommit(s.AgentID, s.Descriptor.Role)
		}
		if c.cfg.Scheduling.Enabled {
			c.scheduler.ScheduleCheckIn(s.AgentID, c.scheduler.IntervalFor(s.Status()), "resume")
		}
	}
	c.writeStatus()
	slog.Info("orchestration resumed", "id", c.id)
	return nil
}

// Stop halts every timer, archives each agent's recent pane output, writes
// the final status document and markdown report, and marks the
// orchestration completed. Safe to call once; subsequent calls are no-ops.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return nil
	}
	c.state = StateCompleted
	if c.endTime.IsZero() {
		c.endTime = time.Now()
	}
	c.touchLocked()
	c.mu.Unlock()

	// All timers cancelled before returning; in-flight terminal
	// operations are allowed to complete.
	c.discipline.StopAll()
	c.scheduler.CancelAll()

	c.archiveLogs()

	reportPath, err := c.writeReport()
	if err != nil {
		slog.Error("failed to write report", "error", err)
	} else {
		c.mu.Lock()
		c.reportPath = reportPath
		c.mu.Unlock()
	}

	c.writeStatus()
	slog.Info("orchestration stopped", "id", c.id, "report", reportPath)
	c.notify(StoppedMsg{ReportPath: reportPath})
	return nil
}

// ReportPath returns the final report location, empty until Stop has run.
func (c *Coordinator) ReportPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportPath
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.touchLocked()
	c.mu.Unlock()
}

// touchLocked advances lastUpdate monotonically. Caller holds c.mu.
func (c *Coordinator) touchLocked() {
	if now := time.Now(); now.After(c.lastUpdate) {
		c.lastUpdate = now
	}
}

// recordError appends to the error log, archives, and notifies the
// dashboard. Never aborts anything.
func (c *Coordinator) recordError(agentID string, typ ErrorType, severity Severity, message string, intervention bool) {
	e := OrchestrationError{
		Timestamp:            time.Now(),
		AgentID:              agentID,
		Type:                 typ,
		Severity:             severity,
		Message:              message,
		RequiresIntervention: intervention,
	}
	c.mu.Lock()
	c.errors = append(c.errors, e)
	c.touchLocked()
	c.mu.Unlock()

	slog.Warn("orchestration error recorded", "agent", agentID, "type", typ,
		"severity", severity, "intervention", intervention, "message", message)

	if c.archive != nil {
		if err := c.archive.SaveError(agentID, string(typ), string(severity), message, intervention, e.Timestamp); err != nil {
			slog.Warn("error archive failed", "error", err)
		}
	}
	c.notify(ErrorMsg{Err: e})
}

// Errors returns a copy of the append-only error log.
func (c *Coordinator) Errors() []OrchestrationError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]OrchestrationError, len(c.errors))
	copy(out, c.errors)
	return out
}

func (c *Coordinator) notify(msg tea.Msg) {
	if c.program != nil {
		c.program.Send(msg)
	}
}
