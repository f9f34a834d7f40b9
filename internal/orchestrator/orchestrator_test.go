package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/git"
	"github.com/webdevtodayjason/context-forge-sub002/internal/router"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
	"github.com/webdevtodayjason/context-forge-sub002/internal/tmux"
)

// --- Mock tmux ---

type mockTmux struct {
	mu    sync.Mutex
	calls []string

	hasTmux         bool
	sessionExists   bool
	capture         string
	captureErr      error
	createWindowErr error
}

func newMockTmux() *mockTmux {
	return &mockTmux{hasTmux: true, capture: "agent working on task"}
}

func (m *mockTmux) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockTmux) hasCalled(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (m *mockTmux) calledWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockTmux) HasTmux() bool { return m.hasTmux }

func (m *mockTmux) SessionExists(name string) bool {
	m.record("SessionExists:" + name)
	return m.sessionExists
}

func (m *mockTmux) CreateSession(name, workdir string) error {
	m.record("CreateSession:" + name)
	return nil
}

func (m *mockTmux) KillSession(name string) error {
	m.record("KillSession:" + name)
	return nil
}

func (m *mockTmux) CreateWindow(sess string, index int, name, workdir, initialCommand string) error {
	m.record("CreateWindow:" + name)
	return m.createWindowErr
}

func (m *mockTmux) RenameWindow(sess string, window int, name string) error { return nil }
func (m *mockTmux) KillWindow(sess string, window int) error { return nil }
func (m *mockTmux) ListWindows(sess string) ([]tmux.Window, error) { return nil, nil }
func (m *mockTmux) SendKeys(sess string, window int, text string) error { return nil }

func (m *mockTmux) SendAgentMessage(sess string, window int, text string) error {
	m.record("SendAgentMessage:" + text)
	return nil
}

func (m *mockTmux) CaptureWindowContent(sess string, window int, lineCount int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capture, m.captureErr
}

func (m *mockTmux) setCapture(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = content
}

func (m *mockTmux) WaitForWindow(sess, name string, timeout time.Duration) bool { return true }
func (m *mockTmux) WaitForText(sess string, window int, pattern string, timeout time.Duration) bool {
	return true
}

// --- Mock git ---

type mockGit struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockGit) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockGit) IsRepo(path string) bool { return true }
func (m *mockGit) Init(path string) error { m.record("Init"); return nil }
func (m *mockGit) SetIdentity(path, name, email string) error { return nil }
func (m *mockGit) HasChanges(path string) bool { return false }
func (m *mockGit) StageAll(path string) error { return nil }
func (m *mockGit) Commit(path, message string) error { return nil }
func (m *mockGit) CurrentBranch(path string) (string, error) { return "main", nil }
func (m *mockGit) BranchExists(path, name string) bool { return false }
func (m *mockGit) CreateBranch(path, name string) error { return nil }
func (m *mockGit) CheckoutBranch(path, name string) error { return nil }
func (m *mockGit) CreateTag(path, name, message string) error { return nil }
func (m *mockGit) Log(path string, count int) ([]git.CommitInfo, error) {
	return nil, nil
}
func (m *mockGit) HeadCommit(path string) (string, error) { return "abc123", nil }
func (m *mockGit) BranchCount(path string) int { return 1 }
func (m *mockGit) InstallHook(path, name, script string) error { return nil }

// --- Fixtures ---

func testTeam() []team.Descriptor {
	return []team.Descriptor{
		{ID: "orc", Role: team.RoleOrchestrator},
		{ID: "pm", Role: team.RoleProjectManager, ReportsTo: "orc"},
		{ID: "dev-1", Role: team.RoleDeveloper, ReportsTo: "pm"},
		{ID: "rev-1", Role: team.RoleCodeReviewer, ReportsTo: "pm"},
		{ID: "ops-1", Role: team.RoleDevOps, ReportsTo: "orc"},
	}
}

func testConfig() config.Orchestration {
	cfg := config.Default()
	cfg.ProjectName = "demo"
	cfg.CommunicationModel = router.ModelHubAndSpoke
	cfg.Team = testTeam()
	return cfg
}

func testCoordinator(t *testing.T, cfg config.Orchestration) (*Coordinator, *mockTmux) {
	t.Helper()
	mt := newMockTmux()
	c := New(cfg, t.TempDir(), "agents", t.TempDir(),
		WithTmux(mt), WithGit(&mockGit{}))
	t.Cleanup(func() { c.Stop() })
	return c, mt
}

// --- Deployment ---

func TestDeployWithoutTmuxAborts(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	mt.hasTmux = false

	err := c.Deploy()
	if !errors.Is(err, ErrTmuxUnavailable) {
		t.Fatalf("expected ErrTmuxUnavailable, got %v", err)
	}
	if got := c.State(); got != StateInitializing {
		t.Errorf("state = %s, want initializing", got)
	}
	if calls := mt.calledWithPrefix("CreateWindow:"); len(calls) != 0 {
		t.Errorf("windows created despite missing tmux: %v", calls)
	}
}

func TestDeployBigBangDeploysWholeTeamInOrder(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())

	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got := c.State(); got != StateRunning {
		t.Fatalf("state = %s, want running", got)
	}
	if got := c.Sessions().Len(); got != 5 {
		t.Errorf("deployed %d agents, want 5", got)
	}

	windows := mt.calledWithPrefix("CreateWindow:")
	if len(windows) != 5 {
		t.Fatalf("created %d windows, want 5: %v", len(windows), windows)
	}
	if !strings.Contains(windows[0], "orchestrator") {
		t.Errorf("first window %q, want the orchestrator", windows[0])
	}
	if !strings.Contains(windows[1], "pm") {
		t.Errorf("second window %q, want the project manager", windows[1])
	}
}

func TestDeployReusesExistingSession(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	mt.sessionExists = true

	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if mt.hasCalled("CreateSession:agents") {
		t.Error("session recreated instead of reused")
	}
	if got := c.Sessions().Len(); got != 5 {
		t.Errorf("deployed %d agents, want 5", got)
	}
}

func TestDeployWindowFailurePropagates(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	mt.createWindowErr = errors.New("no space left")

	err := c.Deploy()
	if err == nil {
		t.Fatal("expected deploy error")
	}
	if !strings.Contains(err.Error(), "deploy agent orc") {
		t.Errorf("error %q does not name the failing agent", err)
	}
	if got := c.State(); got != StateError {
		t.Errorf("state = %s, want error", got)
	}
}

func TestDeployTwiceRejected(t *testing.T) {
	c, _ := testCoordinator(t, testConfig())
	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if err := c.Deploy(); err == nil {
		t.Error("second deploy should be rejected")
	}
}

func TestInitialWavePhased(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = config.StrategyPhased
	c, _ := testCoordinator(t, cfg)

	wave := c.initialWave()
	if len(wave) != 2 {
		t.Fatalf("phased wave has %d agents, want 2", len(wave))
	}
	if wave[0].Role != team.RoleOrchestrator || wave[1].Role != team.RoleProjectManager {
		t.Errorf("phased wave roles = %s, %s", wave[0].Role, wave[1].Role)
	}
}

func TestInitialWaveAdaptive(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = config.StrategyAdaptive
	c, _ := testCoordinator(t, cfg)

	wave := c.initialWave()
	if len(wave) != 1 || wave[0].Role != team.RoleOrchestrator {
		t.Fatalf("adaptive wave = %v, want only the orchestrator", wave)
	}
}

func TestDeployRemainingWidensTheTeam(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = config.StrategyAdaptive
	c, _ := testCoordinator(t, cfg)

	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got := c.Sessions().Len(); got != 1 {
		t.Fatalf("adaptive deploy brought up %d agents, want 1", got)
	}
	if err := c.DeployRemaining(); err != nil {
		t.Fatalf("DeployRemaining: %v", err)
	}
	if got := c.Sessions().Len(); got != 5 {
		t.Errorf("after DeployRemaining %d agents, want 5", got)
	}
}

func TestDeployRemainingRequiresRunning(t *testing.T) {
	c, _ := testCoordinator(t, testConfig())
	if err := c.DeployRemaining(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

// --- Monitoring ---

func TestClassifyOutputPrecedence(t *testing.T) {
	stale := time.Now().Add(-2 * idleThreshold)

	// An error substring wins even when the pane has been silent for hours.
	if got := classifyOutput("FETCH ERROR: connection refused", stale); got != session.StatusError {
		t.Errorf("error output classified as %s", got)
	}
	if got := classifyOutput("still compiling", stale); got != session.StatusIdle {
		t.Errorf("stale output classified as %s, want idle", got)
	}
	if got := classifyOutput("still compiling", time.Now()); got != session.StatusActive {
		t.Errorf("fresh output classified as %s, want active", got)
	}
}

func TestMonitorAgentsRecordsCrashOnce(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	mt.setCapture("panic: Error: nil pointer dereference")
	c.MonitorAgents()

	s, _ := c.Sessions().Get("dev-1")
	if got := s.Status(); got != session.StatusError {
		t.Fatalf("status = %s, want error", got)
	}
	crashes := countErrors(c, ErrorAgentCrash)
	if crashes != 5 {
		t.Fatalf("recorded %d crash errors, want one per agent", crashes)
	}
	for _, e := range c.Errors() {
		if e.Type == ErrorAgentCrash && !e.RequiresIntervention {
			t.Error("crash error should require intervention")
		}
	}

	// Still erroring: no duplicate entries for an unchanged status.
	c.MonitorAgents()
	if got := countErrors(c, ErrorAgentCrash); got != crashes {
		t.Errorf("repeated monitoring added crash errors: %d -> %d", crashes, got)
	}
}

func TestMonitorAgentsCaptureFailure(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	mt.captureErr = errors.New("pane gone")
	c.MonitorAgents()

	if got := countErrors(c, ErrorCommunication); got != 5 {
		t.Errorf("recorded %d communication errors, want one per agent", got)
	}
	for _, e := range c.Errors() {
		if e.Severity != SeverityWarning {
			t.Errorf("capture failure severity = %s, want warning", e.Severity)
		}
	}
}

// --- Check-ins ---

func TestCheckInReclassifiesFromOutput(t *testing.T) {
	c, mt := testCoordinator(t, testConfig())
	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	mt.setCapture("blocked on code review feedback")
	c.HandleAgentCheckIn("dev-1", "scheduled")

	s, _ := c.Sessions().Get("dev-1")
	if got := s.Status(); got != session.StatusBlocked {
		t.Errorf("status = %s, want blocked", got)
	}

	mt.setCapture("waiting for next task")
	c.HandleAgentCheckIn("dev-1", "scheduled")
	if got := s.Status(); got != session.StatusIdle {
		t.Errorf("status = %s, want idle", got)
	}
}

func TestCheckInUnknownAgent(t *testing.T) {
	c, _ := testCoordinator(t, testConfig())
	c.HandleAgentCheckIn("ghost", "scheduled")

	if got := countErrors(c, ErrorScheduling); got != 1 {
		t.Errorf("recorded %d scheduling errors, want 1", got)
	}
}

// --- Message side effects ---

func deployRunning(t *testing.T, cfg config.Orchestration) (*Coordinator, *mockTmux) {
	t.Helper()
	c, mt := testCoordinator(t, cfg)
	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	return c, mt
}

func TestTaskCompletedUpdatesCounters(t *testing.T) {
	c, _ := deployRunning(t, testConfig())

	c.handleMessage(router.Message{Type: router.TypeTaskCompleted, FromAgent: "dev-1", ToAgent: "pm"})

	s, _ := c.Sessions().Get("dev-1")
	if got := s.Snapshot().CompletedTasks; got != 1 {
		t.Errorf("dev-1 completed tasks = %d, want 1", got)
	}
	if got := c.GetStatus().CompletedTasks; got != 1 {
		t.Errorf("orchestration completed tasks = %d, want 1", got)
	}
}

func TestTaskBlockedMarksSenderBlocked(t *testing.T) {
	c, _ := deployRunning(t, testConfig())

	c.handleMessage(router.Message{Type: router.TypeTaskBlocked, FromAgent: "dev-1", ToAgent: "pm", Content: "needs credentials"})

	s, _ := c.Sessions().Get("dev-1")
	if got := s.Status(); got != session.StatusBlocked {
		t.Errorf("status = %s, want blocked", got)
	}
	if got := countErrors(c, ErrorTaskBlocked); got != 1 {
		t.Errorf("recorded %d task-blocked errors, want 1", got)
	}
}

func TestCodeReviewRequestFansOutToReviewers(t *testing.T) {
	c, mt := deployRunning(t, testConfig())

	c.handleMessage(router.Message{Type: router.TypeCodeReviewRequest, FromAgent: "dev-1", ToAgent: "pm", Content: "PR #12"})

	var forwarded bool
	for _, call := range mt.calledWithPrefix("SendAgentMessage:") {
		if strings.Contains(call, "Code review requested") && strings.Contains(call, "PR #12") {
			forwarded = true
		}
	}
	if !forwarded {
		t.Error("review request was not forwarded to the reviewer window")
	}
}

func TestFanOutWithoutTargetRole(t *testing.T) {
	cfg := testConfig()
	cfg.Team = []team.Descriptor{
		{ID: "orc", Role: team.RoleOrchestrator},
		{ID: "dev-1", Role: team.RoleDeveloper, ReportsTo: "orc"},
	}
	c, _ := deployRunning(t, cfg)

	c.handleMessage(router.Message{Type: router.TypeDeploymentRequest, FromAgent: "dev-1", ToAgent: "orc"})

	if got := countErrors(c, ErrorCommunication); got != 1 {
		t.Errorf("recorded %d communication errors, want 1", got)
	}
}

func TestEscalationIsCritical(t *testing.T) {
	c, _ := deployRunning(t, testConfig())

	c.handleMessage(router.Message{Type: router.TypeEscalation, FromAgent: "pm", ToAgent: "orc", Content: "deadline at risk"})

	var found bool
	for _, e := range c.Errors() {
		if e.Type == ErrorEscalation {
			found = true
			if e.Severity != SeverityCritical || !e.RequiresIntervention {
				t.Errorf("escalation severity=%s intervention=%v", e.Severity, e.RequiresIntervention)
			}
		}
	}
	if !found {
		t.Error("escalation was not recorded")
	}
}

// --- Lifecycle ---

func TestPauseAndResume(t *testing.T) {
	c, _ := deployRunning(t, testConfig())

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := c.State(); got != StatePaused {
		t.Errorf("state = %s, want paused", got)
	}
	if err := c.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second pause: %v, want ErrNotRunning", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := c.State(); got != StateRunning {
		t.Errorf("state = %s, want running", got)
	}
}

func TestStopWritesReportAndArchives(t *testing.T) {
	cfg := testConfig()
	mt := newMockTmux()
	stateDir := t.TempDir()
	c := New(cfg, t.TempDir(), "agents", stateDir, WithTmux(mt), WithGit(&mockGit{}))

	if err := c.Deploy(); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.State(); got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}

	reportPath := c.ReportPath()
	if reportPath == "" {
		t.Fatal("no report path recorded")
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "demo") {
		t.Error("report does not mention the project name")
	}

	if _, err := os.Stat(filepath.Join(stateDir, "status.json")); err != nil {
		t.Errorf("status file missing: %v", err)
	}

	logs, err := filepath.Glob(filepath.Join(stateDir, "logs", "*.log"))
	if err != nil {
		t.Fatalf("glob logs: %v", err)
	}
	if len(logs) != 5 {
		t.Errorf("archived %d logs, want one per agent: %v", len(logs), logs)
	}
	for _, l := range logs {
		base := filepath.Base(l)
		if !strings.Contains(base, "_") {
			t.Errorf("log %q missing agent/timestamp separator", base)
		}
	}

	// Second stop is a no-op.
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStatusDocumentRoundTrips(t *testing.T) {
	c, _ := deployRunning(t, testConfig())

	st := c.GetStatus()
	if st.TotalAgents != 5 {
		t.Errorf("TotalAgents = %d, want 5", st.TotalAgents)
	}
	if st.State != StateRunning {
		t.Errorf("State = %s, want running", st.State)
	}
	if st.EndTime != nil {
		t.Error("EndTime set before stop")
	}

	summary := c.GenerateSummary()
	if !strings.Contains(summary, "demo") || !strings.Contains(summary, "/5 agents") {
		t.Errorf("summary %q missing project or agent counts", summary)
	}
}

func countErrors(c *Coordinator, typ ErrorType) int {
	n := 0
	for _, e := range c.Errors() {
		if e.Type == typ {
			n++
		}
	}
	return n
}
