package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/orchestrator"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
)

type sortMode int

const (
	sortByID sortMode = iota
	sortByStatus
	sortByRole
)

type notification struct {
	text  string
	time  time.Time
	style lipgloss.Style
}

type tickMsg time.Time

// Model is the dashboard: a live table of deployed agents plus a
// notification feed driven by coordinator events.
type Model struct {
	coord         *orchestrator.Coordinator
	cursor        int
	notifications []notification
	width         int
	height        int
	err           string
	sortBy        sortMode
	spin          spinner.Model
	styles        Styles
	layout        config.Layout
}

func NewModel(s Styles, layout config.Layout, coord *orchestrator.Coordinator) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = s.Active
	return Model{
		coord:  coord,
		styles: s,
		layout: layout,
		spin:   sp,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spin.Tick)
}

func (m Model) notify(text string, style lipgloss.Style) Model {
	m.notifications = append(m.notifications, notification{
		text:  text,
		time:  time.Now(),
		style: style,
	})
	if len(m.notifications) > 10 {
		m.notifications = m.notifications[len(m.notifications)-10:]
	}
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		// Force an immediate tick when the pane regains focus so ages are
		// fresh without waiting for the next 1-second tick.
		return m, tickCmd()

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case orchestrator.AgentStatusMsg:
		style := m.styleFor(msg.Status)
		return m.notify(fmt.Sprintf("Agent %s is now %s", msg.AgentID, msg.Status), style), nil

	case orchestrator.CommitMsg:
		text := fmt.Sprintf("Agent %s committed", msg.AgentID)
		if msg.Hash != "" {
			text = fmt.Sprintf("Agent %s committed %s", msg.AgentID, msg.Hash)
		}
		return m.notify(text, m.styles.Completed), nil

	case orchestrator.CheckInMsg:
		return m.notify(fmt.Sprintf("Agent %s checked in", msg.AgentID), m.styles.Notification), nil

	case orchestrator.EscalationMsg:
		return m.notify(fmt.Sprintf("ESCALATION from %s: %s", msg.AgentID, msg.Content), m.styles.Error), nil

	case orchestrator.ErrorMsg:
		if msg.Err.Severity == orchestrator.SeverityCritical {
			return m.notify(fmt.Sprintf("Critical: %s (%s)", msg.Err.Message, msg.Err.AgentID), m.styles.Error), nil
		}
		return m.notify(fmt.Sprintf("%s: %s", msg.Err.Type, msg.Err.Message), m.styles.Blocked), nil

	case orchestrator.StoppedMsg:
		m = m.notify("Orchestration stopped, report: "+msg.ReportPath, m.styles.Completed)
		return m, tea.Quit

	case tea.KeyMsg:
		m.err = ""
		agents := m.sortedAgents()

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			if m.cursor < len(agents)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "s":
			m.sortBy = (m.sortBy + 1) % 3
		case "p":
			switch m.coord.State() {
			case orchestrator.StateRunning:
				if err := m.coord.Pause(); err != nil {
					m.err = err.Error()
				} else {
					m = m.notify("Orchestration paused", m.styles.Blocked)
				}
			case orchestrator.StatePaused:
				if err := m.coord.Resume(); err != nil {
					m.err = err.Error()
				} else {
					m = m.notify("Orchestration resumed", m.styles.Active)
				}
			}
		case "d":
			if err := m.coord.DeployRemaining(); err != nil {
				m.err = err.Error()
			} else {
				m = m.notify("Deployed remaining agents", m.styles.Active)
			}
		case "r":
			m = m.notify(m.coord.GenerateSummary(), m.styles.Notification)
		}
	}

	return m, nil
}

func (m Model) sortedAgents() []session.Snapshot {
	var agents []session.Snapshot
	for _, s := range m.coord.Sessions().All() {
		agents = append(agents, s.Snapshot())
	}
	switch m.sortBy {
	case sortByStatus:
		statusOrder := map[session.Status]int{
			session.StatusError:     0,
			session.StatusBlocked:   1,
			session.StatusIdle:      2,
			session.StatusActive:    3,
			session.StatusCompleted: 4,
		}
		sort.Slice(agents, func(i, j int) bool {
			oi, oj := statusOrder[agents[i].Status], statusOrder[agents[j].Status]
			if oi != oj {
				return oi < oj
			}
			return agents[i].AgentID < agents[j].AgentID
		})
	case sortByRole:
		sort.Slice(agents, func(i, j int) bool {
			if agents[i].Role != agents[j].Role {
				return agents[i].Role < agents[j].Role
			}
			return agents[i].AgentID < agents[j].AgentID
		})
	default:
		sort.Slice(agents, func(i, j int) bool {
			return agents[i].AgentID < agents[j].AgentID
		})
	}
	return agents
}

func (m Model) sortLabel() string {
	switch m.sortBy {
	case sortByStatus:
		return "status"
	case sortByRole:
		return "role"
	default:
		return "id"
	}
}

func (m Model) styleFor(st session.Status) lipgloss.Style {
	switch st {
	case session.StatusActive:
		return m.styles.Active
	case session.StatusIdle:
		return m.styles.Idle
	case session.StatusBlocked:
		return m.styles.Blocked
	case session.StatusError:
		return m.styles.Error
	case session.StatusCompleted:
		return m.styles.Completed
	default:
		return m.styles.Notification
	}
}

func (m Model) ViewContent() string {
	var b strings.Builder

	st := m.coord.GetStatus()

	// Title
	title := fmt.Sprintf("%s %s — %s, up %s", m.spin.View(), st.ProjectName, st.State,
		(time.Duration(st.UptimeSeconds) * time.Second).Round(time.Second))
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	counters := fmt.Sprintf("  agents %d (%d active) │ tasks %d done, %d pending │ commits %d │ errors %d",
		st.TotalAgents, st.ActiveAgents, st.CompletedTasks, st.PendingTasks, st.TotalCommits, st.Errors)
	b.WriteString(m.styles.Help.Render(counters))
	b.WriteString("\n\n")

	// Agent table
	agents := m.sortedAgents()
	if len(agents) == 0 {
		b.WriteString(m.styles.Help.Render("  No agents deployed."))
		b.WriteString("\n")
	} else {
		header := fmt.Sprintf("  %-16s %-20s %-4s %-10s %-6s %-8s %-6s %-8s",
			"ID", "Role", "Win", "Status", "Tasks", "Commits", "Msgs", "Last")
		b.WriteString(m.styles.Header.Render(header))
		b.WriteString("\n")

		for i, a := range agents {
			styledStatus := m.styleFor(a.Status).Render(string(a.Status))

			// Pad the styled status to 10 visual characters (fmt %-10s
			// counts bytes which breaks with ANSI escape codes).
			if w := lipgloss.Width(styledStatus); w < 10 {
				styledStatus += strings.Repeat(" ", 10-w)
			}

			row := fmt.Sprintf("  %-16s %-20s %-4d %s %-6d %-8d %-6d %-8s",
				truncate(a.AgentID, 16),
				truncate(string(a.Role), 20),
				a.WindowIndex,
				styledStatus,
				a.CompletedTasks,
				a.GitCommits,
				a.MessagesExchanged,
				formatAgo(a.LastActivity),
			)

			if i == m.cursor {
				row = m.styles.Selected.Render(row)
			}
			b.WriteString(row)
			b.WriteString("\n")
		}
	}

	// Notifications (newest first)
	if len(m.notifications) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Header.Render("  ── Notifications ──"))
		b.WriteString("\n")
		for i := len(m.notifications) - 1; i >= 0; i-- {
			n := m.notifications[i]
			line := fmt.Sprintf("  %s %s", n.time.Format("15:04"), n.text)
			b.WriteString(n.style.Render(line))
			b.WriteString("\n")
		}
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("  Error: " + m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(fmt.Sprintf(
		"  p: pause/resume │ d: deploy remaining │ r: summary │ s: sort (%s) │ q: quit", m.sortLabel())))

	return b.String()
}

func (m Model) View() string {
	maxWidth := m.width - 4
	if maxWidth < 40 {
		maxWidth = m.layout.DashboardWidth
	}
	return m.styles.Border.Width(maxWidth).Render(m.ViewContent())
}

func formatAgo(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, max int) string {
	if lipgloss.Width(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
