package session

import (
	"sync"
	"time"

	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusIdle      Status = "idle"
	StatusBlocked   Status = "blocked"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// Session is the runtime state of one deployed agent. Created on successful
// window deployment, destroyed only when orchestration stops.
type Session struct {
	// Immutable fields (safe to read without lock)
	AgentID     string
	Descriptor  team.Descriptor
	SessionName string
	WindowIndex int
	StartTime   time.Time

	// Mutable fields (protected by mu)
	mu                sync.RWMutex
	status            Status
	lastActivity      time.Time
	completedTasks    int
	gitCommits        int
	messagesExchanged int
}

func New(d team.Descriptor, sessionName string, windowIndex int) *Session {
	now := time.Now()
	return &Session{
		AgentID:      d.ID,
		Descriptor:   d,
		SessionName:  sessionName,
		WindowIndex:  windowIndex,
		StartTime:    now,
		status:       StatusActive,
		lastActivity: now,
	}
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = t
}

func (s *Session) AddCompletedTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedTasks++
}

func (s *Session) AddCommit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gitCommits++
}

func (s *Session) AddMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesExchanged++
}

// Snapshot holds a consistent point-in-time view of all mutable fields.
type Snapshot struct {
	AgentID           string    `json:"agentId"`
	Role              team.Role `json:"role"`
	SessionName       string    `json:"sessionName"`
	WindowIndex       int       `json:"windowIndex"`
	Status            Status    `json:"status"`
	StartTime         time.Time `json:"startTime"`
	LastActivity      time.Time `json:"lastActivity"`
	CompletedTasks    int       `json:"completedTasks"`
	GitCommits        int       `json:"gitCommits"`
	MessagesExchanged int       `json:"messagesExchanged"`
}

// Snapshot reads all mutable fields under a single lock acquisition.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AgentID:           s.AgentID,
		Role:              s.Descriptor.Role,
		SessionName:       s.SessionName,
		WindowIndex:       s.WindowIndex,
		Status:            s.status,
		StartTime:         s.StartTime,
		LastActivity:      s.lastActivity,
		CompletedTasks:    s.completedTasks,
		GitCommits:        s.gitCommits,
		MessagesExchanged: s.messagesExchanged,
	}
}
