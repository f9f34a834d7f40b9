package schedule

import (
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/session"
)

// Event is a check-in falling due for an agent, drained by the
// coordinator's run loop.
type Event struct {
	AgentID string
	Note    string
	Time    time.Time
}

// Service schedules one-shot future check-ins per agent. Intervals are
// clamped to the configured [min, max] window; in adaptive mode troubled
// agents are re-examined sooner and idle agents less often.
type Service struct {
	cfg    config.SelfScheduling
	events chan Event

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(cfg config.SelfScheduling) *Service {
	return &Service{
		cfg:    cfg,
		events: make(chan Event, 64),
		timers: make(map[string]*time.Timer),
	}
}

func (s *Service) Events() <-chan Event {
	return s.events
}

// IntervalFor selects the check-in interval for an agent in the given
// state. The adaptive flag is honored here and nowhere else: when it is
// off, every state gets the configured default.
func (s *Service) IntervalFor(status session.Status) time.Duration {
	if !s.cfg.Adaptive {
		return s.cfg.Default()
	}
	switch status {
	case session.StatusBlocked, session.StatusError:
		return s.cfg.Min()
	case session.StatusIdle:
		return s.cfg.Max()
	default:
		return s.cfg.Default()
	}
}

// ScheduleCheckIn arms a one-shot wake-up for an agent. A zero interval
// means "use the configured default"; any value is clamped to [min, max].
// A cron expression in the config overrides interval selection entirely.
// The effective delay is returned. Rescheduling replaces any pending
// check-in for the agent.
func (s *Service) ScheduleCheckIn(agentID string, interval time.Duration, note string) time.Duration {
	delay := s.clamp(interval)
	if s.cfg.CheckInCron != "" {
		if next, err := gronx.NextTick(s.cfg.CheckInCron, false); err == nil {
			delay = time.Until(next)
		} else {
			slog.Warn("invalid check-in cron, falling back to interval", "cron", s.cfg.CheckInCron, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
	}
	s.timers[agentID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, agentID)
		s.mu.Unlock()
		s.events <- Event{AgentID: agentID, Note: note, Time: time.Now()}
	})

	slog.Debug("check-in scheduled", "agent", agentID, "delay", delay)
	return delay
}

func (s *Service) clamp(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = s.cfg.Default()
	}
	if min := s.cfg.Min(); interval < min {
		return min
	}
	if max := s.cfg.Max(); interval > max {
		return max
	}
	return interval
}

// CancelAgent stops the pending check-in for one agent.
func (s *Service) CancelAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
}

// CancelAll stops every pending check-in.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// PendingCount returns how many check-ins are armed.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
