package session

import (
	"sync"

	"github.com/webdevtodayjason/context-forge-sub002/internal/team"
)

// Store holds the coordinator's sessions keyed by agent id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // deployment order, for stable iteration
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.sessions[s.AgentID]; !exists {
		st.order = append(st.order, s.AgentID)
	}
	st.sessions[s.AgentID] = s
}

func (st *Store) Get(agentID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[agentID]
	return s, ok
}

// All returns sessions in deployment order.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	result := make([]*Session, 0, len(st.sessions))
	for _, id := range st.order {
		result = append(result, st.sessions[id])
	}
	return result
}

// ByRole returns sessions whose descriptor has the given role, in
// deployment order.
func (st *Store) ByRole(role team.Role) []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var result []*Session
	for _, id := range st.order {
		if s := st.sessions[id]; s.Descriptor.Role == role {
			result = append(result, s)
		}
	}
	return result
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CountByStatus tallies sessions per status.
func (st *Store) CountByStatus() map[Status]int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	counts := make(map[Status]int)
	for _, s := range st.sessions {
		counts[s.Status()]++
	}
	return counts
}
